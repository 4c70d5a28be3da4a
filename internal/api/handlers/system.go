package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueHealth covers the queue checks readyz performs.
type QueueHealth interface {
	Ping() error
	QueueDepth(ctx context.Context) (uint64, error)
}

type SystemHandler struct {
	db       Pinger
	minio    Pinger
	producer QueueHealth
}

func NewSystemHandler(db, minio Pinger, producer QueueHealth) *SystemHandler {
	return &SystemHandler{db: db, minio: minio, producer: producer}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	// Check Postgres
	if err := h.db.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	// Check MinIO
	if err := h.minio.Ping(ctx); err != nil {
		checks["minio"] = err.Error()
		healthy = false
	} else {
		checks["minio"] = "ok"
	}

	// Check NATS. When connected, also report how many jobs sit in the
	// work queue so operators can spot a stalled worker from this endpoint.
	var depth *uint64
	if err := h.producer.Ping(); err != nil {
		checks["nats"] = err.Error()
		healthy = false
	} else {
		checks["nats"] = "ok"
		if d, err := h.producer.QueueDepth(ctx); err == nil {
			depth = &d
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	body := gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	}
	if depth != nil {
		body["queue_depth"] = *depth
	}
	c.JSON(status, body)
}
