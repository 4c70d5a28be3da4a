package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/facetag/internal/models"
)

const (
	JobsStreamName   = "JOBS"
	JobsSubjectBase  = "jobs"
	duplicateWindow  = 2 * time.Minute
	ensureMaxRetries = 30
)

// Producer publishes job dispatch messages for the external ML worker. The
// worker consumes the JOBS work-queue stream; job ids double as message ids
// so a retried publish never dispatches the same job twice.
type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStream creates the JOBS stream if it doesn't exist. Retries to cover
// NATS startup delay.
func (p *Producer) EnsureStream(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        JobsStreamName,
		Subjects:    []string{JobsSubjectBase + ".>"},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		Duplicates:  duplicateWindow,
		Description: "Detection/clustering dispatches for ML workers",
	}

	for attempt := 1; ; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == ensureMaxRetries {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, attempt)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
}

// PublishJob dispatches a detect or cluster payload to the worker. The
// subject carries the job type and priority so workers can subscribe
// selectively.
func (p *Producer) PublishJob(ctx context.Context, payload models.JobPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	var jobID, priority string
	switch pl := payload.(type) {
	case models.DetectPayload:
		jobID, priority = pl.JobID.String(), string(pl.Priority)
	case models.ClusterPayload:
		jobID, priority = pl.JobID.String(), string(pl.Priority)
	default:
		return fmt.Errorf("unknown job payload type %T", payload)
	}

	subject := fmt.Sprintf("%s.%s.%s", JobsSubjectBase, payload.Kind(), priority)
	_, err = p.js.Publish(ctx, subject, data, jetstream.WithMsgID(jobID))
	if err != nil {
		return fmt.Errorf("publish job %s: %w", jobID, err)
	}
	return nil
}

// QueueDepth returns the number of pending dispatches in the JOBS stream.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, JobsStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
