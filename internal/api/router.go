package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facetag/internal/api/handlers"
	"github.com/your-org/facetag/internal/api/ws"
	"github.com/your-org/facetag/internal/auth"
	"github.com/your-org/facetag/internal/clusters"
	"github.com/your-org/facetag/internal/jobs"
	"github.com/your-org/facetag/internal/queue"
	"github.com/your-org/facetag/internal/storage"
)

type RouterConfig struct {
	CallbackSecret string
	DB             *storage.PostgresStore
	MinIO          *storage.MinIOStore
	Producer       *queue.Producer
	Hub            *ws.Hub
	Jobs           *jobs.Service
	Clusters       *clusters.Service
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jobH := handlers.NewJobHandler(cfg.Jobs)

	// Worker callback: shared secret, not user identity
	r.POST("/v1/jobs/callback", auth.CallbackSecretMiddleware(cfg.CallbackSecret), jobH.Callback)

	// API v1 (gateway-forwarded user identity)
	v1 := r.Group("/v1")
	v1.Use(auth.IdentityMiddleware())

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Jobs
	v1.POST("/jobs/detect", jobH.EnqueueDetect)
	v1.POST("/jobs/cluster", jobH.EnqueueCluster)
	v1.GET("/jobs/:id", jobH.Get)

	// Clusters
	clusterH := handlers.NewClusterHandler(cfg.Clusters)
	v1.GET("/clusters", clusterH.List)
	v1.GET("/clusters/:id/suggestion", clusterH.Suggestion)
	v1.POST("/clusters/assign", clusterH.Assign)
	v1.POST("/clusters/link-user", clusterH.LinkUser)
	v1.POST("/clusters/merge", clusterH.Merge)
	v1.POST("/clusters/ignore", clusterH.Ignore)
	v1.POST("/clusters/invite", clusterH.Invite)
	v1.POST("/clusters/purge", clusterH.Purge)

	return r
}
