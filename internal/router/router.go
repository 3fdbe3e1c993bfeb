package router

import (
	"time"

	"wavyai/internal/config"
	"wavyai/internal/handler"
	"wavyai/internal/infra"
	"wavyai/internal/middleware"
	"wavyai/internal/service"
	"wavyai/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer reads from. It is assembled in cmd/server.
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client // nil when REDIS_URL is unset
	DLQ       *worker.DLQ
	Metrics   *infra.Metrics
	Breakers  []*infra.CircuitBreaker
	Assistant service.AssistantService
	Reviews   service.ReviewService
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.ErrorHandler())
	r.NoRoute(middleware.NotFound())

	webhookH := handler.NewWebhookHandler(d.Assistant, cfg.WebhookTimeout)
	reviewsH := handler.NewReviewsHandler(d.Reviews)

	// The webhook always answers 200, so it stays outside the limiter
	r.POST("/webhook/whatsapp", webhookH.WhatsApp)
	r.GET("/health", handler.Health())

	limited := r.Group("", middleware.NewRateLimiter(cfg.RateLimitPerMin, time.Minute).Handler())
	{
		limited.GET("/health/deps", handler.Deps(d.DB, d.Redis, d.DLQ, d.Breakers...))
		limited.GET("/check-reviews", reviewsH.Check)
	}

	if cfg.MetricsEnabled && d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	return r
}
