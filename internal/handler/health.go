package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"wavyai/internal/infra"
	"wavyai/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const healthBanner = "Wavy AI — Stock Guard + Review Shield"

// Health is the liveness probe. It touches no dependency.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, healthBanner)
	}
}

// Deps reports database, Redis and circuit breaker state. Redis is optional:
// an unconfigured client is reported as "disabled" and does not fail the check.
func Deps(db *gorm.DB, rdb *redis.Client, dlq *worker.DLQ, breakers ...*infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "connected"
			if rdb.Ping(ctx).Err() != nil {
				redisStatus = "error"
			}
		}

		circuits := gin.H{}
		for _, cb := range breakers {
			if cb != nil {
				circuits[cb.Name()] = cb.State().String()
			}
		}

		body := gin.H{
			"db":       dbStatus,
			"redis":    redisStatus,
			"circuits": circuits,
		}
		if n, err := dlq.Length(ctx, infra.QueueOutboundWhatsApp); err == nil {
			body["dead_letters"] = n
		} else if !errors.Is(err, infra.ErrNotConfigured) {
			body["dead_letters"] = "error"
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus == "error" {
			status = http.StatusServiceUnavailable
		}
		body["ok"] = status == http.StatusOK
		c.JSON(status, body)
	}
}
