package middleware

import (
	"net/http"
	"time"

	"wavyai/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const msgInternal = "Internal server error"

func abortInternal(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New(msgInternal).WithRequest(c.GetString(RequestIDKey)))
}

// ErrorHandler turns errors attached with c.Error into a 500 envelope when the
// handler has not written a response itself.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil {
			return
		}
		log.Error().
			Err(last.Err).
			Str("request_id", c.GetString(RequestIDKey)).
			Str("route", c.FullPath()).
			Int("errors", len(c.Errors)).
			Msg("handler error")

		if !c.Writer.Written() {
			abortInternal(c)
		}
	}
}

// Recovery converts a panic into the same 500 envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", c.GetString(RequestIDKey)).
					Str("path", c.Request.URL.Path).
					Interface("panic", r).
					Msg("panic recovered")
				abortInternal(c)
			}
		}()
		c.Next()
	}
}

// Logger writes one access line per request. 5xx replies are logged at warn.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := zerolog.InfoLevel
		if status >= http.StatusInternalServerError {
			level = zerolog.WarnLevel
		}
		log.WithLevel(level).
			Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// NotFound is the JSON 404 for unknown routes.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, apierror.New("Not found").WithRequest(c.GetString(RequestIDKey)))
	}
}
