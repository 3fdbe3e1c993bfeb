package handler

import (
	"net/http"

	"wavyai/internal/middleware"
	"wavyai/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ReviewsHandler struct{ svc service.ReviewService }

func NewReviewsHandler(svc service.ReviewService) *ReviewsHandler {
	return &ReviewsHandler{svc: svc}
}

// Check runs one review ingestion pass on demand.
func (h *ReviewsHandler) Check(c *gin.Context) {
	if err := h.svc.CheckAll(c.Request.Context()); err != nil {
		log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("manual review check failed")
		c.String(http.StatusInternalServerError, "Error: %v", err)
		return
	}
	c.String(http.StatusOK, "Review check ran. See logs for output.")
}
