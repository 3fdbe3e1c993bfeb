package handler

import (
	"context"
	"time"

	"wavyai/internal/dto"
	"wavyai/internal/middleware"
	"wavyai/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Twilio gives up on a webhook after 15s.
const defaultWebhookTimeout = 12 * time.Second

type WebhookHandler struct {
	svc     service.AssistantService
	timeout time.Duration
}

// NewWebhookHandler bounds every message to timeout (12s when zero) so slow
// gateways produce a fallback reply before the caller gives up.
func NewWebhookHandler(svc service.AssistantService, timeout time.Duration) *WebhookHandler {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookHandler{svc: svc, timeout: timeout}
}

// WhatsApp answers every inbound message with 200 and a TwiML reply, including
// payloads that fail validation.
func (h *WebhookHandler) WhatsApp(c *gin.Context) {
	var req dto.InboundMessage
	if err := bindFormAndValidate(c, &req); err != nil {
		log.Warn().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("webhook: unusable payload")
		writeTwiML(c, service.MsgNotRegistered)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	writeTwiML(c, h.svc.HandleMessage(ctx, req.From, req.Body))
}
