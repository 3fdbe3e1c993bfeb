package infra

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wavyai/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/ttacon/libphonenumber"
)

const (
	defaultTwilioBaseURL = "https://api.twilio.com"
	// Twilio sandbox sender
	defaultWhatsAppFrom = "whatsapp:+14155238886"
)

// DeadLetterSink receives outbound messages that could not be delivered.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, queue, jobType string, payload any, reason string, attempts int)
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Region     string // default region for numbers written without a country code
	Timeout    time.Duration
	Retry      RetryPolicy
}

// TwilioClient sends WhatsApp messages through the Twilio Messages API.
type TwilioClient struct {
	cfg        TwilioConfig
	httpClient *http.Client
	dlq        DeadLetterSink
	metrics    *Metrics
}

func NewTwilioClient(cfg TwilioConfig) *TwilioClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwilioBaseURL
	}
	if cfg.From == "" {
		cfg.From = defaultWhatsAppFrom
	}
	cfg.From = WhatsAppAddress(cfg.From, cfg.Region)
	c := &TwilioClient{cfg: cfg, httpClient: newHTTPClient(cfg.Timeout)}
	if !c.Enabled() {
		log.Warn().Msg("twilio: TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN not set, outbound WhatsApp disabled")
	}
	return c
}

// WithDeadLetter routes messages that fail after retry into sink.
func (c *TwilioClient) WithDeadLetter(sink DeadLetterSink) *TwilioClient {
	c.dlq = sink
	return c
}

func (c *TwilioClient) WithMetrics(m *Metrics) *TwilioClient {
	c.metrics = m
	return c
}

func (c *TwilioClient) Enabled() bool {
	return c.cfg.AccountSID != "" && c.cfg.AuthToken != ""
}

type outboundMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type twilioMessageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Send delivers text to addr. It returns ErrNotConfigured without doing
// anything when credentials are missing.
func (c *TwilioClient) Send(ctx context.Context, addr, text string) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	to := WhatsAppAddress(addr, c.cfg.Region)
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimSuffix(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.AccountSID))

	var resp twilioMessageResponse
	attempts := 0
	err := WithRetry(ctx, c.cfg.Retry, func(int) error {
		attempts++
		form := url.Values{}
		form.Set("To", to)
		form.Set("From", c.cfg.From)
		form.Set("Body", text)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("twilio: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
		return doRequest(ctx, c.httpClient, "twilio", req, &resp)
	})
	if err != nil {
		c.metrics.outbound("failed")
		if c.dlq != nil {
			c.dlq.DeadLetter(ctx, QueueOutboundWhatsApp, "whatsapp_message",
				outboundMessage{To: to, Body: text}, err.Error(), attempts)
		}
		return err
	}
	c.metrics.outbound("sent")
	log.Debug().Str("to", to).Str("sid", resp.SID).Msg("twilio: message sent")
	return nil
}

// QueueOutboundWhatsApp names the dead letter list for undelivered messages.
const QueueOutboundWhatsApp = "outbound_whatsapp"

// WhatsAppAddress returns addr in "whatsapp:+E164" form. Numbers libphonenumber
// cannot parse are kept as written.
func WhatsAppAddress(addr, region string) string {
	raw := model.NormalizeOwnerPhone(addr)
	if raw == "" {
		return ""
	}
	if num, err := libphonenumber.Parse(raw, strings.ToUpper(region)); err == nil {
		raw = libphonenumber.Format(num, libphonenumber.E164)
	}
	return model.WhatsAppPrefix + raw
}
