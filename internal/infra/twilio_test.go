package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedDeadLetter struct {
	queue, jobType, reason string
	payload                any
	attempts               int
}

type fakeSink struct{ got []recordedDeadLetter }

func (f *fakeSink) DeadLetter(_ context.Context, queue, jobType string, payload any, reason string, attempts int) {
	f.got = append(f.got, recordedDeadLetter{queue: queue, jobType: jobType, payload: payload, reason: reason, attempts: attempts})
}

func TestTwilio_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "whatsapp:+15550001111", r.PostForm.Get("To"))
		assert.Equal(t, "whatsapp:+14155238886", r.PostForm.Get("From"))
		assert.Equal(t, "Low stock: Oil Filters", r.PostForm.Get("Body"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer srv.Close()

	m := NewMetrics()
	c := NewTwilioClient(TwilioConfig{AccountSID: "AC123", AuthToken: "secret", BaseURL: srv.URL}).WithMetrics(m)

	require.NoError(t, c.Send(context.Background(), "+1 555 000 1111", "Low stock: Oil Filters"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboundMsg.WithLabelValues("sent")))
}

func TestTwilio_FailureGoesToDeadLetter(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message":"unavailable"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink := &fakeSink{}
	m := NewMetrics()
	c := NewTwilioClient(TwilioConfig{
		AccountSID: "AC123", AuthToken: "secret", BaseURL: srv.URL,
		Retry: RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond},
	}).WithDeadLetter(sink).WithMetrics(m)

	err := c.Send(context.Background(), "whatsapp:+15550001111", "hi")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, calls)

	require.Len(t, sink.got, 1)
	dl := sink.got[0]
	assert.Equal(t, QueueOutboundWhatsApp, dl.queue)
	assert.Equal(t, "whatsapp_message", dl.jobType)
	assert.Equal(t, 3, dl.attempts)
	assert.Equal(t, outboundMessage{To: "whatsapp:+15550001111", Body: "hi"}, dl.payload)
	assert.Contains(t, dl.reason, "upstream returned 503")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboundMsg.WithLabelValues("failed")))
}

func TestTwilio_ClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"code":21211,"message":"invalid To"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewTwilioClient(TwilioConfig{
		AccountSID: "AC123", AuthToken: "secret", BaseURL: srv.URL,
		Retry: RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond},
	})
	err := c.Send(context.Background(), "+15550001111", "hi")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, 1, calls)
}

func TestTwilio_Disabled(t *testing.T) {
	c := NewTwilioClient(TwilioConfig{AccountSID: "AC123"})
	assert.False(t, c.Enabled())
	assert.ErrorIs(t, c.Send(context.Background(), "+15550001111", "hi"), ErrNotConfigured)
}

func TestWhatsAppAddress(t *testing.T) {
	tests := []struct {
		in, region, want string
	}{
		{"+15550001111", "", "whatsapp:+15550001111"},
		{"whatsapp:+15550001111", "", "whatsapp:+15550001111"},
		{" whatsapp: +54 9 11 2345-6789 ", "", "whatsapp:+5491123456789"},
		{"(555) 000-1111", "us", "whatsapp:+15550001111"},
		{"not a number", "", "whatsapp:not a number"},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, WhatsAppAddress(tt.in, tt.region))
		})
	}
}
