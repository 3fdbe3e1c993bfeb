package infra

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		var attempts []int
		err := WithRetry(ctx, policy, func(i int) error {
			attempts = append(attempts, i)
			if i < 2 {
				return NewTransientError(errBoom)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, attempts)
	})

	t.Run("stops on a final error", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, policy, func(int) error {
			calls++
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, calls)
	})

	t.Run("returns the last error when attempts run out", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, policy, func(int) error {
			calls++
			return NewTransientError(errBoom)
		})
		assert.ErrorIs(t, err, errBoom)
		assert.True(t, IsTransient(err))
		assert.Equal(t, 3, calls)
	})

	t.Run("zero policy makes one attempt", func(t *testing.T) {
		calls := 0
		_ = WithRetry(ctx, RetryPolicy{}, func(int) error {
			calls++
			return NewTransientError(errBoom)
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		err := WithRetry(cctx, RetryPolicy{Attempts: 3, BaseDelay: time.Hour}, func(int) error {
			cancel()
			return NewTransientError(errBoom)
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestErrorClassification(t *testing.T) {
	assert.Nil(t, NewTransientError(nil))

	assert.True(t, IsTransient(classifyStatus("twilio", http.StatusTooManyRequests, "")))
	assert.True(t, IsTransient(classifyStatus("twilio", http.StatusBadGateway, "")))
	assert.False(t, IsTransient(classifyStatus("twilio", http.StatusUnauthorized, "")))

	err := classifyStatus("places", http.StatusNotFound, "no such place")
	assert.EqualError(t, err, "places: upstream returned 404: no such place")
	assert.EqualError(t, classifyStatus("places", http.StatusNotFound, ""), "places: upstream returned 404")

	assert.True(t, IsTransient(classifyTransport(context.Background(), "anthropic", errBoom)))
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err = classifyTransport(cancelled, "anthropic", errBoom)
	assert.False(t, IsTransient(err), "a cancelled caller is final")
	assert.ErrorIs(t, err, errBoom)

	assert.Equal(t, "héllo", truncate("héllo wörld", 5))
	assert.Equal(t, "short", truncate("short", 10))
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "places", FailureThreshold: 2, SuccessThreshold: 2, OpenTimeout: time.Minute})
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	transient := func() error { return NewTransientError(errBoom) }
	final := func() error { return errBoom }
	ok := func() error { return nil }

	assert.Equal(t, "places", cb.Name())
	assert.Equal(t, "closed", cb.State().String())

	// client-side errors never trip the breaker
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Execute(final), errBoom)
	}
	assert.Equal(t, CBClosed, cb.State())

	_ = cb.Execute(transient)
	require.NoError(t, cb.Execute(ok), "a success resets the count")
	_ = cb.Execute(transient)
	assert.Equal(t, CBClosed, cb.State())
	_ = cb.Execute(transient)
	assert.Equal(t, CBOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	assert.Equal(t, "half-open", cb.State().String())
	_ = cb.Execute(transient)
	assert.Equal(t, CBOpen, cb.State(), "a failed probe reopens")

	now = now.Add(time.Minute)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, CBHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, CBClosed, cb.State())

	assert.Equal(t, "unknown", CBState(42).String())
}

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "x"})
	assert.Equal(t, 5, cb.failureThreshold)
	assert.Equal(t, 2, cb.successThreshold)
	assert.Equal(t, 60*time.Second, cb.openTimeout)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.JobRun("stock_monitor", "ok", time.Second)
		m.StockAlert("sent")
		m.ReviewIngested("alerted")
		m.InboundCommand("chat")
		m.outbound("sent")
	})
}
