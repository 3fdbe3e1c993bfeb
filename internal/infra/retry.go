package infra

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a transient failure is retried.
type RetryPolicy struct {
	Attempts  int           // total attempts including the first
	BaseDelay time.Duration // doubled after every failed attempt
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Second}
}

// WithRetry calls fn until it succeeds, returns a non-transient error, or the
// attempts run out. Waits 1s, 2s, 4s … between attempts with the default policy.
func WithRetry(ctx context.Context, p RetryPolicy, fn func(attempt int) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	var lastErr error
	for i := 0; i < p.Attempts; i++ {
		if i > 0 {
			wait := p.BaseDelay * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err := fn(i)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
	}
	return lastErr
}
