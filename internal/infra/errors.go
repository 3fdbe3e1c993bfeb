package infra

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	// ErrNotConfigured is returned by a gateway whose credentials are absent.
	ErrNotConfigured = errors.New("gateway not configured")
)

// TransientError marks a failure worth retrying: network errors, timeouts,
// 429 and 5xx replies.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

func NewTransientError(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{err: err}
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// StatusError is a non-2xx reply from an upstream API.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: upstream returned %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s: upstream returned %d: %s", e.Service, e.Code, e.Body)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// classifyStatus wraps a StatusError as transient when the code is retryable.
func classifyStatus(service string, code int, body string) error {
	err := &StatusError{Service: service, Code: code, Body: body}
	if retryableStatus(code) {
		return NewTransientError(err)
	}
	return err
}

// classifyTransport wraps an http.Client.Do error. A cancelled parent context
// is final; anything else at the transport level is transient.
func classifyTransport(ctx context.Context, service string, err error) error {
	err = fmt.Errorf("%s: request failed: %w", service, err)
	if ctx.Err() != nil {
		return err
	}
	return NewTransientError(err)
}

// classifyGoogle maps google.golang.org/api errors onto the same taxonomy.
func classifyGoogle(ctx context.Context, service string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classifyStatus(service, gerr.Code, gerr.Message)
	}
	return classifyTransport(ctx, service, err)
}
