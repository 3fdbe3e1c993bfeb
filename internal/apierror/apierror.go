// Package apierror is the JSON error envelope for non-TwiML responses. Internal
// details (stack traces, driver errors) never go through it.
package apierror

// APIError is the canonical error envelope for 4xx/5xx JSON responses.
type APIError struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// WithRequest tags the envelope so a client report can be matched to the logs.
func (e *APIError) WithRequest(id string) *APIError {
	e.RequestID = id
	return e
}
