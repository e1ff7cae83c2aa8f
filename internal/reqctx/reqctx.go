// Package reqctx carries run and per-URL identifiers through contexts.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type key int

const requestKey key = 0

// RequestContext identifies the processing of one URL within a run.
type RequestContext struct {
	RunID     string
	RequestID string
	URL       string
	StartTime time.Time
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// WithRequestContext attaches a new per-URL context to ctx.
func WithRequestContext(ctx context.Context, runID, url string) context.Context {
	return context.WithValue(ctx, requestKey, &RequestContext{
		RunID:     runID,
		RequestID: uuid.NewString(),
		URL:       url,
		StartTime: time.Now(),
	})
}

// GetRequestContext returns the per-URL context, or a placeholder.
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestKey).(*RequestContext); ok {
		return rc
	}
	return &RequestContext{
		RequestID: "unknown",
		StartTime: time.Now(),
	}
}

// RequestError wraps an error with request context
type RequestError struct {
	RequestID string
	URL       string
	Err       error
}

// Error implements the error interface
func (e *RequestError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.RequestID, e.URL, e.Err)
}

// Unwrap returns the underlying error
func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a new RequestError from context
func NewRequestError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	rc := GetRequestContext(ctx)
	return &RequestError{
		RequestID: rc.RequestID,
		URL:       rc.URL,
		Err:       err,
	}
}
