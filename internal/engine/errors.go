// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Common engine errors
var (
	ErrBrowserNotFound = errors.New("chrome browser not found")
	ErrSessionClosed   = errors.New("session closed")
	ErrNoPayload       = errors.New("payload not available")
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeInvalidURL      ErrorCode = "INVALID_URL"
	ErrCodeSessionStart    ErrorCode = "SESSION_START"
	ErrCodeNavigation      ErrorCode = "NAVIGATION"
	ErrCodeAnalysisTimeout ErrorCode = "ANALYSIS_TIMEOUT"
	ErrCodeExtraction      ErrorCode = "EXTRACTION"
	ErrCodeCapture         ErrorCode = "CAPTURE"
)

// Targets for errors.Is comparisons against a code.
var (
	ErrSessionStart    = &EngineError{Code: ErrCodeSessionStart}
	ErrNavigation      = &EngineError{Code: ErrCodeNavigation}
	ErrAnalysisTimeout = &EngineError{Code: ErrCodeAnalysisTimeout}
	ErrExtraction      = &EngineError{Code: ErrCodeExtraction}
	ErrCapture         = &EngineError{Code: ErrCodeCapture}
)

// EngineError wraps errors with additional context
type EngineError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retry      bool
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is checks if the error matches the target
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Message:    message,
		Underlying: err,
		Retry:      false,
		Details:    make(map[string]interface{}),
	}
}

// WithRetry marks the error as retryable
func (e *EngineError) WithRetry() *EngineError {
	e.Retry = true
	return e
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the code of the first EngineError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code, true
	}
	return "", false
}

// IsRetryable reports whether err carries a retryable EngineError.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retry
	}
	return false
}

// ReasonFor maps an error to the reason recorded on a failed item.
func ReasonFor(err error) string {
	switch code, _ := CodeOf(err); code {
	case ErrCodeAnalysisTimeout:
		return "AnalysisTimeout"
	case ErrCodeSessionStart:
		return "SessionStartError"
	case ErrCodeNavigation:
		return "NavigationError"
	case ErrCodeExtraction:
		return "ExtractionError"
	case ErrCodeCapture:
		return "CaptureError"
	case ErrCodeInvalidURL:
		return "InvalidUrl"
	}
	return "Error"
}
