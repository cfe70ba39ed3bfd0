package cronograma

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/resilience"
)

var (
	ErrSessionLaunch     = errors.New("browser session could not be started")
	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrElementTimeout    = errors.New("form control did not appear in time")
	ErrMissingControl    = errors.New("search trigger not found")
	ErrResponseTimeout   = errors.New("no matching portal response")
	ErrInvalidPayload    = errors.New("portal response is not valid JSON")
)

// IsRetryable reports whether another attempt could succeed. Caller
// cancellation and an open circuit are final; everything else the portal
// or browser can throw is treated as transient.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return false
	default:
		return true
	}
}

// Classify maps err to a short label for metrics and logs.
func Classify(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSessionLaunch):
		return "session_launch"
	case errors.Is(err, ErrNavigationTimeout):
		return "navigation_timeout"
	case errors.Is(err, ErrElementTimeout):
		return "element_timeout"
	case errors.Is(err, ErrMissingControl):
		return "missing_control"
	case errors.Is(err, ErrResponseTimeout):
		return "response_timeout"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	default:
		return "error"
	}
}
