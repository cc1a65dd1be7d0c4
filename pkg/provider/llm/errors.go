package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrModelUnavailable signals that the requested model does not exist or is
// not served by the provider. Callers should not retry.
var ErrModelUnavailable = errors.New("llm: model unavailable")

// ErrInvalidRequest marks requests that the provider rejected before any
// network activity, such as an unreadable image file. Never retried.
var ErrInvalidRequest = errors.New("llm: invalid request")

// TransportError is a request failure annotated with enough HTTP context for
// the retry layer to classify it.
type TransportError struct {
	// StatusCode is the HTTP status, or 0 for network-level failures.
	StatusCode int

	// RetryAfter is the server-requested backoff from a 429 response,
	// zero when none was given.
	RetryAfter time.Duration

	// Err is the underlying error.
	Err error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm: request failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm: request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt: network
// errors, timeouts, rate limits and server-side errors are; other 4xx
// responses are terminal.
func (e *TransportError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == 408 || e.StatusCode == 429:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// RetryableError reports whether err should be retried. Errors that are not
// a [TransportError] and do not wrap [ErrModelUnavailable] are treated as
// retryable network-level failures.
func RetryableError(err error) bool {
	if errors.Is(err, ErrModelUnavailable) || errors.Is(err, ErrInvalidRequest) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	return true
}

// RetryAfterHint extracts the server-requested backoff, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var te *TransportError
	if errors.As(err, &te) && te.RetryAfter > 0 {
		return te.RetryAfter, true
	}
	return 0, false
}
