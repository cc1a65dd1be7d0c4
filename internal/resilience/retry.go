package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// RetryConfig holds the backoff policy for transient provider failures.
type RetryConfig struct {
	// MaxRetries is how many times a failed call is reattempted after the
	// first try. Default: 2.
	MaxRetries int

	// BaseDelay is the wait before the first retry. Default: 300ms.
	BaseDelay time.Duration

	// Growth multiplies the delay per retry. Default: 2.
	Growth float64

	// MaxDelay caps the computed backoff. A server-requested Retry-After is
	// honoured verbatim, beyond the cap. Default: 4s.
	MaxDelay time.Duration

	// Sleep overrides the wait between attempts. Tests use it to avoid real
	// delays; nil means a context-aware real sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// withDefaults fills zero-value fields.
func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 300 * time.Millisecond
	}
	if c.Growth <= 1 {
		c.Growth = 2
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 4 * time.Second
	}
	if c.Sleep == nil {
		c.Sleep = sleepCtx
	}
	return c
}

// Retry runs op, reattempting transient failures with exponential backoff.
//
// Failure classification follows [llm.RetryableError]: network errors,
// timeouts, 408/429 and 5xx are retried; other 4xx and request-validation
// failures are terminal. A 429 carrying Retry-After waits that long instead
// of the computed backoff. Context cancellation aborts immediately with the
// context's error.
func Retry(ctx context.Context, cfg RetryConfig, op func(context.Context) error) error {
	cfg = cfg.withDefaults()

	delay := cfg.BaseDelay
	var err error
	for attempt := 0; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !llm.RetryableError(err) || attempt >= cfg.MaxRetries {
			return err
		}

		wait := delay
		if ra, ok := llm.RetryAfterHint(err); ok {
			wait = ra
		}
		slog.Debug("retrying provider call",
			"attempt", attempt+1, "max_retries", cfg.MaxRetries, "wait", wait, "err", err)

		if serr := cfg.Sleep(ctx, wait); serr != nil {
			return serr
		}

		delay = time.Duration(float64(delay) * cfg.Growth)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
