package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/conclave/pkg/provider/llm"
)

// Per-call timeouts. Deep thinking modes are given much longer because
// reasoning models routinely spend minutes before the first output token.
const (
	defaultCallTimeout  = 120 * time.Second
	thinkingCallTimeout = 600 * time.Second
)

// Guard wraps provider generation calls with the full resilience stack:
// a per-request timeout derived from the thinking mode, the retry policy,
// and one circuit breaker per provider kind.
//
// Breakers only count transport-level failures; validation errors and
// unavailable models pass through without tripping anything.
type Guard struct {
	retry RetryConfig

	mu       sync.Mutex
	breakers map[llm.ProviderKind]*CircuitBreaker
}

// NewGuard creates a Guard with the given retry policy (zero value for
// defaults).
func NewGuard(retry RetryConfig) *Guard {
	return &Guard{
		retry:    retry,
		breakers: make(map[llm.ProviderKind]*CircuitBreaker),
	}
}

// Generate calls p.Generate under timeout, retry and circuit breaking.
func (g *Guard) Generate(ctx context.Context, p llm.Provider, req llm.GenerationRequest) (*llm.ModelResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout(req.ThinkingMode))
	defer cancel()

	breaker := g.breakerFor(p.Kind())

	var resp *llm.ModelResponse
	err := breaker.Execute(func() error {
		return Retry(ctx, g.retry, func(ctx context.Context) error {
			var err error
			resp, err = p.Generate(ctx, req)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// BreakerState reports the breaker state for a provider kind, for health
// reporting.
func (g *Guard) BreakerState(kind llm.ProviderKind) State {
	return g.breakerFor(kind).State()
}

func (g *Guard) breakerFor(kind llm.ProviderKind) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb, ok := g.breakers[kind]
	if !ok {
		cb = NewCircuitBreaker(CircuitBreakerConfig{
			Name:      string(kind),
			IsFailure: isTransportFailure,
		})
		g.breakers[kind] = cb
	}
	return cb
}

// CallTimeout returns the per-request deadline for a thinking mode.
func CallTimeout(mode llm.ThinkingMode) time.Duration {
	switch mode {
	case llm.ThinkingHigh, llm.ThinkingMax:
		return thinkingCallTimeout
	default:
		return defaultCallTimeout
	}
}

// isTransportFailure reports whether err indicates upstream trouble worth
// counting toward opening a breaker.
func isTransportFailure(err error) bool {
	if errors.Is(err, llm.ErrInvalidRequest) || errors.Is(err, llm.ErrModelUnavailable) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
