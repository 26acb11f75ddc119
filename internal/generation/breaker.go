package generation

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker; zero disables it.
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// BreakerGenerator stops hammering a provider that keeps failing with
// transient errors. While open it fails fast with a transient error, which
// the walker's backoff absorbs.
type BreakerGenerator struct {
	next    Generator
	cb      *gobreaker.CircuitBreaker[GeneratedText]
	timeout time.Duration
}

func NewBreakerGenerator(next Generator, cfg BreakerConfig, baseLog *logger.Logger) Generator {
	if cfg.ConsecutiveFailures == 0 {
		return next
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log := baseLog.With("component", "GeneratorBreaker", "provider", next.Name())
	cb := gobreaker.NewCircuitBreaker[GeneratedText](gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// Only provider-side transient trouble counts against the circuit.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return &BreakerGenerator{next: next, cb: cb, timeout: timeout}
}

func (b *BreakerGenerator) Name() string { return b.next.Name() }

func (b *BreakerGenerator) Generate(ctx context.Context, req Request) (GeneratedText, error) {
	out, err := b.cb.Execute(func() (GeneratedText, error) {
		return b.next.Generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return GeneratedText{}, &ProviderTransientError{Provider: b.Name(), RetryAfter: b.timeout, Err: err}
	}
	return out, err
}
