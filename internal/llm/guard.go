package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/sony/gobreaker/v2"
)

// RateLimiter throttles calls per key
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
}

// GuardedProvider wraps a provider with rate limiting and a circuit breaker
type GuardedProvider struct {
	inner   Provider
	limiter RateLimiter
	breaker *gobreaker.CircuitBreaker[*CompletionResponse]
	logger  *slog.Logger
}

// NewGuardedProvider creates a guarded provider; limiter may be nil and a disabled
// breaker config passes calls straight through
func NewGuardedProvider(inner Provider, cfg model.BreakerConfig, limiter RateLimiter, logger *slog.Logger) *GuardedProvider {
	if logger == nil {
		logger = slog.Default()
	}

	g := &GuardedProvider{inner: inner, limiter: limiter, logger: logger}
	if !cfg.Enabled {
		return g
	}

	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	g.breaker = gobreaker.NewCircuitBreaker[*CompletionResponse](gobreaker.Settings{
		Name:        "llm." + inner.Name(),
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// cancellations and permanent rejections say nothing about provider health
			return err == nil || errors.Is(err, context.Canceled) || isClientError(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("llm.breaker.state_change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return g
}

// Name returns the wrapped provider's name
func (g *GuardedProvider) Name() string {
	return g.inner.Name()
}

// IsAvailable delegates to the wrapped provider
func (g *GuardedProvider) IsAvailable(ctx context.Context) bool {
	return g.inner.IsAvailable(ctx)
}

// Complete waits for the rate limiter, then calls through the breaker
func (g *GuardedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, g.inner.Name()); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if g.breaker == nil {
		return g.inner.Complete(ctx, req)
	}

	resp, err := g.breaker.Execute(func() (*CompletionResponse, error) {
		return g.inner.Complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, g.inner.Name(), err)
	}
	return resp, err
}
