package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/optiondesk/internal/domain/risk"
)

// BreakerConfig tunes the circuit breaker and rate limit wrapped around
// a provider.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	RequestsPerSecond   float64
	Burst               int
}

// DefaultBreakerConfig returns conservative provider protection.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		RequestsPerSecond:   10,
		Burst:               20,
	}
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("provider breaker state change")
		},
	})
}

func newLimiter(cfg BreakerConfig) *rate.Limiter {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(rps)
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// mapBreakerErr collapses open-circuit and provider failures into the
// DataUnavailable taxonomy so callers take the conservative fallback.
func mapBreakerErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("provider circuit open: %w", risk.ErrDataUnavailable)
	}
	if errors.Is(err, risk.ErrDataUnavailable) {
		return err
	}
	return fmt.Errorf("%v: %w", err, risk.ErrDataUnavailable)
}

// GuardedMarketData wraps a MarketDataProvider with a circuit breaker
// and a rate limit.
type GuardedMarketData struct {
	inner   MarketDataProvider
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewGuardedMarketData wraps the provider.
func NewGuardedMarketData(inner MarketDataProvider, cfg BreakerConfig) *GuardedMarketData {
	return &GuardedMarketData{inner: inner, breaker: newBreaker(cfg), limiter: newLimiter(cfg)}
}

// Read implements MarketDataProvider.
func (g *GuardedMarketData) Read(ctx context.Context, symbol string) (Quote, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Quote{}, mapBreakerErr(err)
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Read(ctx, symbol)
	})
	if err != nil {
		return Quote{}, mapBreakerErr(err)
	}
	return out.(Quote), nil
}

// GuardedIndex wraps a VolatilityIndexProvider with a circuit breaker
// and a rate limit.
type GuardedIndex struct {
	inner   VolatilityIndexProvider
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewGuardedIndex wraps the provider.
func NewGuardedIndex(inner VolatilityIndexProvider, cfg BreakerConfig) *GuardedIndex {
	return &GuardedIndex{inner: inner, breaker: newBreaker(cfg), limiter: newLimiter(cfg)}
}

// Read implements VolatilityIndexProvider.
func (g *GuardedIndex) Read(ctx context.Context) (float64, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, mapBreakerErr(err)
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Read(ctx)
	})
	if err != nil {
		return 0, mapBreakerErr(err)
	}
	return out.(float64), nil
}
