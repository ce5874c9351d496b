package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/optiondesk/internal/domain/risk"
)

type flakyIndex struct {
	err   error
	calls int
}

func (f *flakyIndex) Read(_ context.Context) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return 22.5, nil
}

func fastBreaker(name string) BreakerConfig {
	cfg := DefaultBreakerConfig(name)
	cfg.ConsecutiveFailures = 3
	cfg.RequestsPerSecond = 10_000
	cfg.Burst = 10_000
	cfg.Timeout = time.Hour // stay open for the duration of the test
	return cfg
}

func TestGuardedIndexPassesThrough(t *testing.T) {
	inner := &flakyIndex{}
	g := NewGuardedIndex(inner, fastBreaker("index"))

	v, err := g.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 22.5, v)
}

func TestGuardedIndexTripsToDataUnavailable(t *testing.T) {
	inner := &flakyIndex{err: errors.New("upstream 503")}
	g := NewGuardedIndex(inner, fastBreaker("index"))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := g.Read(ctx)
		assert.ErrorIs(t, err, risk.ErrDataUnavailable)
	}
	callsAtTrip := inner.calls

	// Circuit is open: subsequent reads fail fast without touching the
	// provider, still inside the DataUnavailable taxonomy.
	_, err := g.Read(ctx)
	assert.ErrorIs(t, err, risk.ErrDataUnavailable)
	assert.Equal(t, callsAtTrip, inner.calls)
}

type flakyMarket struct {
	err error
}

func (f *flakyMarket) Read(_ context.Context, symbol string) (Quote, error) {
	if f.err != nil {
		return Quote{}, f.err
	}
	return Quote{Symbol: symbol, Price: 101.5}, nil
}

func TestGuardedMarketData(t *testing.T) {
	inner := &flakyMarket{}
	g := NewGuardedMarketData(inner, fastBreaker("market"))

	q, err := g.Read(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, "SPY", q.Symbol)
	assert.Equal(t, 101.5, q.Price)

	inner.err = errors.New("timeout")
	_, err = g.Read(context.Background(), "SPY")
	assert.ErrorIs(t, err, risk.ErrDataUnavailable)
}

func TestGuardedMarketDataHonorsContext(t *testing.T) {
	cfg := fastBreaker("market")
	cfg.RequestsPerSecond = 0.001 // force the limiter to block
	cfg.Burst = 1
	g := NewGuardedMarketData(&flakyMarket{}, cfg)

	ctx := context.Background()
	_, err := g.Read(ctx, "SPY") // burns the single burst token
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = g.Read(cancelled, "SPY")
	assert.Error(t, err)
}
