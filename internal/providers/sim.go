package providers

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimMarketData is a deterministic random-walk quote source for paper
// mode and local runs. Each symbol walks from a seed-derived base price.
type SimMarketData struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
}

// NewSimMarketData builds a simulator with a fixed seed.
func NewSimMarketData(seed int64) *SimMarketData {
	return &SimMarketData{
		rng:    rand.New(rand.NewSource(seed)),
		prices: make(map[string]float64),
	}
}

// Read implements MarketDataProvider.
func (s *SimMarketData) Read(_ context.Context, symbol string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	px, ok := s.prices[symbol]
	if !ok {
		px = basePrice(symbol)
	}
	px = math.Max(0.01, px*(1+s.rng.NormFloat64()*0.002))
	s.prices[symbol] = px

	spread := px * 0.001
	return Quote{
		Symbol:     symbol,
		Price:      px,
		Bid:        px - spread,
		Ask:        px + spread,
		ImpliedVol: 0.18 + s.rng.Float64()*0.04,
		AsOf:       time.Now().UTC(),
	}, nil
}

// SetPrice pins a symbol's next price.
func (s *SimMarketData) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

func basePrice(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return 20 + float64(h.Sum32()%500)
}

// StaticAccount is an AccountInfoProvider returning a fixed reading.
type StaticAccount struct {
	mu      sync.Mutex
	summary AccountSummary
}

// NewStaticAccount builds a fixed account provider.
func NewStaticAccount(totalValue, buyingPower float64) *StaticAccount {
	return &StaticAccount{summary: AccountSummary{TotalValue: totalValue, BuyingPower: buyingPower}}
}

// Read implements AccountInfoProvider.
func (a *StaticAccount) Read(_ context.Context) (AccountSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary, nil
}

// Set replaces the reading.
func (a *StaticAccount) Set(totalValue, buyingPower float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summary = AccountSummary{TotalValue: totalValue, BuyingPower: buyingPower}
}

// StaticIndex is a VolatilityIndexProvider returning a settable level.
type StaticIndex struct {
	mu    sync.Mutex
	level float64
}

// NewStaticIndex builds a fixed index provider.
func NewStaticIndex(level float64) *StaticIndex {
	return &StaticIndex{level: level}
}

// Read implements VolatilityIndexProvider.
func (i *StaticIndex) Read(_ context.Context) (float64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.level, nil
}

// Set replaces the level.
func (i *StaticIndex) Set(level float64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.level = level
}
