// Package providers defines the narrow contracts the risk core consumes
// from the outside world: market data, account state, the volatility
// index, and order execution. The core depends on these fixed contracts
// and never inspects capability presence on a platform object.
package providers

import (
	"context"
	"time"
)

// Greeks carries the option sensitivities a quote may include.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// Quote is one market-data reading for a contract or underlying.
type Quote struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	ImpliedVol float64   `json:"implied_vol"`
	Greeks     Greeks    `json:"greeks"`
	AsOf       time.Time `json:"as_of"`
}

// AccountSummary is the account-value and buying-power reading.
type AccountSummary struct {
	TotalValue  float64 `json:"total_value"`
	BuyingPower float64 `json:"buying_power"`
}

// LegOrder is one leg of an opening order.
type LegOrder struct {
	Contract   string  `json:"contract"`
	Quantity   int     `json:"quantity"` // signed
	LimitPrice float64 `json:"limit_price"`
}

// ExecutionResult is the gateway's report for an open or close request.
// State is never mutated in the core until Success is true.
type ExecutionResult struct {
	Success    bool    `json:"success"`
	FillDetail string  `json:"fill_detail"`
	FillPrices map[string]float64 `json:"fill_prices,omitempty"` // by contract
}

// MarketDataProvider reads prices, IV and Greeks. May fail with
// risk.ErrDataUnavailable.
type MarketDataProvider interface {
	Read(ctx context.Context, symbol string) (Quote, error)
}

// AccountInfoProvider reads account value and buying power.
type AccountInfoProvider interface {
	Read(ctx context.Context) (AccountSummary, error)
}

// VolatilityIndexProvider reads the volatility index level.
type VolatilityIndexProvider interface {
	Read(ctx context.Context) (float64, error)
}

// ExecutionGateway opens and closes positions. The core treats a
// non-success result as "nothing happened".
type ExecutionGateway interface {
	Open(ctx context.Context, strategy string, legs []LegOrder, quantity int) (ExecutionResult, error)
	Close(ctx context.Context, positionID, reason string) (ExecutionResult, error)
}
