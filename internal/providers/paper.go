package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// PaperGateway is an ExecutionGateway that fills every order at its
// limit price. Used by the paper-trading mode and tests; live broker
// adapters live outside this repository.
type PaperGateway struct {
	mu     sync.Mutex
	opens  int
	closes int
}

// NewPaperGateway builds a paper gateway.
func NewPaperGateway() *PaperGateway {
	return &PaperGateway{}
}

// Open implements ExecutionGateway.
func (p *PaperGateway) Open(ctx context.Context, strategy string, legs []LegOrder, quantity int) (ExecutionResult, error) {
	p.mu.Lock()
	p.opens++
	p.mu.Unlock()

	prices := make(map[string]float64, len(legs))
	for _, l := range legs {
		prices[l.Contract] = l.LimitPrice
	}
	log.Info().Str("strategy", strategy).Int("legs", len(legs)).Int("quantity", quantity).Msg("paper fill: open")
	return ExecutionResult{
		Success:    true,
		FillDetail: fmt.Sprintf("paper open %s x%d (%d legs)", strategy, quantity, len(legs)),
		FillPrices: prices,
	}, nil
}

// Close implements ExecutionGateway.
func (p *PaperGateway) Close(ctx context.Context, positionID, reason string) (ExecutionResult, error) {
	p.mu.Lock()
	p.closes++
	p.mu.Unlock()

	log.Info().Str("position", positionID).Str("reason", reason).Msg("paper fill: close")
	return ExecutionResult{
		Success:    true,
		FillDetail: fmt.Sprintf("paper close %s (%s)", positionID, reason),
	}, nil
}

// Fills reports how many opens and closes the gateway has confirmed.
func (p *PaperGateway) Fills() (opens, closes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens, p.closes
}
