package application

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/optiondesk/internal/domain/sizing"
	"github.com/sawpanic/optiondesk/internal/positions"
	"github.com/sawpanic/optiondesk/internal/providers"
)

// LegPlan describes one leg of a prospective trade, per unit.
type LegPlan struct {
	Role       positions.Role
	Contract   string
	Right      positions.Right
	Quantity   int // signed, per unit
	Strike     float64
	Expiry     time.Time
	LimitPrice float64
}

// EnterTrade sizes, admits and opens a new trade. The registry and
// ledger are only mutated after the gateway confirms the fill. For
// recurring-leg strategies an existing position with an open anchor leg
// is reused instead of creating a duplicate anchor.
//
// An infeasible sizing decision or a refused correlation admission
// returns the decision with no order placed; neither is an error.
func (e *Engine) EnterTrade(ctx context.Context, strategy, symbol string, plan []LegPlan, relaxRegime bool) (string, sizing.Decision, error) {
	if len(plan) == 0 {
		return "", sizing.Decision{}, fmt.Errorf("empty leg plan for %s %s", strategy, symbol)
	}

	decision, err := e.SizeTrade(ctx, strategy, symbol, relaxRegime)
	if err != nil {
		return "", sizing.Decision{}, err
	}
	if decision.Infeasible {
		log.Info().Str("strategy", strategy).Str("symbol", symbol).Str("reason", decision.Reason).Msg("sizing infeasible, not trading")
		return "", decision, nil
	}

	stressed := e.currentRegime(ctx).Stress

	stratCfg := e.cfg.Strategies[strategy]
	anchorID, attachToAnchor := "", false
	if stratCfg.AnchorRole != "" {
		anchorID, attachToAnchor = e.registry.FindOpenAnchor(strategy, symbol, positions.Role(stratCfg.AnchorRole))
	}

	// A recurring leg on an existing position adds no new position to
	// the correlation bucket; a fresh position must be admitted.
	if !attachToAnchor {
		if adm := e.ledger.Admit(symbol, stressed); !adm.Allowed {
			decision.Infeasible = true
			decision.Units = 0
			decision.Reason = adm.Reason
			log.Info().Str("strategy", strategy).Str("symbol", symbol).Str("reason", adm.Reason).Msg("correlation ledger refused admission")
			return "", decision, nil
		}
	}

	legs := plan
	if attachToAnchor {
		legs = nil
		for _, l := range plan {
			if string(l.Role) != stratCfg.AnchorRole {
				legs = append(legs, l)
			}
		}
		if len(legs) == 0 {
			return anchorID, decision, nil
		}
	}

	orders := make([]providers.LegOrder, len(legs))
	for i, l := range legs {
		orders[i] = providers.LegOrder{
			Contract:   l.Contract,
			Quantity:   l.Quantity * decision.Units,
			LimitPrice: l.LimitPrice,
		}
	}

	result, err := e.gateway.Open(ctx, strategy, orders, decision.Units)
	if err != nil {
		return "", decision, fmt.Errorf("open %s %s: %w", strategy, symbol, err)
	}
	if !result.Success {
		return "", decision, fmt.Errorf("open %s %s not filled: %s", strategy, symbol, result.FillDetail)
	}

	posID := anchorID
	if !attachToAnchor {
		posID = e.registry.Create(strategy, symbol)
	}
	for _, l := range legs {
		price := l.LimitPrice
		if fill, ok := result.FillPrices[l.Contract]; ok {
			price = fill
		}
		if _, err := e.registry.AddLeg(posID, l.Role, positions.LegData{
			Contract:   l.Contract,
			Right:      l.Right,
			Quantity:   l.Quantity * decision.Units,
			Strike:     l.Strike,
			Expiry:     l.Expiry,
			EntryPrice: price,
		}); err != nil {
			// Filled at the gateway but unrecordable: surface loudly,
			// this is the genuinely unexpected class.
			return posID, decision, fmt.Errorf("record leg %s on %s: %w", l.Contract, posID, err)
		}
	}

	log.Info().Str("position", posID).Str("strategy", strategy).Str("symbol", symbol).
		Int("units", decision.Units).Str("binding", string(decision.Binding)).Msg("trade opened")
	return posID, decision, nil
}
