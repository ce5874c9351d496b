// Package exits evaluates, once per cycle per open position, a fixed
// priority sequence of exit conditions. The first matching rule wins;
// lower-priority rules are not evaluated once a higher one fires, so at
// most one signal is produced per position per cycle.
package exits

import (
	"fmt"
	"sync"
	"time"
)

// Reason tags an exit signal, in priority order.
type Reason int

const (
	NoExit Reason = iota
	ProfitTarget
	StopLoss
	DTEExit
	AssignmentRisk
	Defensive
)

func (r Reason) String() string {
	switch r {
	case NoExit:
		return "no_exit"
	case ProfitTarget:
		return "profit_target"
	case StopLoss:
		return "stop_loss"
	case DTEExit:
		return "dte_exit"
	case AssignmentRisk:
		return "assignment_risk"
	case Defensive:
		return "defensive"
	default:
		return "unknown"
	}
}

// Signal is one triggered exit, consumed once by the execution
// collaborator. The evaluator never executes the close itself.
type Signal struct {
	PositionID string    `json:"position_id"`
	Reason     Reason    `json:"reason"`
	Detail     string    `json:"detail"`
	Timestamp  time.Time `json:"timestamp"`
}

// StrategyRules are the per-strategy exit parameters.
type StrategyRules struct {
	// ProfitTarget is the fraction of entry basis to capture, e.g. 0.50.
	ProfitTarget float64 `yaml:"profit_target"`
	// StopLossMultiple is the loss multiple of entry basis, e.g. 2.0.
	StopLossMultiple float64 `yaml:"stop_loss_multiple"`
	// DTEFloor forces an exit at or below this days-to-expiry.
	DTEFloor int `yaml:"dte_floor"`
	// MinHoldDays suppresses the profit-target exit early in the hold.
	MinHoldDays int `yaml:"min_hold_days"`
}

// DefaultStrategyRules mirrors the usual premium-selling defaults; the
// same-day variant uses 0.25 / DTE floor 0.
func DefaultStrategyRules() StrategyRules {
	return StrategyRules{
		ProfitTarget:     0.50,
		StopLossMultiple: 2.00,
		DTEFloor:         21,
		MinHoldDays:      0,
	}
}

// DefensiveRules are the portfolio-level crisis triggers.
type DefensiveRules struct {
	// CrisisIndexLevel fires a defensive exit when the volatility index
	// reads at or above it.
	CrisisIndexLevel float64 `yaml:"crisis_index_level"`
	// MaxDrawdownPct fires when portfolio drawdown reaches it (0.15 = 15%).
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct"`
}

// DefaultDefensiveRules returns the built-in crisis thresholds.
func DefaultDefensiveRules() DefensiveRules {
	return DefensiveRules{CrisisIndexLevel: 40.0, MaxDrawdownPct: 0.15}
}

// Assignment-risk evaluation constants: only checked inside the final
// week, with a tighter ITM threshold for short calls than short puts.
const (
	assignmentDTEWindow   = 7
	shortPutITMThreshold  = 0.02
	shortCallITMThreshold = 0.01
)

// ShortLeg is the slice of a position the assignment check needs.
type ShortLeg struct {
	Contract string
	Right    string // "put" or "call"
	Strike   float64
}

// Inputs is everything one evaluation needs. All checks are pure given
// these inputs; the evaluator holds no hidden mutable decision state.
type Inputs struct {
	PositionID string
	Strategy   string

	// PnL is the mark-to-model dollar P&L; EntryBasis the absolute net
	// credit or debit at entry.
	PnL        float64
	EntryBasis float64

	DaysToExpiry int
	HeldDays     int

	ShortLegs       []ShortLeg
	UnderlyingPrice float64

	// IndexAvailable gates the defensive index check: when the reading
	// is missing the check is skipped, not guessed.
	IndexLevel     float64
	IndexAvailable bool
	DrawdownPct    float64

	Now time.Time
}

// Evaluator runs the prioritized checks and keeps the confirmed
// exit-reason tally. The tally moves only after the execution
// collaborator reports success.
type Evaluator struct {
	mu         sync.Mutex
	strategies map[string]StrategyRules
	defensive  DefensiveRules
	tally      map[Reason]int
}

// NewEvaluator builds an evaluator. Strategies absent from the map fall
// back to DefaultStrategyRules.
func NewEvaluator(strategies map[string]StrategyRules, defensive DefensiveRules) *Evaluator {
	if strategies == nil {
		strategies = map[string]StrategyRules{}
	}
	return &Evaluator{
		strategies: strategies,
		defensive:  defensive,
		tally:      make(map[Reason]int),
	}
}

// Rules returns the exit rules for a strategy.
func (e *Evaluator) Rules(strategy string) StrategyRules {
	if r, ok := e.strategies[strategy]; ok {
		return r
	}
	return DefaultStrategyRules()
}

// Evaluate runs the checks in priority order and returns the first
// triggered signal, or nil to hold the position.
func (e *Evaluator) Evaluate(in Inputs) *Signal {
	rules := e.Rules(in.Strategy)

	if sig := e.checkProfitTarget(in, rules); sig != nil {
		return sig
	}
	if sig := e.checkStopLoss(in, rules); sig != nil {
		return sig
	}
	if sig := e.checkDTEFloor(in, rules); sig != nil {
		return sig
	}
	if sig := e.checkAssignmentRisk(in); sig != nil {
		return sig
	}
	return e.checkDefensive(in)
}

func (e *Evaluator) signal(in Inputs, reason Reason, detail string) *Signal {
	return &Signal{PositionID: in.PositionID, Reason: reason, Detail: detail, Timestamp: in.Now}
}

func (e *Evaluator) checkProfitTarget(in Inputs, rules StrategyRules) *Signal {
	if in.EntryBasis <= 0 || in.PnL <= 0 {
		return nil
	}
	if in.HeldDays < rules.MinHoldDays {
		return nil
	}
	frac := in.PnL / in.EntryBasis
	if frac >= rules.ProfitTarget {
		return e.signal(in, ProfitTarget,
			fmt.Sprintf("captured %.0f%% of basis %.2f (target %.0f%%)", frac*100, in.EntryBasis, rules.ProfitTarget*100))
	}
	return nil
}

func (e *Evaluator) checkStopLoss(in Inputs, rules StrategyRules) *Signal {
	if in.EntryBasis <= 0 || in.PnL >= 0 {
		return nil
	}
	multiple := -in.PnL / in.EntryBasis
	if multiple >= rules.StopLossMultiple {
		return e.signal(in, StopLoss,
			fmt.Sprintf("loss %.2f is %.2fx basis %.2f (stop %.2fx)", -in.PnL, multiple, in.EntryBasis, rules.StopLossMultiple))
	}
	return nil
}

func (e *Evaluator) checkDTEFloor(in Inputs, rules StrategyRules) *Signal {
	if in.DaysToExpiry <= rules.DTEFloor {
		return e.signal(in, DTEExit,
			fmt.Sprintf("%d DTE at or below floor %d", in.DaysToExpiry, rules.DTEFloor))
	}
	return nil
}

func (e *Evaluator) checkAssignmentRisk(in Inputs) *Signal {
	if in.DaysToExpiry > assignmentDTEWindow || in.UnderlyingPrice <= 0 {
		return nil
	}
	for _, l := range in.ShortLegs {
		switch l.Right {
		case "put":
			itm := (l.Strike - in.UnderlyingPrice) / in.UnderlyingPrice
			if itm >= shortPutITMThreshold {
				return e.signal(in, AssignmentRisk,
					fmt.Sprintf("short put %s %.2f ITM %.1f%% with %d DTE", l.Contract, l.Strike, itm*100, in.DaysToExpiry))
			}
		case "call":
			itm := (in.UnderlyingPrice - l.Strike) / in.UnderlyingPrice
			if itm >= shortCallITMThreshold {
				return e.signal(in, AssignmentRisk,
					fmt.Sprintf("short call %s %.2f ITM %.1f%% with %d DTE", l.Contract, l.Strike, itm*100, in.DaysToExpiry))
			}
		}
	}
	return nil
}

func (e *Evaluator) checkDefensive(in Inputs) *Signal {
	if in.IndexAvailable && e.defensive.CrisisIndexLevel > 0 && in.IndexLevel >= e.defensive.CrisisIndexLevel {
		return e.signal(in, Defensive,
			fmt.Sprintf("volatility index %.1f at or above crisis level %.1f", in.IndexLevel, e.defensive.CrisisIndexLevel))
	}
	if e.defensive.MaxDrawdownPct > 0 && in.DrawdownPct >= e.defensive.MaxDrawdownPct {
		return e.signal(in, Defensive,
			fmt.Sprintf("portfolio drawdown %.1f%% beyond ceiling %.1f%%", in.DrawdownPct*100, e.defensive.MaxDrawdownPct*100))
	}
	return nil
}

// Confirm records a signal in the exit-reason tally. Called only after
// the execution collaborator reports a successful close.
func (e *Evaluator) Confirm(sig *Signal) {
	if sig == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tally[sig.Reason]++
}

// Tally returns a copy of the confirmed exit-reason counts.
func (e *Evaluator) Tally() map[Reason]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[Reason]int, len(e.tally))
	for k, v := range e.tally {
		out[k] = v
	}
	return out
}
