// Package tier gates strategy access and risk limits by account size.
// Each tier is an account-value band carrying a concurrent-position cap,
// a per-trade risk fraction, an allowed-strategy set and a return target.
package tier

import (
	"fmt"
	"math"
	"sort"

	"github.com/sawpanic/optiondesk/internal/domain/risk"
)

// Tier is one account-value band. Static configuration, selected at
// runtime from the current account value.
type Tier struct {
	Ordinal           int      `yaml:"ordinal" json:"ordinal"`
	Name              string   `yaml:"name" json:"name"`
	Low               float64  `yaml:"low" json:"low"`
	High              float64  `yaml:"high" json:"high"` // exclusive; +Inf for the top tier
	MaxPositions      int      `yaml:"max_positions" json:"max_positions"`
	MaxRiskFraction   float64  `yaml:"max_risk_fraction" json:"max_risk_fraction"`
	AllowedStrategies []string `yaml:"allowed_strategies" json:"allowed_strategies"`
	MonthlyTargetPct  float64  `yaml:"monthly_target_pct" json:"monthly_target_pct"`
}

// Direction of a tier transition.
type Direction string

const (
	Upgrade   Direction = "upgrade"
	Downgrade Direction = "downgrade"
)

// Transition describes a tier change observed between two cycles.
type Transition struct {
	Old       Tier
	New       Tier
	Direction Direction
}

// Config holds the tier band table.
type Config struct {
	Tiers []Tier `yaml:"tiers"`
}

// DefaultConfig returns the built-in tier ladder.
func DefaultConfig() Config {
	return Config{Tiers: []Tier{
		{Ordinal: 1, Name: "foundation", Low: 0, High: 25_000, MaxPositions: 2, MaxRiskFraction: 0.05,
			AllowedStrategies: []string{"covered_strangle", "put_credit_spread"}, MonthlyTargetPct: 2.0},
		{Ordinal: 2, Name: "growth", Low: 25_000, High: 100_000, MaxPositions: 4, MaxRiskFraction: 0.04,
			AllowedStrategies: []string{"covered_strangle", "put_credit_spread", "iron_condor"}, MonthlyTargetPct: 2.5},
		{Ordinal: 3, Name: "scale", Low: 100_000, High: 500_000, MaxPositions: 6, MaxRiskFraction: 0.03,
			AllowedStrategies: []string{"covered_strangle", "put_credit_spread", "iron_condor", "pmcc", "zero_dte_spread"}, MonthlyTargetPct: 3.0},
		{Ordinal: 4, Name: "institutional", Low: 500_000, High: math.Inf(1), MaxPositions: 10, MaxRiskFraction: 0.02,
			AllowedStrategies: []string{"covered_strangle", "put_credit_spread", "iron_condor", "pmcc", "zero_dte_spread", "ratio_spread"}, MonthlyTargetPct: 3.0},
	}}
}

// Gate selects tiers and reports transitions. It holds the last observed
// tier so Observe can emit a transition descriptor on change.
type Gate struct {
	tiers   []Tier
	current *Tier
}

// NewGate validates the tier table and builds a gate. Adjacent tiers
// whose boundaries disagree are a startup error, never a runtime one.
func NewGate(cfg Config) (*Gate, error) {
	if len(cfg.Tiers) == 0 {
		return nil, fmt.Errorf("%w: tier table is empty", risk.ErrConfigInconsistent)
	}

	tiers := make([]Tier, len(cfg.Tiers))
	copy(tiers, cfg.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Low < tiers[j].Low })

	if tiers[0].Low != 0 {
		return nil, fmt.Errorf("%w: lowest tier %q starts at %.2f, want 0", risk.ErrConfigInconsistent, tiers[0].Name, tiers[0].Low)
	}
	for i, t := range tiers {
		if t.High <= t.Low {
			return nil, fmt.Errorf("%w: tier %q band [%.2f, %.2f) is empty", risk.ErrConfigInconsistent, t.Name, t.Low, t.High)
		}
		if t.MaxPositions <= 0 {
			return nil, fmt.Errorf("%w: tier %q max_positions must be positive", risk.ErrConfigInconsistent, t.Name)
		}
		if t.MaxRiskFraction <= 0 || t.MaxRiskFraction > 1 {
			return nil, fmt.Errorf("%w: tier %q max_risk_fraction %.3f outside (0, 1]", risk.ErrConfigInconsistent, t.Name, t.MaxRiskFraction)
		}
		if i > 0 && tiers[i-1].High != t.Low {
			return nil, fmt.Errorf("%w: tier %q upper bound %.2f != tier %q lower bound %.2f",
				risk.ErrConfigInconsistent, tiers[i-1].Name, tiers[i-1].High, t.Name, t.Low)
		}
	}
	if !math.IsInf(tiers[len(tiers)-1].High, 1) {
		return nil, fmt.Errorf("%w: top tier %q must extend to +Inf", risk.ErrConfigInconsistent, tiers[len(tiers)-1].Name)
	}

	return &Gate{tiers: tiers}, nil
}

// SelectTier maps an account value to its tier. Selection is pure; it
// does not record the tier as observed.
func (g *Gate) SelectTier(accountValue float64) (Tier, error) {
	if math.IsNaN(accountValue) || accountValue < 0 {
		return Tier{}, fmt.Errorf("account value %v: %w", accountValue, risk.ErrDataUnavailable)
	}
	for _, t := range g.tiers {
		if accountValue >= t.Low && accountValue < t.High {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("account value %v not covered: %w", accountValue, risk.ErrDataUnavailable)
}

// Observe selects the tier for the account value and emits a transition
// descriptor when the tier changed since the previous observation. The
// first observation never emits a transition.
func (g *Gate) Observe(accountValue float64) (Tier, *Transition, error) {
	t, err := g.SelectTier(accountValue)
	if err != nil {
		return Tier{}, nil, err
	}

	var tr *Transition
	if g.current != nil && g.current.Ordinal != t.Ordinal {
		dir := Upgrade
		if t.Ordinal < g.current.Ordinal {
			dir = Downgrade
		}
		tr = &Transition{Old: *g.current, New: t, Direction: dir}
	}
	g.current = &t
	return t, tr, nil
}

// IsStrategyAllowed reports whether the tier permits the strategy.
func (g *Gate) IsStrategyAllowed(t Tier, strategy string) bool {
	for _, s := range t.AllowedStrategies {
		if s == strategy {
			return true
		}
	}
	return false
}

// MaxPositions returns the tier's concurrent-position cap.
func (g *Gate) MaxPositions(t Tier) int { return t.MaxPositions }

// MaxRiskFraction returns the tier's per-trade risk fraction cap.
func (g *Gate) MaxRiskFraction(t Tier) float64 { return t.MaxRiskFraction }
