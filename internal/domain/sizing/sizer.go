// Package sizing computes the maximum admissible trade size as the
// minimum of four independent ceilings: the regime buying-power ceiling,
// the account tier's remaining position headroom, the correlation
// group's remaining headroom, and a bounded Kelly-derived fraction.
package sizing

import (
	"math"

	"github.com/sawpanic/optiondesk/internal/domain/regime"
)

// Ceiling identifies which constraint bound a sizing decision.
type Ceiling string

const (
	CeilingRegime      Ceiling = "regime"
	CeilingTier        Ceiling = "tier"
	CeilingCorrelation Ceiling = "correlation"
	CeilingKelly       Ceiling = "kelly"
	CeilingHardCap     Ceiling = "hard_cap"
	CeilingNone        Ceiling = "none"
)

// StrategyStats are the historical performance inputs to the Kelly
// fraction: win rate and average win/loss per unit.
type StrategyStats struct {
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	AvgWin  float64 `yaml:"avg_win" json:"avg_win"`
	AvgLoss float64 `yaml:"avg_loss" json:"avg_loss"`
}

// Config holds the strategy-independent sizing parameters.
type Config struct {
	// HardCap is an absolute unit ceiling regardless of account size.
	HardCap int `yaml:"hard_cap"`
	// RelaxMultiplier scales the regime ceiling upward during an
	// extreme-regime deployment window. Never below 1.
	RelaxMultiplier float64 `yaml:"relax_multiplier"`
	// Kelly clamp bounds and shrink factor.
	KellyShrink float64 `yaml:"kelly_shrink"`
	KellyFloor  float64 `yaml:"kelly_floor"`
	KellyCap    float64 `yaml:"kelly_cap"`
}

// DefaultConfig returns the built-in sizing parameters. Raw Kelly is
// deliberately shrunk to one quarter as a margin against estimation
// error in the win-rate and payoff inputs.
func DefaultConfig() Config {
	return Config{
		HardCap:         5,
		RelaxMultiplier: 1.25,
		KellyShrink:     0.25,
		KellyFloor:      0.05,
		KellyCap:        0.25,
	}
}

// Request carries everything one sizing decision needs. Headroom values
// arrive pre-stressed when the caller selected stressed ceilings.
type Request struct {
	Strategy     string
	Symbol       string
	AccountValue float64
	// BPPerUnit is the buying power one unit of the strategy consumes.
	BPPerUnit float64
	Stats     StrategyStats
	Regime    regime.Regime
	// TierHeadroom = tier max positions minus current open positions.
	TierHeadroom int
	// CorrelationHeadroom is the symbol's group headroom under the
	// ceiling the caller selected (normal or stressed).
	CorrelationHeadroom int
	// RelaxRegime widens only the regime component during an extreme
	// volatility window. Caller-configured, never automatic.
	RelaxRegime bool
}

// Snapshot records the independent ceilings behind a decision.
type Snapshot struct {
	KellyFraction    float64 `json:"kelly_fraction"`
	RegimeCount      int     `json:"regime_count"`
	TierCount        int     `json:"tier_count"`
	CorrelationCount int     `json:"correlation_count"`
	KellyCount       int     `json:"kelly_count"`
	HardCap          int     `json:"hard_cap"`
	Regime           string  `json:"regime"`
}

// Decision is the transient outcome of one sizing request. Infeasible
// is a legitimate "do not trade now", not an error.
type Decision struct {
	Strategy   string   `json:"strategy"`
	Symbol     string   `json:"symbol"`
	Units      int      `json:"units"`
	Binding    Ceiling  `json:"binding"`
	Infeasible bool     `json:"infeasible"`
	Reason     string   `json:"reason,omitempty"`
	BPUsage    float64  `json:"bp_usage"`
	Snapshot   Snapshot `json:"snapshot"`
}

// Sizer computes sizing decisions. Stateless beyond its configuration.
type Sizer struct {
	cfg Config
}

// NewSizer builds a sizer, filling unset config fields from defaults.
func NewSizer(cfg Config) *Sizer {
	def := DefaultConfig()
	if cfg.HardCap <= 0 {
		cfg.HardCap = def.HardCap
	}
	if cfg.RelaxMultiplier < 1 {
		cfg.RelaxMultiplier = def.RelaxMultiplier
	}
	if cfg.KellyShrink <= 0 {
		cfg.KellyShrink = def.KellyShrink
	}
	if cfg.KellyFloor <= 0 {
		cfg.KellyFloor = def.KellyFloor
	}
	if cfg.KellyCap <= 0 {
		cfg.KellyCap = def.KellyCap
	}
	return &Sizer{cfg: cfg}
}

// KellyFraction returns the shrunk, clamped Kelly fraction for the
// strategy stats: clamp(shrink * (b*p - q)/b, floor, cap) with
// b = avgWin/|avgLoss|.
func (s *Sizer) KellyFraction(stats StrategyStats) float64 {
	p := stats.WinRate
	q := 1 - p
	loss := math.Abs(stats.AvgLoss)
	if loss == 0 || stats.AvgWin <= 0 || p <= 0 || p > 1 {
		return s.cfg.KellyFloor
	}
	b := stats.AvgWin / loss
	f := s.cfg.KellyShrink * (b*p - q) / b
	if f < s.cfg.KellyFloor {
		return s.cfg.KellyFloor
	}
	if f > s.cfg.KellyCap {
		return s.cfg.KellyCap
	}
	return f
}

// Size computes the admissible unit count for the request. The result
// never exceeds any single ceiling.
func (s *Sizer) Size(req Request) Decision {
	d := Decision{Strategy: req.Strategy, Symbol: req.Symbol, Binding: CeilingNone}

	if req.BPPerUnit <= 0 || req.AccountValue <= 0 {
		d.Infeasible = true
		d.Reason = "no buying-power basis for sizing"
		return d
	}

	kellyFrac := s.KellyFraction(req.Stats)

	regimeCeiling := req.Regime.BPCeiling
	if req.RelaxRegime {
		regimeCeiling = math.Min(regimeCeiling*s.cfg.RelaxMultiplier, 1.0)
	}

	snap := Snapshot{
		KellyFraction:    kellyFrac,
		RegimeCount:      int(math.Floor(req.AccountValue * regimeCeiling / req.BPPerUnit)),
		TierCount:        req.TierHeadroom,
		CorrelationCount: req.CorrelationHeadroom,
		KellyCount:       int(math.Floor(kellyFrac * req.AccountValue / req.BPPerUnit)),
		HardCap:          s.cfg.HardCap,
		Regime:           req.Regime.Name,
	}
	d.Snapshot = snap

	units := snap.RegimeCount
	binding := CeilingRegime
	for _, c := range []struct {
		count   int
		ceiling Ceiling
	}{
		{snap.TierCount, CeilingTier},
		{snap.CorrelationCount, CeilingCorrelation},
		{snap.KellyCount, CeilingKelly},
		{snap.HardCap, CeilingHardCap},
	} {
		if c.count < units {
			units = c.count
			binding = c.ceiling
		}
	}

	if units <= 0 {
		d.Units = 0
		d.Binding = binding
		d.Infeasible = true
		d.Reason = string(binding) + " ceiling leaves no room"
		return d
	}

	d.Units = units
	d.Binding = binding
	d.BPUsage = float64(units) * req.BPPerUnit
	return d
}
