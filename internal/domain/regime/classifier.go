// Package regime maps a volatility-index reading onto a fixed, ordered
// set of named regimes. Each regime carries the buying-power ceiling and
// risk multiplier that drive position sizing for the cycle.
package regime

import (
	"fmt"
	"math"
	"sort"

	"github.com/sawpanic/optiondesk/internal/domain/risk"
)

// Regime is one named volatility band. Bands are static configuration;
// a regime is selected each cycle, never created at runtime.
type Regime struct {
	Name             string  `yaml:"name" json:"name"`
	Low              float64 `yaml:"low" json:"low"`
	High             float64 `yaml:"high" json:"high"` // exclusive; +Inf for the top band
	BPCeiling        float64 `yaml:"bp_ceiling" json:"bp_ceiling"`
	RiskMultiplier   float64 `yaml:"risk_multiplier" json:"risk_multiplier"`
	ExpectedDuration string  `yaml:"expected_duration" json:"expected_duration"`
	Stress           bool    `yaml:"stress" json:"stress"`
}

// Contains reports whether the index value falls inside the band [Low, High).
func (r Regime) Contains(v float64) bool {
	return v >= r.Low && v < r.High
}

// Config holds the regime band table.
type Config struct {
	Bands []Regime `yaml:"bands"`
}

// DefaultConfig returns the built-in regime table. Thresholds and
// ceilings are configuration, not constants of the system.
func DefaultConfig() Config {
	return Config{Bands: []Regime{
		{Name: "calm", Low: 0, High: 15, BPCeiling: 0.80, RiskMultiplier: 1.00, ExpectedDuration: "weeks"},
		{Name: "normal", Low: 15, High: 20, BPCeiling: 0.65, RiskMultiplier: 1.00, ExpectedDuration: "weeks"},
		{Name: "elevated", Low: 20, High: 28, BPCeiling: 0.45, RiskMultiplier: 0.75, ExpectedDuration: "days"},
		{Name: "high", Low: 28, High: 40, BPCeiling: 0.30, RiskMultiplier: 0.50, ExpectedDuration: "days", Stress: true},
		{Name: "extreme", Low: 40, High: math.Inf(1), BPCeiling: 0.20, RiskMultiplier: 0.25, ExpectedDuration: "hours", Stress: true},
	}}
}

// Classifier selects a regime from an index reading. Classification is
// pure: it keeps no cache and records no history.
type Classifier struct {
	bands    []Regime
	fallback Regime
}

// NewClassifier validates the band table and builds a classifier.
// Bands must be contiguous and exhaustive over [0, +Inf); anything else
// is a startup error, never a runtime one.
func NewClassifier(cfg Config) (*Classifier, error) {
	if len(cfg.Bands) == 0 {
		return nil, fmt.Errorf("%w: regime table is empty", risk.ErrConfigInconsistent)
	}

	bands := make([]Regime, len(cfg.Bands))
	copy(bands, cfg.Bands)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Low < bands[j].Low })

	if bands[0].Low != 0 {
		return nil, fmt.Errorf("%w: lowest regime band starts at %.2f, want 0", risk.ErrConfigInconsistent, bands[0].Low)
	}
	for i, b := range bands {
		if b.Name == "" {
			return nil, fmt.Errorf("%w: regime band %d has no name", risk.ErrConfigInconsistent, i)
		}
		if b.High <= b.Low {
			return nil, fmt.Errorf("%w: regime %q band [%.2f, %.2f) is empty", risk.ErrConfigInconsistent, b.Name, b.Low, b.High)
		}
		if b.BPCeiling <= 0 || b.BPCeiling > 1 {
			return nil, fmt.Errorf("%w: regime %q bp_ceiling %.2f outside (0, 1]", risk.ErrConfigInconsistent, b.Name, b.BPCeiling)
		}
		if i > 0 && bands[i-1].High != b.Low {
			return nil, fmt.Errorf("%w: gap between regime %q (high %.2f) and %q (low %.2f)",
				risk.ErrConfigInconsistent, bands[i-1].Name, bands[i-1].High, b.Name, b.Low)
		}
	}
	if !math.IsInf(bands[len(bands)-1].High, 1) {
		return nil, fmt.Errorf("%w: top regime %q must extend to +Inf", risk.ErrConfigInconsistent, bands[len(bands)-1].Name)
	}

	fallback := bands[0]
	for _, b := range bands[1:] {
		if b.BPCeiling < fallback.BPCeiling {
			fallback = b
		}
	}

	return &Classifier{bands: bands, fallback: fallback}, nil
}

// Classify maps an index reading to its regime. A missing or invalid
// reading (NaN, Inf, negative) is ErrDataUnavailable: the classifier
// never guesses, and callers fall back to Fallback() rather than to a
// previously cached regime.
func (c *Classifier) Classify(indexValue float64) (Regime, error) {
	if math.IsNaN(indexValue) || math.IsInf(indexValue, 0) || indexValue < 0 {
		return Regime{}, fmt.Errorf("index reading %v: %w", indexValue, risk.ErrDataUnavailable)
	}
	for _, b := range c.bands {
		if b.Contains(indexValue) {
			return b, nil
		}
	}
	// Unreachable: bands are exhaustive over [0, +Inf).
	return Regime{}, fmt.Errorf("index reading %v not covered: %w", indexValue, risk.ErrDataUnavailable)
}

// Fallback returns the configured regime with the lowest buying-power
// ceiling, used whenever the index reading is unavailable.
func (c *Classifier) Fallback() Regime {
	return c.fallback
}

// Bands returns the ordered regime table.
func (c *Classifier) Bands() []Regime {
	out := make([]Regime, len(c.bands))
	copy(out, c.bands)
	return out
}
