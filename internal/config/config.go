// Package config assembles the risk core's configuration tables: regime
// bands, tier ladder, correlation groups, sizing parameters and
// per-strategy exit rules. Tables are explicit structs validated once at
// startup; an inconsistent table refuses to initialize rather than
// surfacing as a runtime lookup failure.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/optiondesk/internal/domain/correlation"
	"github.com/sawpanic/optiondesk/internal/domain/regime"
	"github.com/sawpanic/optiondesk/internal/domain/sizing"
	"github.com/sawpanic/optiondesk/internal/domain/tier"
	"github.com/sawpanic/optiondesk/internal/exits"
	"github.com/sawpanic/optiondesk/internal/positions"
)

// StrategyConfig describes one tradable strategy: the leg roles that
// must be present for the position to count as fully built, its sizing
// inputs and its exit rules.
type StrategyConfig struct {
	RequiredRoles []string `yaml:"required_roles"`
	// AnchorRole marks recurring-leg strategies: before opening a new
	// position, an existing one with an open anchor leg is reused.
	AnchorRole string `yaml:"anchor_role,omitempty"`
	// BPPerUnit is the buying power one unit consumes, in dollars.
	BPPerUnit float64              `yaml:"bp_per_unit"`
	Stats     sizing.StrategyStats `yaml:"stats"`
	Exits     exits.StrategyRules  `yaml:"exits"`
}

// EngineConfig holds cycle-level settings.
type EngineConfig struct {
	CycleInterval time.Duration `yaml:"cycle_interval"`
	QuoteTTL      time.Duration `yaml:"quote_ttl"`
	HistoryDepth  int           `yaml:"history_depth"`
	SnapshotKeep  int           `yaml:"snapshot_keep"`
}

// UnmarshalYAML accepts durations in Go syntax ("30s", "1m"), which
// yaml.v3 does not decode into time.Duration on its own.
func (e *EngineConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		CycleInterval string `yaml:"cycle_interval"`
		QuoteTTL      string `yaml:"quote_ttl"`
		HistoryDepth  *int   `yaml:"history_depth"`
		SnapshotKeep  *int   `yaml:"snapshot_keep"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.CycleInterval != "" {
		d, err := time.ParseDuration(raw.CycleInterval)
		if err != nil {
			return fmt.Errorf("cycle_interval: %w", err)
		}
		e.CycleInterval = d
	}
	if raw.QuoteTTL != "" {
		d, err := time.ParseDuration(raw.QuoteTTL)
		if err != nil {
			return fmt.Errorf("quote_ttl: %w", err)
		}
		e.QuoteTTL = d
	}
	if raw.HistoryDepth != nil {
		e.HistoryDepth = *raw.HistoryDepth
	}
	if raw.SnapshotKeep != nil {
		e.SnapshotKeep = *raw.SnapshotKeep
	}
	return nil
}

// Config is the full configuration surface.
type Config struct {
	Regimes     regime.Config             `yaml:"regimes"`
	Tiers       tier.Config               `yaml:"tiers"`
	Correlation correlation.Config        `yaml:"correlation"`
	Sizing      sizing.Config             `yaml:"sizing"`
	Defensive   exits.DefensiveRules      `yaml:"defensive"`
	Strategies  map[string]StrategyConfig `yaml:"strategies"`
	Engine      EngineConfig              `yaml:"engine"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Regimes:     regime.DefaultConfig(),
		Tiers:       tier.DefaultConfig(),
		Correlation: correlation.DefaultConfig(),
		Sizing:      sizing.DefaultConfig(),
		Defensive:   exits.DefaultDefensiveRules(),
		Strategies: map[string]StrategyConfig{
			"put_credit_spread": {
				RequiredRoles: []string{"primary_short", "protective_long"},
				BPPerUnit:     500,
				Stats:         sizing.StrategyStats{WinRate: 0.82, AvgWin: 110, AvgLoss: 290},
				Exits:         exits.StrategyRules{ProfitTarget: 0.50, StopLossMultiple: 2.00, DTEFloor: 21, MinHoldDays: 1},
			},
			"iron_condor": {
				RequiredRoles: []string{"primary_short", "secondary_short", "protective_long"},
				BPPerUnit:     1000,
				Stats:         sizing.StrategyStats{WinRate: 0.78, AvgWin: 180, AvgLoss: 520},
				Exits:         exits.StrategyRules{ProfitTarget: 0.50, StopLossMultiple: 2.00, DTEFloor: 21, MinHoldDays: 2},
			},
			"covered_strangle": {
				RequiredRoles: []string{"anchor_long", "primary_short", "secondary_short"},
				BPPerUnit:     12000,
				Stats:         sizing.StrategyStats{WinRate: 0.85, AvgWin: 260, AvgLoss: 700},
				Exits:         exits.StrategyRules{ProfitTarget: 0.50, StopLossMultiple: 2.50, DTEFloor: 14, MinHoldDays: 3},
			},
			"pmcc": {
				RequiredRoles: []string{"anchor_long", "secondary_short"},
				AnchorRole:    "anchor_long",
				BPPerUnit:     8000,
				Stats:         sizing.StrategyStats{WinRate: 0.75, AvgWin: 150, AvgLoss: 380},
				Exits:         exits.StrategyRules{ProfitTarget: 0.50, StopLossMultiple: 2.00, DTEFloor: 30, MinHoldDays: 0},
			},
			"zero_dte_spread": {
				RequiredRoles: []string{"primary_short", "protective_long"},
				BPPerUnit:     500,
				Stats:         sizing.StrategyStats{WinRate: 0.70, AvgWin: 90, AvgLoss: 310},
				Exits:         exits.StrategyRules{ProfitTarget: 0.25, StopLossMultiple: 2.00, DTEFloor: 0, MinHoldDays: 0},
			},
		},
		Engine: EngineConfig{
			CycleInterval: time.Minute,
			QuoteTTL:      5 * time.Second,
			HistoryDepth:  96,
			SnapshotKeep:  48,
		},
	}
}

// Load reads YAML from path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate constructs every table-backed component once, so a gap or
// overlap in any table fails here and nowhere else.
func (c Config) Validate() error {
	if _, err := regime.NewClassifier(c.Regimes); err != nil {
		return fmt.Errorf("regime table: %w", err)
	}
	if _, err := tier.NewGate(c.Tiers); err != nil {
		return fmt.Errorf("tier table: %w", err)
	}
	if _, err := correlation.NewLedger(c.Correlation); err != nil {
		return fmt.Errorf("correlation table: %w", err)
	}
	for name, s := range c.Strategies {
		if len(s.RequiredRoles) == 0 {
			return fmt.Errorf("strategy %q has no required roles", name)
		}
		if s.BPPerUnit <= 0 {
			return fmt.Errorf("strategy %q bp_per_unit must be positive", name)
		}
		if s.AnchorRole != "" && !contains(s.RequiredRoles, s.AnchorRole) {
			return fmt.Errorf("strategy %q anchor role %q not in required roles", name, s.AnchorRole)
		}
	}
	return nil
}

// RequiredRoles converts the strategy table to the registry's form.
func (c Config) RequiredRoles() map[string][]positions.Role {
	out := make(map[string][]positions.Role, len(c.Strategies))
	for name, s := range c.Strategies {
		roles := make([]positions.Role, len(s.RequiredRoles))
		for i, r := range s.RequiredRoles {
			roles[i] = positions.Role(r)
		}
		out[name] = roles
	}
	return out
}

// ExitRules converts the strategy table to the exit evaluator's form.
func (c Config) ExitRules() map[string]exits.StrategyRules {
	out := make(map[string]exits.StrategyRules, len(c.Strategies))
	for name, s := range c.Strategies {
		out[name] = s.Exits
	}
	return out
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}
