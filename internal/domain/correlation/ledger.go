// Package correlation enforces concentration ceilings across groups of
// materially correlated symbols. The ledger tracks the live open count
// per group and admits or refuses new exposure against a normal or a
// tighter stressed ceiling.
package correlation

import (
	"fmt"
	"math"
	"sync"

	"github.com/sawpanic/optiondesk/internal/domain/risk"
)

// GroupID identifies a correlation group.
type GroupID string

// Group is one configured correlation bucket.
type Group struct {
	ID            GroupID  `yaml:"id" json:"id"`
	Members       []string `yaml:"members" json:"members"`
	NormalCeiling int      `yaml:"normal_ceiling" json:"normal_ceiling"`
	StressCeiling int      `yaml:"stress_ceiling" json:"stress_ceiling"`
	RiskWeight    float64  `yaml:"risk_weight" json:"risk_weight"`
}

// Config holds the correlation group table.
type Config struct {
	Groups []Group `yaml:"groups"`
}

// DefaultConfig returns the built-in grouping.
func DefaultConfig() Config {
	return Config{Groups: []Group{
		{ID: "us_large_cap", Members: []string{"SPY", "SPX", "ES", "QQQ", "NDX"}, NormalCeiling: 3, StressCeiling: 2, RiskWeight: 1.0},
		{ID: "us_small_cap", Members: []string{"IWM", "RUT"}, NormalCeiling: 2, StressCeiling: 1, RiskWeight: 1.2},
		{ID: "rates", Members: []string{"TLT", "IEF", "ZB"}, NormalCeiling: 2, StressCeiling: 1, RiskWeight: 0.9},
		{ID: "gold", Members: []string{"GLD", "GC"}, NormalCeiling: 2, StressCeiling: 1, RiskWeight: 0.8},
		{ID: "volatility", Members: []string{"VXX", "UVXY"}, NormalCeiling: 1, StressCeiling: 1, RiskWeight: 1.5},
	}}
}

// Admission is the tagged outcome of an admission check, so callers
// cannot ignore the refusal reason.
type Admission struct {
	Allowed bool    `json:"allowed"`
	Reason  string  `json:"reason"`
	GroupID GroupID `json:"group_id,omitempty"`
	Open    int     `json:"open"`
	Ceiling int     `json:"ceiling"`
}

type groupState struct {
	cfg  Group
	open int
}

// Ledger tracks open exposure per correlation group. The open-count map
// is mutated only through RecordOpen/RecordClose, behind a mutex, so the
// single-writer discipline survives a multi-threaded host.
type Ledger struct {
	mu       sync.Mutex
	groups   map[GroupID]*groupState
	bySymbol map[string]GroupID
}

// NewLedger validates the group table and builds a ledger. A symbol
// appearing in two groups is a startup error.
func NewLedger(cfg Config) (*Ledger, error) {
	l := &Ledger{
		groups:   make(map[GroupID]*groupState, len(cfg.Groups)),
		bySymbol: make(map[string]GroupID),
	}
	for _, g := range cfg.Groups {
		if g.ID == "" {
			return nil, fmt.Errorf("%w: correlation group with empty id", risk.ErrConfigInconsistent)
		}
		if _, dup := l.groups[g.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate correlation group %q", risk.ErrConfigInconsistent, g.ID)
		}
		if g.NormalCeiling <= 0 || g.StressCeiling <= 0 {
			return nil, fmt.Errorf("%w: group %q ceilings must be positive", risk.ErrConfigInconsistent, g.ID)
		}
		if g.StressCeiling > g.NormalCeiling {
			return nil, fmt.Errorf("%w: group %q stress ceiling %d above normal ceiling %d",
				risk.ErrConfigInconsistent, g.ID, g.StressCeiling, g.NormalCeiling)
		}
		l.groups[g.ID] = &groupState{cfg: g}
		for _, sym := range g.Members {
			if prev, taken := l.bySymbol[sym]; taken {
				return nil, fmt.Errorf("%w: symbol %q in groups %q and %q", risk.ErrConfigInconsistent, sym, prev, g.ID)
			}
			l.bySymbol[sym] = g.ID
		}
	}
	return l, nil
}

// GroupOf returns the group a symbol belongs to, if any. Symbols outside
// every group are unbounded.
func (l *Ledger) GroupOf(symbol string) (GroupID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.bySymbol[symbol]
	return id, ok
}

// CanAdd checks whether one more position fits under the group's ceiling.
// The stressed flag selects the tighter ceiling and is driven externally
// by the current regime.
func (l *Ledger) CanAdd(id GroupID, stressed bool) Admission {
	l.mu.Lock()
	defer l.mu.Unlock()
	gs, ok := l.groups[id]
	if !ok {
		return Admission{Allowed: true, Reason: "symbol not in any correlation group"}
	}
	return admit(gs, stressed)
}

// Admit is the symbol-level convenience over GroupOf + CanAdd.
func (l *Ledger) Admit(symbol string, stressed bool) Admission {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.bySymbol[symbol]
	if !ok {
		return Admission{Allowed: true, Reason: "symbol not in any correlation group"}
	}
	return admit(l.groups[id], stressed)
}

func admit(gs *groupState, stressed bool) Admission {
	ceiling := gs.cfg.NormalCeiling
	if stressed {
		ceiling = gs.cfg.StressCeiling
	}
	a := Admission{GroupID: gs.cfg.ID, Open: gs.open, Ceiling: ceiling}
	if gs.open+1 > ceiling {
		a.Reason = fmt.Sprintf("group %s at %d/%d", gs.cfg.ID, gs.open, ceiling)
		return a
	}
	a.Allowed = true
	a.Reason = fmt.Sprintf("group %s at %d/%d", gs.cfg.ID, gs.open, ceiling)
	return a
}

// RecordOpen increments the open count for the symbol's group. Symbols
// outside every group are a no-op. This is the only open-count writer,
// together with RecordClose.
func (l *Ledger) RecordOpen(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.bySymbol[symbol]; ok {
		l.groups[id].open++
	}
}

// RecordClose decrements the open count for the symbol's group, never
// below zero.
func (l *Ledger) RecordClose(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.bySymbol[symbol]; ok {
		if gs := l.groups[id]; gs.open > 0 {
			gs.open--
		}
	}
}

// OpenCount returns the live open count for a group.
func (l *Ledger) OpenCount(id GroupID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gs, ok := l.groups[id]; ok {
		return gs.open
	}
	return 0
}

// Headroom returns how many more positions the symbol's group admits
// under the selected ceiling. Symbols outside every group report a
// large headroom so they never bind the sizing minimum.
func (l *Ledger) Headroom(symbol string, stressed bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.bySymbol[symbol]
	if !ok {
		return math.MaxInt // effectively unbounded
	}
	gs := l.groups[id]
	ceiling := gs.cfg.NormalCeiling
	if stressed {
		ceiling = gs.cfg.StressCeiling
	}
	if h := ceiling - gs.open; h > 0 {
		return h
	}
	return 0
}

// Groups returns the configured groups with their live open counts.
func (l *Ledger) Groups() []Group {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Group, 0, len(l.groups))
	for _, gs := range l.groups {
		out = append(out, gs.cfg)
	}
	return out
}
