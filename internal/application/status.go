package application

import (
	"time"

	"github.com/sawpanic/optiondesk/internal/domain/correlation"
)

// GroupStatus is one correlation group's live usage.
type GroupStatus struct {
	ID            correlation.GroupID `json:"id"`
	Open          int                 `json:"open"`
	NormalCeiling int                 `json:"normal_ceiling"`
	StressCeiling int                 `json:"stress_ceiling"`
}

// Status is the read-only view served on the status port.
type Status struct {
	Timestamp     time.Time      `json:"timestamp"`
	Regime        string         `json:"regime"`
	Tier          string         `json:"tier,omitempty"`
	OpenPositions int            `json:"open_positions"`
	ExitTally     map[string]int `json:"exit_tally"`
	Groups        []GroupStatus  `json:"groups"`
	IndexTrend    float64        `json:"index_trend"`
}

// Status reports the engine's current state without mutating anything.
func (e *Engine) Status() Status {
	s := Status{
		Timestamp: time.Now().UTC(),
		ExitTally: make(map[string]int),
	}
	if e.lastRegime != nil {
		s.Regime = e.lastRegime.Name
	}
	if e.lastAccount != nil {
		if t, err := e.gate.SelectTier(e.lastAccount.TotalValue); err == nil {
			s.Tier = t.Name
		}
	}

	open := 0
	for _, p := range e.registry.Open() {
		if len(p.OpenLegs()) > 0 {
			open++
		}
	}
	s.OpenPositions = open

	for reason, n := range e.exiter.Tally() {
		s.ExitTally[reason.String()] = n
	}

	for _, g := range e.ledger.Groups() {
		s.Groups = append(s.Groups, GroupStatus{
			ID:            g.ID,
			Open:          e.ledger.OpenCount(g.ID),
			NormalCeiling: g.NormalCeiling,
			StressCeiling: g.StressCeiling,
		})
	}

	s.IndexTrend = e.history.RateOfRise(12)
	return s
}
