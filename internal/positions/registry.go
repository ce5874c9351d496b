package positions

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LedgerHook receives position open/close notifications so the
// correlation ledger's counts stay in lockstep with leg state. The
// registry is the single call site for both notifications.
type LedgerHook interface {
	RecordOpen(symbol string)
	RecordClose(symbol string)
}

// LegData carries the entry attributes of a new leg.
type LegData struct {
	Contract   string
	Right      Right
	Quantity   int
	Strike     float64
	Expiry     time.Time
	EntryPrice float64
}

// Registry is the canonical store of open positions. Every mutation
// goes through a single named entry point behind one mutex, so the
// single-writer discipline survives a multi-threaded host.
type Registry struct {
	mu        sync.Mutex
	positions map[string]*Position
	required  map[string][]Role
	ledger    LedgerHook
}

// Option configures a Registry.
type Option func(*Registry)

// WithLedger attaches the correlation ledger hook. Open/close counts
// are then mutated exactly once per position transition.
func WithLedger(h LedgerHook) Option {
	return func(r *Registry) { r.ledger = h }
}

// NewRegistry builds a registry. The required map gives each strategy's
// required role set for status derivation; strategies absent from the
// map have no required roles.
func NewRegistry(required map[string][]Role, opts ...Option) *Registry {
	r := &Registry{
		positions: make(map[string]*Position),
		required:  required,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create starts an empty position in BUILDING and returns its id.
func (r *Registry) Create(strategy, symbol string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &Position{
		ID:       uuid.NewString(),
		Strategy: strategy,
		Symbol:   symbol,
		OpenedAt: time.Now().UTC(),
	}
	r.positions[p.ID] = p
	return p.ID
}

// AddLeg appends a leg to the position. Referencing an unknown position
// is a hard failure; so is appending to a fully closed position.
func (r *Registry) AddLeg(positionID string, role Role, d LegData) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[positionID]
	if !ok {
		return "", fmt.Errorf("position %s not found", positionID)
	}
	if len(p.Legs) > 0 && len(p.OpenLegs()) == 0 {
		return "", fmt.Errorf("position %s is closed", positionID)
	}
	if role == "" {
		return "", fmt.Errorf("leg role must not be empty")
	}
	if d.Quantity == 0 {
		return "", fmt.Errorf("leg quantity must be nonzero")
	}
	if d.EntryPrice < 0 {
		return "", fmt.Errorf("leg entry price must not be negative")
	}

	openedBefore := len(p.OpenLegs())

	now := time.Now().UTC()
	leg := &Leg{
		ID:            uuid.NewString(),
		PositionID:    p.ID,
		Role:          role,
		Contract:      d.Contract,
		Right:         d.Right,
		Quantity:      d.Quantity,
		EntryQuantity: d.Quantity,
		Strike:        d.Strike,
		Expiry:        d.Expiry,
		EntryPrice:    d.EntryPrice,
		LatestPrice:   d.EntryPrice,
		Status:        LegOpen,
		OpenedAt:      now,
	}
	p.Legs = append(p.Legs, leg)

	if openedBefore == 0 && r.ledger != nil {
		r.ledger.RecordOpen(p.Symbol)
	}
	return leg.ID, nil
}

// CloseLeg closes the leg identified by id or, failing that, the oldest
// open leg carrying the role. A missing or already-closed leg returns
// nil: a no-op, not a fault. Ledger counts are decremented exactly once,
// when the last open leg closes.
func (r *Registry) CloseLeg(positionID, roleOrID string, exitPrice float64, at time.Time) *Leg {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[positionID]
	if !ok {
		log.Warn().Str("position", positionID).Msg("close_leg on unknown position")
		return nil
	}

	var leg *Leg
	for _, l := range p.Legs {
		if l.ID == roleOrID && l.Open() {
			leg = l
			break
		}
	}
	if leg == nil {
		for _, l := range p.Legs {
			if l.Role == Role(roleOrID) && l.Open() {
				leg = l
				break
			}
		}
	}
	if leg == nil {
		log.Warn().Str("position", positionID).Str("leg", roleOrID).Msg("close_leg found no open leg")
		return nil
	}

	closedAt := at.UTC()
	leg.Status = LegClosed
	leg.ClosedAt = &closedAt
	leg.LatestPrice = exitPrice
	leg.Realized = (exitPrice - leg.EntryPrice) * float64(leg.EntryQuantity) * ContractMultiplier
	leg.Quantity = 0

	if len(p.OpenLegs()) == 0 {
		p.ClosedAt = &closedAt
		if r.ledger != nil {
			r.ledger.RecordClose(p.Symbol)
		}
	}

	out := *leg
	return &out
}

// ClosePosition closes every open leg at the supplied per-contract exit
// prices (keyed by contract, falling back to the latest mark) and
// returns the closed legs. Ledger accounting follows CloseLeg's rule.
func (r *Registry) ClosePosition(positionID string, exitPrices map[string]float64, at time.Time) []Leg {
	var closed []Leg
	for {
		r.mu.Lock()
		p, ok := r.positions[positionID]
		var next *Leg
		if ok {
			for _, l := range p.Legs {
				if l.Open() {
					next = l
					break
				}
			}
		}
		var id string
		var price float64
		if next != nil {
			id = next.ID
			price = next.LatestPrice
			if px, ok := exitPrices[next.Contract]; ok {
				price = px
			}
		}
		r.mu.Unlock()

		if next == nil {
			return closed
		}
		if leg := r.CloseLeg(positionID, id, price, at); leg != nil {
			closed = append(closed, *leg)
		}
	}
}

// UpdateMarks sets the latest price of open legs from a per-contract
// price map. Unknown contracts are left at their previous mark.
func (r *Registry) UpdateMarks(positionID string, marks map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[positionID]
	if !ok {
		return fmt.Errorf("position %s not found", positionID)
	}
	for _, l := range p.Legs {
		if !l.Open() {
			continue
		}
		if px, ok := marks[l.Contract]; ok {
			l.LatestPrice = px
		}
	}
	return nil
}

// Status derives the position's status from its legs.
func (r *Registry) Status(positionID string) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[positionID]
	if !ok {
		return "", fmt.Errorf("position %s not found", positionID)
	}
	return deriveStatus(p, r.required[p.Strategy]), nil
}

// Get returns a deep copy of the position, so callers cannot bypass the
// registry's mutation API.
func (r *Registry) Get(positionID string) (Position, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[positionID]
	if !ok {
		return Position{}, false
	}
	return clonePosition(p), true
}

// LegsByRole returns copies of the position's legs carrying the role.
func (r *Registry) LegsByRole(positionID string, role Role) []Leg {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[positionID]
	if !ok {
		return nil
	}
	var out []Leg
	for _, l := range p.LegsByRole(role) {
		out = append(out, *l)
	}
	return out
}

// Open returns copies of every position that still has an open leg or
// is still building.
func (r *Registry) Open() []Position {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Position
	for _, p := range r.positions {
		if deriveStatus(p, r.required[p.Strategy]) != StatusClosed {
			out = append(out, clonePosition(p))
		}
	}
	return out
}

// All returns copies of every position, open or closed.
func (r *Registry) All() []Position {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, clonePosition(p))
	}
	return out
}

// FindOpenAnchor scans read-only for a position of the strategy on the
// symbol that still has an open anchor-role leg. Recurring-leg
// strategies consult this before Create to avoid duplicate anchors.
func (r *Registry) FindOpenAnchor(strategy, symbol string, anchor Role) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.positions {
		if p.Strategy != strategy || p.Symbol != symbol {
			continue
		}
		for _, l := range p.LegsByRole(anchor) {
			if l.Open() {
				return p.ID, true
			}
		}
	}
	return "", false
}

// ReseedLedger replays one RecordOpen per position that still has an
// open leg. Called once after Restore, so correlation counts are rebuilt
// through the same hook that live mutations use.
func (r *Registry) ReseedLedger() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ledger == nil {
		return
	}
	for _, p := range r.positions {
		if len(p.OpenLegs()) > 0 {
			r.ledger.RecordOpen(p.Symbol)
		}
	}
}

// RequiredRoles returns the strategy's required role set.
func (r *Registry) RequiredRoles(strategy string) []Role {
	return r.required[strategy]
}

func clonePosition(p *Position) Position {
	out := *p
	out.Legs = make([]*Leg, len(p.Legs))
	for i, l := range p.Legs {
		leg := *l
		out.Legs[i] = &leg
	}
	if p.Metadata != nil {
		out.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
