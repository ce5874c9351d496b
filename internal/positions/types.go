// Package positions is the canonical store of every open multi-leg
// position and its legs. Position status is always derived from leg
// state, never stored independently.
package positions

import (
	"math"
	"time"
)

// ContractMultiplier converts per-share option prices to dollar terms.
const ContractMultiplier = 100.0

// Status of a multi-leg position, derived purely from its legs.
type Status string

const (
	StatusBuilding        Status = "building"
	StatusActive          Status = "active"
	StatusPartiallyClosed Status = "partially_closed"
	StatusClosed          Status = "closed"
)

// LegStatus of a single leg.
type LegStatus string

const (
	LegOpen   LegStatus = "open"
	LegClosed LegStatus = "closed"
)

// Role tags a leg's function within its strategy.
type Role string

const (
	RoleProtectiveLong Role = "protective_long"
	RolePrimaryShort   Role = "primary_short"
	RoleSecondaryShort Role = "secondary_short"
	RoleAnchorLong     Role = "anchor_long"
)

// Right is the option right of a leg's contract.
type Right string

const (
	RightPut   Right = "put"
	RightCall  Right = "call"
	RightStock Right = "stock"
)

// Leg is one constituent contract of a multi-leg position, exclusively
// owned by that position and closeable independently of its siblings.
type Leg struct {
	ID         string `json:"id"`
	PositionID string `json:"position_id"`
	Role       Role   `json:"role"`
	Contract   string `json:"contract"`
	Right      Right  `json:"right"`
	// Quantity is signed (sign = direction). It never changes magnitude
	// after entry except to exactly 0 at close.
	Quantity      int        `json:"quantity"`
	EntryQuantity int        `json:"entry_quantity"`
	Strike        float64    `json:"strike"`
	Expiry        time.Time  `json:"expiry"`
	EntryPrice    float64    `json:"entry_price"`
	LatestPrice   float64    `json:"latest_price"`
	Status        LegStatus  `json:"status"`
	OpenedAt      time.Time  `json:"opened_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	// Realized is the dollar contribution locked in at close.
	Realized float64 `json:"realized"`
}

// Open reports whether the leg is still open.
func (l *Leg) Open() bool { return l.Status == LegOpen }

// Short reports whether the leg was entered short.
func (l *Leg) Short() bool { return l.EntryQuantity < 0 }

// Unrealized returns the leg's mark-to-model dollar contribution while
// open, 0 once closed.
func (l *Leg) Unrealized() float64 {
	if !l.Open() {
		return 0
	}
	return (l.LatestPrice - l.EntryPrice) * float64(l.Quantity) * ContractMultiplier
}

// DTE returns whole days until the leg's expiry, negative past expiry.
func (l *Leg) DTE(now time.Time) int {
	return int(math.Floor(l.Expiry.Sub(now).Hours() / 24))
}

// Position is one multi-leg position. Its status is a pure function of
// leg statuses and the strategy's required role set.
type Position struct {
	ID       string            `json:"id"`
	Strategy string            `json:"strategy"`
	Symbol   string            `json:"symbol"`
	Legs     []*Leg            `json:"legs"`
	OpenedAt time.Time         `json:"opened_at"`
	ClosedAt *time.Time        `json:"closed_at,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OpenLegs returns the legs still open, in open order.
func (p *Position) OpenLegs() []*Leg {
	var out []*Leg
	for _, l := range p.Legs {
		if l.Open() {
			out = append(out, l)
		}
	}
	return out
}

// LegsByRole returns every leg carrying the role, open or closed.
func (p *Position) LegsByRole(role Role) []*Leg {
	var out []*Leg
	for _, l := range p.Legs {
		if l.Role == role {
			out = append(out, l)
		}
	}
	return out
}

// PnL returns the position's mark-to-model dollar P&L: unrealized on
// open legs plus realized on closed ones.
func (p *Position) PnL() float64 {
	var pnl float64
	for _, l := range p.Legs {
		pnl += l.Unrealized() + l.Realized
	}
	return pnl
}

// EntryBasis returns the absolute net entry value of the position in
// dollars: the credit received for net-short entries, the debit paid
// for net-long ones. Used as the stop-loss and profit-target base.
func (p *Position) EntryBasis() float64 {
	var net float64
	for _, l := range p.Legs {
		net += l.EntryPrice * float64(l.EntryQuantity) * ContractMultiplier
	}
	return math.Abs(net)
}

// MinDTE returns the smallest days-to-expiry across open option legs,
// or a large value when none are open.
func (p *Position) MinDTE(now time.Time) int {
	min := math.MaxInt
	for _, l := range p.Legs {
		if !l.Open() || l.Right == RightStock {
			continue
		}
		if d := l.DTE(now); d < min {
			min = d
		}
	}
	return min
}

// deriveStatus recomputes the position status from leg state. The
// required role set comes from the strategy table.
func deriveStatus(p *Position, required []Role) Status {
	if len(p.Legs) == 0 {
		return StatusBuilding
	}

	open, closed := 0, 0
	for _, l := range p.Legs {
		if l.Open() {
			open++
		} else {
			closed++
		}
	}

	if open == 0 {
		return StatusClosed
	}

	for _, role := range required {
		if len(p.LegsByRole(role)) == 0 {
			return StatusBuilding
		}
	}

	if closed > 0 {
		return StatusPartiallyClosed
	}
	return StatusActive
}
