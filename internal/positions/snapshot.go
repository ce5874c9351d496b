package positions

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Snapshot is a serializable image of the registry: positions, legs and
// entry data, sufficient to reconstruct the registry after a restart
// without re-deriving history from the execution collaborator. Statuses
// are not stored; they are re-derived from leg state on load.
type Snapshot struct {
	TakenAt   time.Time  `json:"taken_at"`
	Positions []Position `json:"positions"`
}

// Snapshot captures the registry's current contents.
func (r *Registry) Snapshot(now time.Time) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{TakenAt: now.UTC()}
	for _, p := range r.positions {
		s.Positions = append(s.Positions, clonePosition(p))
	}
	sort.Slice(s.Positions, func(i, j int) bool { return s.Positions[i].ID < s.Positions[j].ID })
	return s
}

// Restore replaces the registry contents with the snapshot's. Ledger
// hooks are not replayed: the caller re-seeds correlation counts from
// the restored open positions.
func (r *Registry) Restore(s Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	restored := make(map[string]*Position, len(s.Positions))
	for i := range s.Positions {
		p := clonePosition(&s.Positions[i])
		if p.ID == "" {
			return fmt.Errorf("snapshot position %d has no id", i)
		}
		if _, dup := restored[p.ID]; dup {
			return fmt.Errorf("snapshot contains duplicate position %s", p.ID)
		}
		for _, l := range p.Legs {
			if l.PositionID != p.ID {
				return fmt.Errorf("leg %s references position %s, owned by %s", l.ID, l.PositionID, p.ID)
			}
		}
		cp := p
		restored[p.ID] = &cp
	}
	r.positions = restored
	return nil
}

// MarshalSnapshot encodes a snapshot as JSON.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot decodes a snapshot from JSON.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
