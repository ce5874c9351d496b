// Package persistence defines the storage contracts for the risk core.
// Only the position-registry snapshot is persisted: enough to rebuild
// the registry after a restart without replaying execution history.
package persistence

import (
	"context"
	"errors"

	"github.com/sawpanic/optiondesk/internal/positions"
)

// ErrNoSnapshot is returned when no snapshot has been stored yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// SnapshotRepo stores and retrieves registry snapshots.
type SnapshotRepo interface {
	// Save persists a snapshot and returns its storage id.
	Save(ctx context.Context, snap positions.Snapshot) (int64, error)
	// Latest returns the most recent snapshot, or ErrNoSnapshot.
	Latest(ctx context.Context) (positions.Snapshot, error)
	// Prune deletes all but the most recent keep snapshots.
	Prune(ctx context.Context, keep int) (int64, error)
}
