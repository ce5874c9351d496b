// Package postgres implements the snapshot repository over PostgreSQL.
// The registry snapshot is stored as a single JSONB document per row;
// reconstruction never needs to join across tables.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/optiondesk/internal/persistence"
	"github.com/sawpanic/optiondesk/internal/positions"
)

// Schema for reference:
//
//	CREATE TABLE registry_snapshots (
//	    id       BIGSERIAL PRIMARY KEY,
//	    taken_at TIMESTAMPTZ NOT NULL UNIQUE,
//	    document JSONB NOT NULL
//	);

type snapshotRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSnapshotRepo creates a PostgreSQL snapshot repository.
func NewSnapshotRepo(db *sqlx.DB, timeout time.Duration) persistence.SnapshotRepo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &snapshotRepo{db: db, timeout: timeout}
}

// Save persists the snapshot document.
func (r *snapshotRepo) Save(ctx context.Context, snap positions.Snapshot) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	var id int64
	query := `
		INSERT INTO registry_snapshots (taken_at, document)
		VALUES ($1, $2)
		RETURNING id`
	err = r.db.QueryRowxContext(ctx, query, snap.TakenAt, doc).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, fmt.Errorf("snapshot for %s already stored: %w", snap.TakenAt.Format(time.RFC3339), err)
		}
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return id, nil
}

// Latest returns the most recent snapshot.
func (r *snapshotRepo) Latest(ctx context.Context) (positions.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc []byte
	query := `
		SELECT document
		FROM registry_snapshots
		ORDER BY taken_at DESC
		LIMIT 1`
	if err := r.db.QueryRowxContext(ctx, query).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return positions.Snapshot{}, persistence.ErrNoSnapshot
		}
		return positions.Snapshot{}, fmt.Errorf("select latest snapshot: %w", err)
	}

	snap, err := positions.UnmarshalSnapshot(doc)
	if err != nil {
		return positions.Snapshot{}, fmt.Errorf("stored snapshot corrupt: %w", err)
	}
	return snap, nil
}

// Prune deletes all but the most recent keep snapshots.
func (r *snapshotRepo) Prune(ctx context.Context, keep int) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if keep < 1 {
		keep = 1
	}
	query := `
		DELETE FROM registry_snapshots
		WHERE id NOT IN (
			SELECT id FROM registry_snapshots
			ORDER BY taken_at DESC
			LIMIT $1
		)`
	res, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return n, nil
}
