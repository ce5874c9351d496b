package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/optiondesk/internal/persistence"
	"github.com/sawpanic/optiondesk/internal/positions"
)

func newMockRepo(t *testing.T) (persistence.SnapshotRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSnapshotRepo(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func testSnapshot() positions.Snapshot {
	return positions.Snapshot{
		TakenAt: time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC),
		Positions: []positions.Position{{
			ID:       "pos-1",
			Strategy: "put_credit_spread",
			Symbol:   "SPY",
		}},
	}
}

func TestSave(t *testing.T) {
	repo, mock := newMockRepo(t)
	snap := testSnapshot()
	doc, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectQuery(`INSERT INTO registry_snapshots`).
		WithArgs(snap.TakenAt, doc).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.Save(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDuplicateTimestamp(t *testing.T) {
	repo, mock := newMockRepo(t)
	snap := testSnapshot()

	mock.ExpectQuery(`INSERT INTO registry_snapshots`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Save(context.Background(), snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already stored")
}

func TestLatest(t *testing.T) {
	repo, mock := newMockRepo(t)
	snap := testSnapshot()
	doc, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT document\s+FROM registry_snapshots`).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(doc))

	got, err := repo.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap.TakenAt, got.TakenAt)
	require.Len(t, got.Positions, 1)
	assert.Equal(t, "pos-1", got.Positions[0].ID)
}

func TestLatestEmptyTable(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT document\s+FROM registry_snapshots`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Latest(context.Background())
	assert.ErrorIs(t, err, persistence.ErrNoSnapshot)
}

func TestLatestCorruptDocument(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT document\s+FROM registry_snapshots`).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow([]byte("{broken")))

	_, err := repo.Latest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestPrune(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM registry_snapshots`).
		WithArgs(48).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.Prune(context.Background(), 48)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestPruneKeepsAtLeastOne(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM registry_snapshots`).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.Prune(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
