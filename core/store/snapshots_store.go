package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SafetySnapshot is a persisted daily rollup of the KPI dashboard, written
// by the snapshot scheduler so trend history survives recomputation.
type SafetySnapshot struct {
	ID           int64     `json:"id"`
	SnapshotDate string    `json:"snapshot_date"` // YYYY-MM-DD
	Payload      string    `json:"payload"`
	CreatedAt    time.Time `json:"created_at"`
}

type SnapshotsStore interface {
	UpsertSnapshot(ctx context.Context, date string, payload string) error
	ListSnapshots(ctx context.Context, limit int) ([]SafetySnapshot, error)
}

type snapshotsStore struct {
	db *sql.DB
}

func NewSnapshotsStore(db *sql.DB) SnapshotsStore {
	return &snapshotsStore{db: db}
}

func (s *snapshotsStore) UpsertSnapshot(ctx context.Context, date string, payload string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO safety_snapshots(snapshot_date, payload, created_at)
		VALUES(?,?,?)
		ON CONFLICT (snapshot_date) DO UPDATE SET payload=excluded.payload, created_at=excluded.created_at`,
		date, payload, time.Now().UTC())
	return err
}

func (s *snapshotsStore) ListSnapshots(ctx context.Context, limit int) ([]SafetySnapshot, error) {
	if limit <= 0 || limit > 366 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, snapshot_date, payload, created_at
		FROM safety_snapshots ORDER BY snapshot_date DESC LIMIT %d`, limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []SafetySnapshot
	for rows.Next() {
		var snap SafetySnapshot
		if err := rows.Scan(&snap.ID, &snap.SnapshotDate, &snap.Payload, &snap.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, snap)
	}
	return res, rows.Err()
}
