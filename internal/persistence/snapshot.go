package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kuyayvault/internal/vault"
)

// SnapshotStore saves and restores full vault state snapshots. The vault
// aggregate is small, so a snapshot is written after every event-batch flush
// and recovery never replays the event log.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Save persists a snapshot keyed by its event sequence. Returns the encoded
// size in bytes.
func (s *SnapshotStore) Save(ctx context.Context, snap vault.Snapshot) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vault.snapshots
			(snapshot_id, sequence, data, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, size_bytes = $4
	`, uuid.New(), snap.Sequence, data, len(data), time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// LoadLatest returns the most recent snapshot, or false on a cold start with
// no snapshot written yet.
func (s *SnapshotStore) LoadLatest(ctx context.Context) (vault.Snapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data FROM vault.snapshots
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return vault.Snapshot{}, false, nil
		}
		return vault.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	var snap vault.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return vault.Snapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// Prune deletes all but the newest keep snapshots.
func (s *SnapshotStore) Prune(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM vault.snapshots
		WHERE sequence NOT IN (
			SELECT sequence FROM vault.snapshots ORDER BY sequence DESC LIMIT $1
		)
	`, keep)
	return err
}
