package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"heatwise/internal/models"
)

// CheckpointSQLite stores one (device, offset) row per partition.
type CheckpointSQLite struct {
	db *sql.DB
}

func NewCheckpointSQLite(db *sql.DB) *CheckpointSQLite {
	return &CheckpointSQLite{db: db}
}

var _ Checkpoints = (*CheckpointSQLite)(nil)

const (
	upsertCheckpointSQL = `
		INSERT INTO view_checkpoints (device_id, seq, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			seq=excluded.seq,
			updated_at=excluded.updated_at
	`
	selectCheckpointSQL = `SELECT seq FROM view_checkpoints WHERE device_id = ?`
)

// Save upserts the highest folded offset for the device.
func (r *CheckpointSQLite) Save(ctx context.Context, deviceID string, offset int64) error {
	_, err := r.db.ExecContext(ctx, upsertCheckpointSQL, deviceID, offset, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save checkpoint %q=%d: %w", deviceID, offset, err)
	}
	return nil
}

// Load returns the saved offset, or NoOffset when the device has no
// checkpoint yet (a fresh replica replays from the beginning).
func (r *CheckpointSQLite) Load(ctx context.Context, deviceID string) (int64, error) {
	var offset int64
	err := r.db.QueryRowContext(ctx, selectCheckpointSQL, deviceID).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NoOffset, nil
	}
	if err != nil {
		return models.NoOffset, fmt.Errorf("load checkpoint %q: %w", deviceID, err)
	}
	return offset, nil
}
