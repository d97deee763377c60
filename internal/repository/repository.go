package repository

import (
	"context"
	"database/sql"

	"heatwise/internal/models"
)

// EventLog is the append-only, per-device-partitioned event sequence, the
// single source of truth for all controller state.
//
// Append assigns a monotonic per-device offset. It is idempotent on
// EventID: a retried append after an ambiguous failure returns the offset
// of the original write instead of duplicating the event. ReadFrom returns
// events with offset >= from in append order; it is restartable from any
// prior offset, so consumers realize a lazy unbounded sequence by polling
// batches from their cursor.
type EventLog interface {
	Append(ctx context.Context, e models.DomainEvent) (int64, error)
	ReadFrom(ctx context.Context, deviceID string, from int64, limit int) ([]models.StoredEvent, error)
	Head(ctx context.Context, deviceID string) (int64, error)
}

// Checkpoints persists the view builder's (partition, offset) cursor so a
// restart resumes without refolding checkpointed offsets.
type Checkpoints interface {
	Save(ctx context.Context, deviceID string, offset int64) error
	Load(ctx context.Context, deviceID string) (int64, error)
}

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

type Repository struct {
	Events      EventLog
	Checkpoints Checkpoints
	Auth        Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Events:      NewEventSQLite(db),
		Checkpoints: NewCheckpointSQLite(db),
		Auth:        NewUserRepository(db),
	}
}
