package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"heatwise/internal/models"

	"github.com/google/uuid"
)

// EventSQLite is the durable event log backed by SQLite. One row per
// event; (device_id, offset) is unique and offsets are assigned inside the
// append transaction, so readers see a gapless per-device order.
type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

var _ EventLog = (*EventSQLite)(nil)

const (
	selectOffsetByEventIDSQL = `SELECT seq FROM heater_events WHERE event_id = ?`
	selectNextOffsetSQL      = `SELECT COALESCE(MAX(seq), -1) + 1 FROM heater_events WHERE device_id = ?`
	insertEventSQL           = `INSERT INTO heater_events (device_id, seq, event_id, occurred_at, kind, payload) VALUES (?, ?, ?, ?, ?, ?)`
	selectEventsFromSQL      = `SELECT seq, payload FROM heater_events WHERE device_id = ? AND seq >= ? ORDER BY seq ASC LIMIT ?`
	selectHeadOffsetSQL      = `SELECT COALESCE(MAX(seq), -1) FROM heater_events WHERE device_id = ?`
)

// Append inserts an event and returns its assigned offset. Missing
// EventID/OccurredAt are set here, matching the write path of the rest of
// the repo. If an event with the same EventID already exists, the existing
// offset is returned and nothing is written (dedup for retried appends).
func (r *EventSQLite) Append(ctx context.Context, e models.DomainEvent) (int64, error) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("marshal event %s: %w", e.EventID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Dedup: a retried append after an ambiguous failure must not
	// duplicate the event.
	var existing int64
	err = tx.QueryRowContext(ctx, selectOffsetByEventIDSQL, e.EventID).Scan(&existing)
	switch {
	case err == nil:
		return existing, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("lookup event %s: %w", e.EventID, err)
	}

	var next int64
	if err := tx.QueryRowContext(ctx, selectNextOffsetSQL, e.DeviceID).Scan(&next); err != nil {
		return 0, fmt.Errorf("next offset for %q: %w", e.DeviceID, err)
	}

	_, err = tx.ExecContext(ctx, insertEventSQL,
		e.DeviceID,
		next,
		e.EventID,
		e.OccurredAt.Format("2006-01-02 15:04:05"),
		string(e.Kind),
		string(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event %s: %w", e.EventID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return next, nil
}

// ReadFrom returns up to limit events for the device with offset >= from,
// in append order.
func (r *EventSQLite) ReadFrom(ctx context.Context, deviceID string, from int64, limit int) ([]models.StoredEvent, error) {
	rows, err := r.db.QueryContext(ctx, selectEventsFromSQL, deviceID, from, limit)
	if err != nil {
		return nil, fmt.Errorf("read events for %q from %d: %w", deviceID, from, err)
	}
	defer rows.Close()

	out := make([]models.StoredEvent, 0, limit)
	for rows.Next() {
		var (
			offset  int64
			payload string
		)
		if err := rows.Scan(&offset, &payload); err != nil {
			return nil, err
		}
		var ev models.DomainEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			// The log is append-only and cannot be corrected; surface the
			// row so the consumer can apply its skip policy.
			out = append(out, models.StoredEvent{Offset: offset})
			continue
		}
		out = append(out, models.StoredEvent{Offset: offset, Event: ev})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Head returns the highest assigned offset for the device, or -1 when the
// partition is empty.
func (r *EventSQLite) Head(ctx context.Context, deviceID string) (int64, error) {
	var head int64
	if err := r.db.QueryRowContext(ctx, selectHeadOffsetSQL, deviceID).Scan(&head); err != nil {
		return models.NoOffset, fmt.Errorf("head offset for %q: %w", deviceID, err)
	}
	return head, nil
}
