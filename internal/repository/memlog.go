package repository

import (
	"context"
	"sync"
	"time"

	"heatwise/internal/models"

	"github.com/google/uuid"
)

// MemoryLog is the in-process EventLog: same contract as the SQLite log
// (per-device order, idempotent append) without durability. Used in tests
// and for ephemeral single-process deployments.
type MemoryLog struct {
	mu     sync.RWMutex
	events map[string][]models.StoredEvent // device -> ordered events
	byID   map[string]int64                // event_id -> assigned offset
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		events: make(map[string][]models.StoredEvent),
		byID:   make(map[string]int64),
	}
}

var _ EventLog = (*MemoryLog)(nil)

// Append assigns the next per-device offset, deduplicating on EventID.
func (l *MemoryLog) Append(_ context.Context, e models.DomainEvent) (int64, error) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if off, ok := l.byID[e.EventID]; ok {
		return off, nil
	}
	off := int64(len(l.events[e.DeviceID]))
	l.events[e.DeviceID] = append(l.events[e.DeviceID], models.StoredEvent{Offset: off, Event: e})
	l.byID[e.EventID] = off
	return off, nil
}

// ReadFrom returns up to limit events with offset >= from in append order.
func (l *MemoryLog) ReadFrom(_ context.Context, deviceID string, from int64, limit int) ([]models.StoredEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stream := l.events[deviceID]
	if from < 0 {
		from = 0
	}
	if from >= int64(len(stream)) {
		return nil, nil
	}
	end := from + int64(limit)
	if end > int64(len(stream)) {
		end = int64(len(stream))
	}
	out := make([]models.StoredEvent, end-from)
	copy(out, stream[from:end])
	return out, nil
}

// Head returns the highest assigned offset, or -1 for an empty partition.
func (l *MemoryLog) Head(_ context.Context, deviceID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.events[deviceID])) - 1, nil
}
