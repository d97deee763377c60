package models

import "time"

// NoOffset marks a view that has not folded any event yet.
const NoOffset int64 = -1

// MaterializedView is the read-side projection of one device's event
// stream. It is owned by the view builder, rebuilt deterministically from
// the log, and published to readers as an immutable snapshot; nothing else
// may mutate it.
type MaterializedView struct {
	DeviceID     string        `json:"device_id"`
	CurrentState DecisionState `json:"current_state"`

	// LastDecision is the most recent DECISION_CHANGED event, if any.
	LastDecision *StoredEvent `json:"last_decision,omitempty"`

	// RecentChanges holds the latest state-change events, most recent
	// first, bounded; insertion order equals log order.
	RecentChanges []StoredEvent `json:"recent_changes"`

	// Device status summary, updated by relay events without touching
	// CurrentState.
	LastCommand *RelayCommand `json:"last_command,omitempty"`
	LastAck     *RelayAck     `json:"last_ack,omitempty"`

	LastAppliedOffset int64     `json:"last_applied_offset"`
	HeadOffset        int64     `json:"head_offset"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Clone returns a deep enough copy for snapshot publication: the slice is
// copied so readers never observe in-place fold mutations.
func (v MaterializedView) Clone() *MaterializedView {
	cp := v
	cp.RecentChanges = make([]StoredEvent, len(v.RecentChanges))
	copy(cp.RecentChanges, v.RecentChanges)
	return &cp
}

// Health statuses reported by the query service.
const (
	HealthOK       = "ok"
	HealthNotReady = "not_ready"
)

// Health describes view freshness. Lag is observable data, not an error.
type Health struct {
	Status            string `json:"status"`
	LastAppliedOffset int64  `json:"last_applied_offset"`
	LagEstimate       int64  `json:"lag_estimate"`
}
