package models

import "time"

// EventKind tags the variants of the DomainEvent union.
type EventKind string

const (
	KindDecisionChanged    EventKind = "DECISION_CHANGED"
	KindRelayCommandIssued EventKind = "RELAY_COMMAND_ISSUED"
	KindRelayAckReceived   EventKind = "RELAY_ACK_RECEIVED"
)

// DecisionChanged records a controller state transition.
// Price/temperature are the inputs the decision was made on; either may be
// absent when the transition was caused by missing or stale inputs.
type DecisionChanged struct {
	From              DecisionState `json:"from"`
	To                DecisionState `json:"to"`
	Reason            string        `json:"reason"`
	PriceMinor        *int          `json:"at_price_minor,omitempty"`
	TemperatureTenths *int          `json:"at_temperature_tenths,omitempty"`
	Timestamp         time.Time     `json:"timestamp"`
}

// DomainEvent is the only thing persisted: a tagged union of the decision
// and relay events for one device. Exactly one of Decision, Command and Ack
// is set, matching Kind. EventID is the idempotency key; appending the same
// EventID twice is a no-op.
type DomainEvent struct {
	EventID    string    `json:"event_id"`
	DeviceID   string    `json:"device_id"`
	Kind       EventKind `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`

	Decision *DecisionChanged `json:"decision,omitempty"`
	Command  *RelayCommand    `json:"command,omitempty"`
	Ack      *RelayAck        `json:"ack,omitempty"`
}

// StoredEvent is a DomainEvent together with the per-device offset the log
// assigned at append time.
type StoredEvent struct {
	Offset int64       `json:"offset"`
	Event  DomainEvent `json:"event"`
}
