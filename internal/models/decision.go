package models

import "time"

// DecisionState is the controller's persistent mode.
type DecisionState string

const (
	StateIdle       DecisionState = "IDLE"
	StateHeating    DecisionState = "HEATING"
	StateSafetyHold DecisionState = "SAFETY_HOLD"
	StateUnknown    DecisionState = "UNKNOWN"
)

// RelayState is the desired or applied position of the heater relay.
type RelayState string

const (
	RelayOn  RelayState = "ON"
	RelayOff RelayState = "OFF"
)

// AckOutcome reports whether the relay adapter applied a command.
type AckOutcome string

const (
	AckApplied AckOutcome = "APPLIED"
	AckFailed  AckOutcome = "FAILED"
)

// PricePoint is one interval of the published tariff schedule.
// Intervals are ordered and non-overlapping; the active price at T is the
// interval containing T, or unknown if none covers it.
type PricePoint struct {
	ValidFrom      time.Time `json:"valid_from"`
	ValidTo        time.Time `json:"valid_to"`
	UnitPriceMinor int       `json:"unit_price_minor"` // pence/cents per kWh
}

// Covers reports whether t falls inside [ValidFrom, ValidTo).
func (p PricePoint) Covers(t time.Time) bool {
	return !t.Before(p.ValidFrom) && t.Before(p.ValidTo)
}

// TemperatureReading is a single cylinder temperature sample.
// Readings older than the configured staleness window are treated as
// unknown, never as the last known value.
type TemperatureReading struct {
	ObservedAt    time.Time `json:"observed_at"`
	CelsiusTenths int       `json:"celsius_tenths"` // 550 = 55.0°C
	SourceID      string    `json:"source_id"`
}

// RelayCommand asks the relay adapter to switch the heater.
type RelayCommand struct {
	IssuedAt      time.Time  `json:"issued_at"`
	Desired       RelayState `json:"desired_state"`
	CorrelationID string     `json:"correlation_id"`
}

// RelayAck is the relay adapter's report for a command.
type RelayAck struct {
	CorrelationID string     `json:"correlation_id"`
	AppliedAt     time.Time  `json:"applied_at"`
	Outcome       AckOutcome `json:"outcome"`
}
