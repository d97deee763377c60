// Package adapters holds the external collaborators of the controller:
// tariff schedule, temperature sensor and relay actuator. Push-style
// sources (MQTT, simulator) are converted into a latest-known pull model
// that the decision loop samples at evaluation time; staleness is judged
// by the engine, not here.
package adapters

import (
	"context"
	"time"

	"heatwise/internal/models"
)

// TariffSource answers the active price at a point in time, or nil when no
// published interval covers it.
type TariffSource interface {
	ActivePriceAt(t time.Time) *models.PricePoint
}

// TemperatureSource exposes the latest known cylinder reading (nil if none
// yet) and a coalesced notification channel that fires when a new reading
// arrives, so the loop can evaluate eagerly between ticks.
type TemperatureSource interface {
	Latest() *models.TemperatureReading
	Updates() <-chan struct{}
}

// RelayActuator applies a command and reports APPLIED or FAILED. It must
// never silently drop a command: an error return means the outcome is
// unknown and the caller may retry.
type RelayActuator interface {
	Apply(ctx context.Context, cmd models.RelayCommand) (models.RelayAck, error)
}
