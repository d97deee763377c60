package adapters

import (
	"context"
	"sync"
	"time"

	"heatwise/internal/models"
)

// Simulation constants (tenths of °C).
const (
	ambientTenths     = 180 // cold-feed/ambient water temperature
	heatTenthsPerMin  = 10  // warming rate with the relay on
	coolTenthsPerMin  = 3   // loss rate with the relay off
	simulatedSourceID = "sim"
)

// SimulatedPlant models the cylinder and its relay for development and
// tests: Apply always acks APPLIED, and the water temperature ramps up
// while the relay is on and drifts toward ambient while it is off. It
// serves as both the RelayActuator and the TemperatureSource.
type SimulatedPlant struct {
	mu      sync.RWMutex
	on      bool
	tenths  int
	sampled time.Time
	updates chan struct{}
}

func NewSimulatedPlant() *SimulatedPlant {
	return &SimulatedPlant{
		tenths:  ambientTenths,
		sampled: time.Now().UTC(),
		updates: make(chan struct{}, 1),
	}
}

var (
	_ RelayActuator     = (*SimulatedPlant)(nil)
	_ TemperatureSource = (*SimulatedPlant)(nil)
)

// Apply switches the simulated relay and acks immediately.
func (p *SimulatedPlant) Apply(_ context.Context, cmd models.RelayCommand) (models.RelayAck, error) {
	p.mu.Lock()
	p.advanceLocked(time.Now().UTC())
	p.on = cmd.Desired == models.RelayOn
	p.mu.Unlock()

	return models.RelayAck{
		CorrelationID: cmd.CorrelationID,
		AppliedAt:     time.Now().UTC(),
		Outcome:       models.AckApplied,
	}, nil
}

// Run publishes a fresh reading on every tick until ctx is canceled.
func (p *SimulatedPlant) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			p.mu.Lock()
			p.advanceLocked(now.UTC())
			p.mu.Unlock()
			select {
			case p.updates <- struct{}{}:
			default:
			}
		}
	}
}

// advanceLocked moves the water temperature forward to now. Heating ramps
// up without bound so the safety cutoff is reachable in simulation;
// cooling never drops below ambient.
func (p *SimulatedPlant) advanceLocked(now time.Time) {
	elapsed := now.Sub(p.sampled).Minutes()
	if elapsed <= 0 {
		return
	}
	if p.on {
		p.tenths += int(heatTenthsPerMin * elapsed)
	} else if p.tenths > ambientTenths {
		p.tenths -= int(coolTenthsPerMin * elapsed)
		if p.tenths < ambientTenths {
			p.tenths = ambientTenths
		}
	}
	p.sampled = now
}

// Latest returns the current simulated reading.
func (p *SimulatedPlant) Latest() *models.TemperatureReading {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &models.TemperatureReading{
		ObservedAt:    p.sampled,
		CelsiusTenths: p.tenths,
		SourceID:      simulatedSourceID,
	}
}

// Updates fires after each simulation tick.
func (p *SimulatedPlant) Updates() <-chan struct{} { return p.updates }
