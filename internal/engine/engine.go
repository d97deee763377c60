// Package engine implements the pure decision state machine for the
// cylinder heater. Evaluate has no side effects and does no I/O; the
// decision loop owns the single mutable Snapshot and threads it through.
package engine

import (
	"time"

	"heatwise/internal/models"

	"github.com/google/uuid"
)

// Transition reasons recorded on DecisionChanged events.
const (
	ReasonInputsUnknown = "required inputs missing or stale"
	ReasonSafetyCutoff  = "temperature at or above safety maximum"
	ReasonSafetyHold    = "holding below safety resume threshold"
	ReasonTargetReached = "target temperature reached"
	ReasonCheapPrice    = "price at or below threshold"
	ReasonPriceHigh     = "price above threshold"
)

// Snapshot is the engine's view of its own history, owned by the decision
// loop. PrevState/LastTransitionAt feed the anti-chatter rule; LastApplied
// and LastIssued suppress redundant relay commands.
type Snapshot struct {
	State            models.DecisionState
	PrevState        models.DecisionState // state before the last transition
	LastTransitionAt time.Time

	LastIssued  models.RelayState // direction of the last issued command, "" if none
	LastApplied models.RelayState // direction of the last APPLIED ack, "" if none
}

// Inputs are the latest known samples at evaluation time. Nil means the
// collaborator has never reported; staleness is judged against Now.
type Inputs struct {
	Price       *models.PricePoint
	Temperature *models.TemperatureReading
	Now         time.Time
}

// Result of one evaluation: the next state, zero-or-one relay command, and
// zero-or-one state-change record for the audit log.
type Result struct {
	State   models.DecisionState
	Command *models.RelayCommand
	Change  *models.DecisionChanged
}

// Evaluate applies the transition rules in priority order and returns the
// next state. Safety rules always take effect; a transition that would
// reverse the immediately preceding one within MinDwell is suppressed.
func Evaluate(cfg Config, cur Snapshot, in Inputs) Result {
	price, priceKnown := activePrice(in)
	temp, tempKnown := freshTemperature(cfg, in)

	target, reason, safety := targetState(cfg, cur.State, price, priceKnown, temp, tempKnown)

	if !safety && suppressed(cfg, cur, target, in.Now) {
		return Result{State: cur.State}
	}

	desired := models.RelayOff
	if target == models.StateHeating {
		desired = models.RelayOn
	}

	res := Result{State: target}

	// Never re-issue the direction the relay is already known to hold.
	if desired != cur.LastApplied {
		res.Command = &models.RelayCommand{
			IssuedAt:      in.Now,
			Desired:       desired,
			CorrelationID: uuid.NewString(),
		}
	}

	directionChanged := res.Command != nil && desired != cur.LastIssued
	if target != cur.State || directionChanged {
		change := &models.DecisionChanged{
			From:      cur.State,
			To:        target,
			Reason:    reason,
			Timestamp: in.Now,
		}
		if priceKnown {
			p := price.UnitPriceMinor
			change.PriceMinor = &p
		}
		if tempKnown {
			t := temp.CelsiusTenths
			change.TemperatureTenths = &t
		}
		res.Change = change
	}
	return res
}

// targetState evaluates rules 1-6; first match wins. safety reports
// whether the match was a fail-safe or cutoff rule, which bypasses dwell
// suppression.
func targetState(cfg Config, cur models.DecisionState, price models.PricePoint, priceKnown bool, temp models.TemperatureReading, tempKnown bool) (models.DecisionState, string, bool) {
	switch {
	case !tempKnown || !priceKnown:
		return models.StateUnknown, ReasonInputsUnknown, true
	case temp.CelsiusTenths >= cfg.SafetyMaxTempTenths:
		return models.StateSafetyHold, ReasonSafetyCutoff, true
	case cur == models.StateSafetyHold && temp.CelsiusTenths >= cfg.SafetyResumeTempTenths:
		return models.StateSafetyHold, ReasonSafetyHold, true
	case temp.CelsiusTenths >= cfg.TargetTempTenths:
		return models.StateIdle, ReasonTargetReached, false
	case price.UnitPriceMinor <= cfg.PriceThresholdMinor:
		return models.StateHeating, ReasonCheapPrice, false
	default:
		return models.StateIdle, ReasonPriceHigh, false
	}
}

// suppressed reports whether the candidate transition reverses the
// immediately preceding one inside the dwell window.
func suppressed(cfg Config, cur Snapshot, target models.DecisionState, now time.Time) bool {
	if target == cur.State || cur.PrevState == "" || target != cur.PrevState {
		return false
	}
	return now.Sub(cur.LastTransitionAt) < cfg.MinDwell
}

// activePrice returns the price point covering Now, if any.
func activePrice(in Inputs) (models.PricePoint, bool) {
	if in.Price == nil || !in.Price.Covers(in.Now) {
		return models.PricePoint{}, false
	}
	return *in.Price, true
}

// freshTemperature returns the latest reading unless it is missing or
// older than the staleness window. Stale data is never trusted.
func freshTemperature(cfg Config, in Inputs) (models.TemperatureReading, bool) {
	if in.Temperature == nil {
		return models.TemperatureReading{}, false
	}
	if in.Now.Sub(in.Temperature.ObservedAt) > cfg.TemperatureStaleness {
		return models.TemperatureReading{}, false
	}
	return *in.Temperature, true
}
