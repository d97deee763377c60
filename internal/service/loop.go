package service

import (
	"context"
	"time"

	"heatwise/internal/adapters"
	"heatwise/internal/engine"
	"heatwise/internal/logger"
	"heatwise/internal/models"
	"heatwise/internal/repository"

	"github.com/google/uuid"
)

// Retry policy for the relay adapter and the event log.
const (
	relayAttempts           = 3
	defaultRelayBackoff     = 2 * time.Second
	defaultAppendBackoff    = 500 * time.Millisecond
	defaultAppendBackoffCap = 30 * time.Second
	appendWarnAfter         = 5
)

// DecisionLoop drives the engine on a fixed tick and eagerly on new
// sensor readings. Exactly one instance may run per device (single-writer;
// serialization is external). Every event the engine produces is appended
// to the log before the next evaluation.
type DecisionLoop struct {
	deviceID string
	cfg      engine.Config
	log      *logger.Logger

	events repository.EventLog
	tariff adapters.TariffSource
	sensor adapters.TemperatureSource
	relay  adapters.RelayActuator

	snap engine.Snapshot

	relayBackoff     time.Duration
	appendBackoff    time.Duration
	appendBackoffCap time.Duration
}

func NewDecisionLoop(deviceID string, cfg engine.Config, repos *repository.Repository,
	tariff adapters.TariffSource, sensor adapters.TemperatureSource, relay adapters.RelayActuator,
	log *logger.Logger) *DecisionLoop {
	return &DecisionLoop{
		deviceID: deviceID,
		cfg:      cfg,
		log:      log,
		events:   repos.Events,
		tariff:   tariff,
		sensor:   sensor,
		relay:    relay,
		snap:     engine.Snapshot{State: models.StateUnknown},

		relayBackoff:     defaultRelayBackoff,
		appendBackoff:    defaultAppendBackoff,
		appendBackoffCap: defaultAppendBackoffCap,
	}
}

// Run evaluates until ctx is canceled. An in-flight append is finished (or
// abandoned with a warning on cancellation) before the loop stops.
func (l *DecisionLoop) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()

	l.evaluate(ctx, time.Now().UTC())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.evaluate(ctx, now.UTC())
		case <-l.sensor.Updates():
			l.evaluate(ctx, time.Now().UTC())
		}
	}
}

// evaluate runs one engine step and performs its effects in order:
// record the decision, issue the relay command, record the ack.
func (l *DecisionLoop) evaluate(ctx context.Context, now time.Time) {
	res := engine.Evaluate(l.cfg, l.snap, engine.Inputs{
		Price:       l.tariff.ActivePriceAt(now),
		Temperature: l.sensor.Latest(),
		Now:         now,
	})

	if res.Change != nil {
		if !l.appendWithRetry(ctx, l.decisionEvent(now, res.Change)) {
			return // ctx canceled mid-append
		}
		l.log.Infow("decision_changed",
			"from", res.Change.From, "to", res.Change.To, "reason", res.Change.Reason)
	}
	if res.State != l.snap.State {
		l.snap.PrevState = l.snap.State
		l.snap.State = res.State
		l.snap.LastTransitionAt = now
	}

	if res.Command != nil {
		l.issueCommand(ctx, now, *res.Command)
	}
}

// issueCommand records the command, applies it with bounded retries, and
// records the outcome. Exhausted retries put the controller in fail-safe
// UNKNOWN so the next evaluation starts from scratch.
func (l *DecisionLoop) issueCommand(ctx context.Context, now time.Time, cmd models.RelayCommand) {
	if !l.appendWithRetry(ctx, l.commandEvent(cmd)) {
		return
	}
	l.snap.LastIssued = cmd.Desired

	ack, ok := l.applyWithRetry(ctx, cmd)
	if !l.appendWithRetry(ctx, l.ackEvent(ack)) {
		return
	}

	if ok && ack.Outcome == models.AckApplied {
		l.snap.LastApplied = cmd.Desired
		return
	}

	l.log.Errorw("relay_command_failed", "correlation_id", cmd.CorrelationID, "desired", cmd.Desired)
	if l.snap.State != models.StateUnknown {
		change := &models.DecisionChanged{
			From:      l.snap.State,
			To:        models.StateUnknown,
			Reason:    "relay command failed",
			Timestamp: now,
		}
		if l.appendWithRetry(ctx, l.decisionEvent(now, change)) {
			l.snap.PrevState = l.snap.State
			l.snap.State = models.StateUnknown
			l.snap.LastTransitionAt = now
		}
	}
}

// applyWithRetry calls the relay adapter up to relayAttempts times. When
// every attempt fails it synthesizes a FAILED ack so the failure is still
// recorded in the log.
func (l *DecisionLoop) applyWithRetry(ctx context.Context, cmd models.RelayCommand) (models.RelayAck, bool) {
	for attempt := 1; attempt <= relayAttempts; attempt++ {
		ack, err := l.relay.Apply(ctx, cmd)
		if err == nil {
			return ack, true
		}
		l.log.Errorw("relay_apply_failed", "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return failedAck(cmd), false
		case <-time.After(l.relayBackoff * time.Duration(attempt)):
		}
	}
	return failedAck(cmd), false
}

// appendWithRetry blocks until the event is durably appended or ctx is
// canceled. The loop ticks are intentionally blocked while the log is
// unavailable: no decision may be lost to the audit trail. Reports false
// only on cancellation.
func (l *DecisionLoop) appendWithRetry(ctx context.Context, e models.DomainEvent) bool {
	backoff := l.appendBackoff
	for attempt := 1; ; attempt++ {
		if _, err := l.events.Append(ctx, e); err == nil {
			return true
		} else if attempt == appendWarnAfter {
			// Degrade locally while we keep retrying; the relay stays in
			// whatever state it last acked, and the controller reports
			// UNKNOWN once the append goes through.
			l.log.Warnw("event_append_stalled", "event_id", e.EventID, "attempts", attempt, "err", err)
			l.snap.State = models.StateUnknown
		} else {
			l.log.Errorw("event_append_failed", "event_id", e.EventID, "attempt", attempt, "err", err)
		}
		select {
		case <-ctx.Done():
			l.log.Warnw("event_append_abandoned", "event_id", e.EventID)
			return false
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > l.appendBackoffCap {
			backoff = l.appendBackoffCap
		}
	}
}

func (l *DecisionLoop) decisionEvent(now time.Time, change *models.DecisionChanged) models.DomainEvent {
	return models.DomainEvent{
		EventID:    uuid.NewString(),
		DeviceID:   l.deviceID,
		Kind:       models.KindDecisionChanged,
		OccurredAt: now,
		Decision:   change,
	}
}

func (l *DecisionLoop) commandEvent(cmd models.RelayCommand) models.DomainEvent {
	c := cmd
	return models.DomainEvent{
		EventID:    cmd.CorrelationID,
		DeviceID:   l.deviceID,
		Kind:       models.KindRelayCommandIssued,
		OccurredAt: cmd.IssuedAt,
		Command:    &c,
	}
}

func (l *DecisionLoop) ackEvent(ack models.RelayAck) models.DomainEvent {
	a := ack
	return models.DomainEvent{
		EventID:    uuid.NewString(),
		DeviceID:   l.deviceID,
		Kind:       models.KindRelayAckReceived,
		OccurredAt: ack.AppliedAt,
		Ack:        &a,
	}
}

func failedAck(cmd models.RelayCommand) models.RelayAck {
	return models.RelayAck{
		CorrelationID: cmd.CorrelationID,
		AppliedAt:     time.Now().UTC(),
		Outcome:       models.AckFailed,
	}
}
