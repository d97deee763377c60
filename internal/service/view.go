package service

import (
	"context"
	"sync/atomic"
	"time"

	"heatwise/internal/logger"
	"heatwise/internal/models"
	"heatwise/internal/repository"
)

const readBatchSize = 256

// ViewBuilder folds the event log into the MaterializedView. It is the
// sole writer of the view; readers get immutable published snapshots. The
// fold is idempotent under at-least-once delivery: offsets at or below
// LastAppliedOffset are skipped, so replaying the log from any checkpoint
// (or from the beginning) converges to the same view.
type ViewBuilder struct {
	deviceID    string
	bound       int
	log         *logger.Logger
	events      repository.EventLog
	checkpoints repository.Checkpoints

	view models.MaterializedView // working copy, builder goroutine only
	snap atomic.Pointer[models.MaterializedView]
}

func NewViewBuilder(deviceID string, bound int, repos *repository.Repository, log *logger.Logger) *ViewBuilder {
	return &ViewBuilder{
		deviceID:    deviceID,
		bound:       bound,
		log:         log,
		events:      repos.Events,
		checkpoints: repos.Checkpoints,
	}
}

// Run consumes from the saved checkpoint until ctx is canceled, then
// persists the checkpoint so a restart resumes where it left off.
func (b *ViewBuilder) Run(ctx context.Context, poll time.Duration) {
	offset, err := b.checkpoints.Load(ctx, b.deviceID)
	if err != nil {
		b.log.Errorw("checkpoint_load_failed", "device", b.deviceID, "err", err)
		offset = models.NoOffset
	}
	b.reset(offset)

	t := time.NewTicker(poll)
	defer t.Stop()
	first := true
	for {
		if n, err := b.catchUp(ctx); err != nil {
			b.log.Errorw("view_catch_up_failed", "err", err)
		} else if n > 0 {
			if err := b.checkpoints.Save(ctx, b.deviceID, b.view.LastAppliedOffset); err != nil {
				b.log.Errorw("checkpoint_save_failed", "err", err)
			}
		}
		if first {
			// Even an empty log yields a valid (empty) view; readers are
			// only "not ready" until the first full catch-up.
			b.publish()
			first = false
		}
		select {
		case <-ctx.Done():
			// Persist the cursor with a fresh context; ctx is already done.
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := b.checkpoints.Save(sctx, b.deviceID, b.view.LastAppliedOffset); err != nil {
				b.log.Errorw("checkpoint_save_failed", "err", err)
			}
			cancel()
			return
		case <-t.C:
		}
	}
}

// reset initializes the working view at the given cursor. Starting from
// NoOffset replays the whole partition.
func (b *ViewBuilder) reset(offset int64) {
	b.view = models.MaterializedView{
		DeviceID:          b.deviceID,
		CurrentState:      models.StateUnknown,
		LastAppliedOffset: offset,
		HeadOffset:        offset,
	}
}

// catchUp folds every event currently past the cursor and publishes a new
// snapshot if anything was applied. Returns the number of folded events.
func (b *ViewBuilder) catchUp(ctx context.Context) (int, error) {
	applied := 0
	for {
		batch, err := b.events.ReadFrom(ctx, b.deviceID, b.view.LastAppliedOffset+1, readBatchSize)
		if err != nil {
			return applied, err
		}
		if len(batch) == 0 {
			break
		}
		for _, se := range batch {
			if b.fold(se) {
				applied++
			}
		}
		if len(batch) < readBatchSize {
			break
		}
	}
	if head, err := b.events.Head(ctx, b.deviceID); err == nil && head > b.view.HeadOffset {
		b.view.HeadOffset = head
		applied++ // lag changed; publish even without new folds
	}
	if applied > 0 {
		b.publish()
	}
	return applied, nil
}

// fold applies one stored event to the working view. Duplicate and
// already-seen offsets are skipped; malformed or unknown kinds are logged
// and skipped, since the log cannot be corrected retroactively.
func (b *ViewBuilder) fold(se models.StoredEvent) bool {
	if se.Offset <= b.view.LastAppliedOffset {
		return false
	}
	b.view.LastAppliedOffset = se.Offset
	if se.Offset > b.view.HeadOffset {
		b.view.HeadOffset = se.Offset
	}
	b.view.UpdatedAt = se.Event.OccurredAt

	switch se.Event.Kind {
	case models.KindDecisionChanged:
		if se.Event.Decision == nil {
			b.log.Errorw("event_malformed", "offset", se.Offset, "kind", se.Event.Kind)
			return false
		}
		b.view.CurrentState = se.Event.Decision.To
		cp := se
		b.view.LastDecision = &cp
		b.view.RecentChanges = append([]models.StoredEvent{se}, b.view.RecentChanges...)
		if len(b.view.RecentChanges) > b.bound {
			b.view.RecentChanges = b.view.RecentChanges[:b.bound]
		}
	case models.KindRelayCommandIssued:
		b.view.LastCommand = se.Event.Command
	case models.KindRelayAckReceived:
		b.view.LastAck = se.Event.Ack
	default:
		b.log.Errorw("event_kind_unknown", "offset", se.Offset, "kind", se.Event.Kind)
		return false
	}
	return true
}

// publish atomically replaces the reader snapshot.
func (b *ViewBuilder) publish() {
	b.snap.Store(b.view.Clone())
}

// Snapshot returns the last published view, or nil before the first fold
// pass completes (the "not ready" condition).
func (b *ViewBuilder) Snapshot() *models.MaterializedView {
	return b.snap.Load()
}
