package service

import (
	"context"
	"fmt"
	"testing"

	"heatwise/internal/models"
	"heatwise/internal/repository"
)

func builderWithChanges(t *testing.T, n int) *ViewBuilder {
	t.Helper()
	log := repository.NewMemoryLog()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, _ = log.Append(ctx, decisionEvent(fmt.Sprintf("d%d", i), models.StateIdle, models.StateHeating))
	}
	b := newTestBuilder(log, 100)
	mustCatchUp(t, b)
	return b
}

func TestQuery_NotReadyBeforeFirstCatchUp(t *testing.T) {
	b := newTestBuilder(repository.NewMemoryLog(), 10)
	q := NewQueryService(b)

	h := q.Health()
	if h.Status != models.HealthNotReady {
		t.Fatalf("status: got %s, want %s", h.Status, models.HealthNotReady)
	}
	if h.LastAppliedOffset != models.NoOffset {
		t.Fatalf("offset: got %d", h.LastAppliedOffset)
	}
	if _, ok := q.LatestDecision(); ok {
		t.Fatalf("latest decision before publish")
	}
	if _, ok := q.DeviceView(); ok {
		t.Fatalf("device view before publish")
	}
	if changes := q.RecentStateChanges(10); changes != nil {
		t.Fatalf("changes before publish: %+v", changes)
	}
}

func TestQuery_LatestDecision(t *testing.T) {
	b := builderWithChanges(t, 3)
	b.publish()
	q := NewQueryService(b)

	se, ok := q.LatestDecision()
	if !ok {
		t.Fatalf("no latest decision")
	}
	if se.Event.EventID != "d2" || se.Offset != 2 {
		t.Fatalf("latest: %+v", se)
	}
}

func TestQuery_RecentStateChangesLimit(t *testing.T) {
	b := builderWithChanges(t, 5)
	q := NewQueryService(b)

	if got := len(q.RecentStateChanges(2)); got != 2 {
		t.Fatalf("limited: got %d, want 2", got)
	}
	// Non-positive limit returns the full retained window.
	if got := len(q.RecentStateChanges(0)); got != 5 {
		t.Fatalf("unlimited: got %d, want 5", got)
	}
	if got := len(q.RecentStateChanges(50)); got != 5 {
		t.Fatalf("oversized limit: got %d, want 5", got)
	}

	changes := q.RecentStateChanges(5)
	if changes[0].Event.EventID != "d4" {
		t.Fatalf("not most recent first: %+v", changes[0])
	}
}

func TestQuery_HealthReportsLag(t *testing.T) {
	log := repository.NewMemoryLog()
	ctx := context.Background()
	_, _ = log.Append(ctx, decisionEvent("d1", models.StateIdle, models.StateHeating))

	b := newTestBuilder(log, 10)
	mustCatchUp(t, b)

	h := NewQueryService(b).Health()
	if h.Status != models.HealthOK || h.LagEstimate != 0 {
		t.Fatalf("caught up health: %+v", h)
	}

	// New events land but the builder has not polled yet; the published
	// snapshot still reports zero lag until the next catch-up notices them.
	_, _ = log.Append(ctx, decisionEvent("d2", models.StateHeating, models.StateIdle))
	_, _ = log.Append(ctx, decisionEvent("d3", models.StateIdle, models.StateHeating))
	mustCatchUp(t, b)

	h = NewQueryService(b).Health()
	if h.Status != models.HealthOK {
		t.Fatalf("health: %+v", h)
	}
	if h.LastAppliedOffset != 2 || h.LagEstimate != 0 {
		t.Fatalf("after catch-up: %+v", h)
	}
}
