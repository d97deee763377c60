package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"heatwise/internal/models"
)

func TestHealth_OK(t *testing.T) {
	q := &mockQuery{HealthFn: okHealth}
	r := newTestRouter(t, q, acceptAll())

	w := doRequest(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code: got %d, want %d", w.Code, http.StatusOK)
	}

	var h models.Health
	if err := json.Unmarshal(w.Body.Bytes(), &h); err != nil {
		t.Fatalf("body: %v", err)
	}
	if h.Status != models.HealthOK || h.LastAppliedOffset != 3 {
		t.Fatalf("health: %+v", h)
	}
}

func TestHealth_NotReadyIs503(t *testing.T) {
	q := &mockQuery{HealthFn: func() models.Health {
		return models.Health{Status: models.HealthNotReady, LastAppliedOffset: models.NoOffset}
	}}
	r := newTestRouter(t, q, acceptAll())

	w := doRequest(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("code: got %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestLatestDecision_RequiresAuth(t *testing.T) {
	q := &mockQuery{LatestDecisionFn: func() (models.StoredEvent, bool) {
		return storedDecision(0, models.StateHeating), true
	}}
	r := newTestRouter(t, q, acceptAll())

	w := doRequest(r, http.MethodGet, "/api/v1/decisions/latest", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code: got %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestLatestDecision_OK(t *testing.T) {
	q := &mockQuery{LatestDecisionFn: func() (models.StoredEvent, bool) {
		return storedDecision(5, models.StateHeating), true
	}}
	r := newTestRouter(t, q, acceptAll())

	w := doRequest(r, http.MethodGet, "/api/v1/decisions/latest", "any")
	if w.Code != http.StatusOK {
		t.Fatalf("code: got %d, want %d (%s)", w.Code, http.StatusOK, w.Body.String())
	}

	var se models.StoredEvent
	if err := json.Unmarshal(w.Body.Bytes(), &se); err != nil {
		t.Fatalf("body: %v", err)
	}
	if se.Offset != 5 || se.Event.Decision == nil || se.Event.Decision.To != models.StateHeating {
		t.Fatalf("decision: %+v", se)
	}
}

func TestLatestDecision_NoneIs404(t *testing.T) {
	q := &mockQuery{LatestDecisionFn: func() (models.StoredEvent, bool) {
		return models.StoredEvent{}, false
	}}
	r := newTestRouter(t, q, acceptAll())

	w := doRequest(r, http.MethodGet, "/api/v1/decisions/latest", "any")
	if w.Code != http.StatusNotFound {
		t.Fatalf("code: got %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestStateChanges_LimitHandling(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantLimit int
	}{
		{name: "default", target: "/api/v1/state/changes", wantCode: 200, wantLimit: 50},
		{name: "explicit", target: "/api/v1/state/changes?limit=5", wantCode: 200, wantLimit: 5},
		{name: "capped", target: "/api/v1/state/changes?limit=1000", wantCode: 200, wantLimit: 200},
		{name: "zero", target: "/api/v1/state/changes?limit=0", wantCode: 400},
		{name: "negative", target: "/api/v1/state/changes?limit=-3", wantCode: 400},
		{name: "garbage", target: "/api/v1/state/changes?limit=abc", wantCode: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			q := &mockQuery{RecentStateChangesFn: func(limit int) []models.StoredEvent {
				gotLimit = limit
				return []models.StoredEvent{storedDecision(0, models.StateHeating)}
			}}
			r := newTestRouter(t, q, acceptAll())

			w := doRequest(r, http.MethodGet, tt.target, "any")
			if w.Code != tt.wantCode {
				t.Fatalf("code: got %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode == http.StatusOK && gotLimit != tt.wantLimit {
				t.Fatalf("limit passed: got %d, want %d", gotLimit, tt.wantLimit)
			}
		})
	}
}

func TestStateChanges_BodyShape(t *testing.T) {
	q := &mockQuery{RecentStateChangesFn: func(int) []models.StoredEvent {
		return []models.StoredEvent{
			storedDecision(2, models.StateIdle),
			storedDecision(1, models.StateHeating),
		}
	}}
	r := newTestRouter(t, q, acceptAll())

	w := doRequest(r, http.MethodGet, "/api/v1/state/changes", "any")
	if w.Code != http.StatusOK {
		t.Fatalf("code: got %d (%s)", w.Code, w.Body.String())
	}

	var body struct {
		Count   int                  `json:"count"`
		Changes []models.StoredEvent `json:"changes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body.Count != 2 || len(body.Changes) != 2 || body.Changes[0].Offset != 2 {
		t.Fatalf("body: %+v", body)
	}
}

func TestDeviceView_NotReadyIs503(t *testing.T) {
	q := &mockQuery{DeviceViewFn: func() (models.MaterializedView, bool) {
		return models.MaterializedView{}, false
	}}
	r := newTestRouter(t, q, acceptAll())

	w := doRequest(r, http.MethodGet, "/api/v1/device", "any")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("code: got %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestDeviceView_OK(t *testing.T) {
	q := &mockQuery{DeviceViewFn: func() (models.MaterializedView, bool) {
		return models.MaterializedView{
			DeviceID:          "cylinder-1",
			CurrentState:      models.StateHeating,
			LastAppliedOffset: 9,
			HeadOffset:        9,
			UpdatedAt:         testViewTime,
		}, true
	}}
	r := newTestRouter(t, q, acceptAll())

	w := doRequest(r, http.MethodGet, "/api/v1/device", "any")
	if w.Code != http.StatusOK {
		t.Fatalf("code: got %d (%s)", w.Code, w.Body.String())
	}

	var v models.MaterializedView
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("body: %v", err)
	}
	if v.DeviceID != "cylinder-1" || v.CurrentState != models.StateHeating || v.LastAppliedOffset != 9 {
		t.Fatalf("view: %+v", v)
	}
}
