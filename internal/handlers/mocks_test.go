package handlers

import (
	"net/http/httptest"
	"testing"
	"time"

	"heatwise/internal/models"
	"heatwise/internal/service"

	"github.com/gin-gonic/gin"
)

var testViewTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type mockQuery struct {
	LatestDecisionFn     func() (models.StoredEvent, bool)
	RecentStateChangesFn func(limit int) []models.StoredEvent
	DeviceViewFn         func() (models.MaterializedView, bool)
	HealthFn             func() models.Health
}

func (m *mockQuery) LatestDecision() (models.StoredEvent, bool) { return m.LatestDecisionFn() }
func (m *mockQuery) RecentStateChanges(limit int) []models.StoredEvent {
	return m.RecentStateChangesFn(limit)
}
func (m *mockQuery) DeviceView() (models.MaterializedView, bool) { return m.DeviceViewFn() }
func (m *mockQuery) Health() models.Health                       { return m.HealthFn() }

type mockAuth struct {
	SignUpFn        func(username, password string) (int, error)
	GenerateTokenFn func(username, password string) (string, error)
	ParseTokenFn    func(accessToken string) (int, error)
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	return m.SignUpFn(username, password)
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	return m.GenerateTokenFn(username, password)
}
func (m *mockAuth) ParseToken(accessToken string) (int, error) { return m.ParseTokenFn(accessToken) }

// acceptAll authorizes any bearer token as user 1.
func acceptAll() *mockAuth {
	return &mockAuth{ParseTokenFn: func(string) (int, error) { return 1, nil }}
}

func newTestRouter(t *testing.T, q service.Query, a service.Authorization) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(&service.Service{Query: q, Authorization: a}, nil)
	return h.InitRoutes()
}

func doRequest(r *gin.Engine, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func storedDecision(offset int64, to models.DecisionState) models.StoredEvent {
	return models.StoredEvent{
		Offset: offset,
		Event: models.DomainEvent{
			EventID:    "ev",
			DeviceID:   "cylinder-1",
			Kind:       models.KindDecisionChanged,
			OccurredAt: testViewTime,
			Decision:   &models.DecisionChanged{From: models.StateIdle, To: to, Timestamp: testViewTime},
		},
	}
}

func okHealth() models.Health {
	return models.Health{Status: models.HealthOK, LastAppliedOffset: 3}
}
