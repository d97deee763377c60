package service

import "heatwise/internal/models"

// QueryService exposes the materialized view read-only. Every accessor
// returns whatever the view builder last published and never blocks on the
// log or the decision loop; lag is data, not an error.
type QueryService struct {
	view *ViewBuilder
}

func NewQueryService(view *ViewBuilder) *QueryService {
	return &QueryService{view: view}
}

// LatestDecision returns the most recent state-change event, or false when
// none has been folded yet.
func (s *QueryService) LatestDecision() (models.StoredEvent, bool) {
	v := s.view.Snapshot()
	if v == nil || v.LastDecision == nil {
		return models.StoredEvent{}, false
	}
	return *v.LastDecision, true
}

// RecentStateChanges returns up to limit state-change events, most recent
// first. A non-positive limit returns the full retained window.
func (s *QueryService) RecentStateChanges(limit int) []models.StoredEvent {
	v := s.view.Snapshot()
	if v == nil {
		return nil
	}
	changes := v.RecentChanges
	if limit > 0 && limit < len(changes) {
		changes = changes[:limit]
	}
	out := make([]models.StoredEvent, len(changes))
	copy(out, changes)
	return out
}

// DeviceView returns the full published snapshot, or false when the view
// is not ready yet.
func (s *QueryService) DeviceView() (models.MaterializedView, bool) {
	v := s.view.Snapshot()
	if v == nil {
		return models.MaterializedView{}, false
	}
	return *v, true
}

// Health reports view readiness and the fold lag behind the log head.
func (s *QueryService) Health() models.Health {
	v := s.view.Snapshot()
	if v == nil {
		return models.Health{
			Status:            models.HealthNotReady,
			LastAppliedOffset: models.NoOffset,
		}
	}
	lag := v.HeadOffset - v.LastAppliedOffset
	if lag < 0 {
		lag = 0
	}
	return models.Health{
		Status:            models.HealthOK,
		LastAppliedOffset: v.LastAppliedOffset,
		LagEstimate:       lag,
	}
}
