package service

import (
	"context"
	"time"

	"heatwise/internal/adapters"
	"heatwise/internal/engine"
	"heatwise/internal/logger"
	"heatwise/internal/models"
	"heatwise/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Query is the read-only contract over the materialized view.
type Query interface {
	LatestDecision() (models.StoredEvent, bool)
	RecentStateChanges(limit int) []models.StoredEvent
	DeviceView() (models.MaterializedView, bool)
	Health() models.Health
}

// Runner is a long-running background task stopped via context
// cancellation from main().
type Runner interface {
	Run(ctx context.Context, interval time.Duration)
}

// Service aggregates the controller's sub-services. Loop and View are the
// two background tasks; handlers only see Query and Authorization.
type Service struct {
	Query
	Authorization
	Loop *DecisionLoop
	View *ViewBuilder
}

// Options carries the wiring main() resolves from configuration.
type Options struct {
	DeviceID      string
	Engine        engine.Config
	Tariff        adapters.TariffSource
	Sensor        adapters.TemperatureSource
	Relay         adapters.RelayActuator
	RecentChanges int
	SigningKey    string
}

func NewService(repos *repository.Repository, opts Options, log *logger.Logger) *Service {
	view := NewViewBuilder(opts.DeviceID, opts.RecentChanges, repos, log)
	return &Service{
		Query:         NewQueryService(view),
		Authorization: NewAuthService(repos.Auth, opts.SigningKey),
		Loop:          NewDecisionLoop(opts.DeviceID, opts.Engine, repos, opts.Tariff, opts.Sensor, opts.Relay, log),
		View:          view,
	}
}
