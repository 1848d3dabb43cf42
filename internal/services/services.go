package services

import (
	"context"
	"database/sql"

	"github.com/ajharbinger/riskscore-preview/internal/audit"
	"github.com/ajharbinger/riskscore-preview/internal/logger"
	"github.com/ajharbinger/riskscore-preview/internal/models"
	"github.com/ajharbinger/riskscore-preview/internal/repository"
	"github.com/ajharbinger/riskscore-preview/internal/riskscore"
	"github.com/ajharbinger/riskscore-preview/internal/scoring"
	"github.com/ajharbinger/riskscore-preview/pkg/config"
)

// Services contains all application services
type Services struct {
	RiskScore    RiskScoreService
	DataViews    DataViewService
	EngineConfig EngineConfigService
	Seed         SeedService
}

// RiskScoreService defines the interface for risk score previews
type RiskScoreService interface {
	Preview(ctx context.Context, req riskscore.PreviewRequest) (*riskscore.ScoreResult, error)
}

// DataViewService defines the interface for data view business logic
type DataViewService interface {
	riskscore.DataViewResolver
	Save(ctx context.Context, view *models.DataView) error
}

// EngineConfigService defines the interface for the risk engine configuration
type EngineConfigService interface {
	riskscore.ConfigProvider
	Save(ctx context.Context, cfg *models.RiskEngineConfiguration) error
}

// SeedService defines the interface for bulk loading reference and input data
type SeedService interface {
	Load(ctx context.Context, data *SeedData) (*SeedSummary, error)
}

// NewServices creates a new Services instance with all dependencies
func NewServices(db *sql.DB, cfg *config.Config, log logger.Logger) *Services {
	return NewServicesWithRepositories(repository.NewRepositories(db), cfg, log)
}

// NewServicesWithRepositories wires the services on top of existing repositories
func NewServicesWithRepositories(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	dataViews := newDataViewService(repos)
	engineConfig := newEngineConfigService(repos, cfg)
	calculator := NewRiskScoreCalculator(repos.RiskInputs, scoring.NewScoringEngine(), log)

	return &Services{
		RiskScore: riskscore.NewService(riskscore.Dependencies{
			DataViews:   dataViews,
			Config:      engineConfig,
			Scorer:      calculator,
			Audit:       newAuditLogger(repos, cfg, log),
			Logger:      log.With("component", "risk_score_preview"),
			MaxPageSize: cfg.EntityAnalytics.MaxPageSize,
		}),
		DataViews:    dataViews,
		EngineConfig: engineConfig,
		Seed:         newSeedService(repos, cfg),
	}
}

func newAuditLogger(repos *repository.Repositories, cfg *config.Config, log logger.Logger) audit.Logger {
	var sinks audit.MultiSink
	if cfg.AuditToLog() {
		sinks = append(sinks, audit.NewLogSink(log))
	}
	if cfg.AuditToDatabase() {
		sinks = append(sinks, audit.NewStoreSink(repos.Audit))
	}
	if len(sinks) == 0 {
		return audit.Nop{}
	}
	return sinks
}
