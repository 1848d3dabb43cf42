package services

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
	"github.com/ajharbinger/riskscore-preview/internal/models"
	"github.com/ajharbinger/riskscore-preview/internal/repository"
	"github.com/ajharbinger/riskscore-preview/internal/riskscore"
	"github.com/ajharbinger/riskscore-preview/pkg/config"
)

// engineConfigServiceImpl implements EngineConfigService
type engineConfigServiceImpl struct {
	repos    *repository.Repositories
	defaults config.EntityAnalyticsConfig
}

// newEngineConfigService creates a new engine configuration service implementation
func newEngineConfigService(repos *repository.Repositories, cfg *config.Config) EngineConfigService {
	return &engineConfigServiceImpl{
		repos:    repos,
		defaults: cfg.EntityAnalytics,
	}
}

// GetConfigurationWithDefaults merges the stored configuration over the
// configured defaults. A missing stored configuration is not an error.
func (s *engineConfigServiceImpl) GetConfigurationWithDefaults(ctx context.Context) (*riskscore.Configuration, error) {
	out := &riskscore.Configuration{
		PageSize:                s.defaults.DefaultPageSize,
		AlertSampleSizePerShard: s.defaults.AlertSampleSizePerShard,
	}

	stored, err := s.repos.EngineConfig.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get risk engine configuration: %w", err)
	}

	if stored.PageSize != nil {
		out.PageSize = *stored.PageSize
	}
	if stored.AlertSampleSizePerShard != nil {
		out.AlertSampleSizePerShard = *stored.AlertSampleSizePerShard
	}
	return out, nil
}

// Save validates and stores the risk engine configuration
func (s *engineConfigServiceImpl) Save(ctx context.Context, cfg *models.RiskEngineConfiguration) error {
	if err := validateEngineConfig(cfg, s.defaults.MaxPageSize, ""); err != nil {
		return err
	}

	if err := s.repos.EngineConfig.Save(ctx, cfg); err != nil {
		return apperrors.DatabaseError("failed to save risk engine configuration", err)
	}
	return nil
}

// validateEngineConfig checks stored overrides against the configured limits.
// prefix qualifies the reported field name.
func validateEngineConfig(cfg *models.RiskEngineConfiguration, maxPageSize int, prefix string) error {
	if cfg.PageSize != nil && (*cfg.PageSize <= 0 || *cfg.PageSize > maxPageSize) {
		return apperrors.ValidationError(fmt.Sprintf("page_size must be between 1 and %d", maxPageSize), nil).WithField(prefix + "page_size")
	}
	if cfg.AlertSampleSizePerShard != nil && *cfg.AlertSampleSizePerShard <= 0 {
		return apperrors.ValidationError("alert_sample_size_per_shard must be greater than 0", nil).WithField(prefix + "alert_sample_size_per_shard")
	}
	return nil
}
