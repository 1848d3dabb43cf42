package services

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
	"github.com/ajharbinger/riskscore-preview/internal/models"
	"github.com/ajharbinger/riskscore-preview/internal/repository"
	"github.com/ajharbinger/riskscore-preview/pkg/config"
)

// SeedData is a bundle of data views, engine configuration and risk inputs
// loaded in one transaction
type SeedData struct {
	DataViews    []SeedDataView    `yaml:"data_views" json:"data_views"`
	EngineConfig *SeedEngineConfig `yaml:"engine_configuration,omitempty" json:"engine_configuration,omitempty"`
	RiskInputs   []SeedRiskInput   `yaml:"risk_inputs" json:"risk_inputs"`
}

// SeedDataView describes a data view to create or replace
type SeedDataView struct {
	ID              string                         `yaml:"id" json:"id"`
	Title           string                         `yaml:"title" json:"title"`
	IndexPattern    string                         `yaml:"index_pattern" json:"index_pattern"`
	TimeField       string                         `yaml:"time_field,omitempty" json:"time_field,omitempty"`
	RuntimeMappings map[string]models.RuntimeField `yaml:"runtime_mappings,omitempty" json:"runtime_mappings,omitempty"`
}

// SeedEngineConfig overrides the stored risk engine configuration
type SeedEngineConfig struct {
	Enabled                 bool `yaml:"enabled" json:"enabled"`
	PageSize                *int `yaml:"page_size,omitempty" json:"page_size,omitempty"`
	AlertSampleSizePerShard *int `yaml:"alert_sample_size_per_shard,omitempty" json:"alert_sample_size_per_shard,omitempty"`
}

// SeedRiskInput describes one risk input
type SeedRiskInput struct {
	Index     string    `yaml:"index" json:"index"`
	HostName  string    `yaml:"host,omitempty" json:"host,omitempty"`
	UserName  string    `yaml:"user,omitempty" json:"user,omitempty"`
	RuleName  string    `yaml:"rule" json:"rule"`
	Severity  string    `yaml:"severity" json:"severity"`
	RiskScore float64   `yaml:"risk_score" json:"risk_score"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
}

// SeedSummary counts what a seed load wrote
type SeedSummary struct {
	DataViews    int  `json:"data_views"`
	EngineConfig bool `json:"engine_configuration"`
	RiskInputs   int  `json:"risk_inputs"`
}

// seedServiceImpl implements SeedService
type seedServiceImpl struct {
	repos       *repository.Repositories
	maxPageSize int
}

// newSeedService creates a new seed service implementation
func newSeedService(repos *repository.Repositories, cfg *config.Config) SeedService {
	return &seedServiceImpl{repos: repos, maxPageSize: cfg.EntityAnalytics.MaxPageSize}
}

// Load validates the seed data and writes it atomically. Data views and the
// engine configuration pass the same checks as their Save operations.
func (s *seedServiceImpl) Load(ctx context.Context, data *SeedData) (*SeedSummary, error) {
	views := make([]*models.DataView, 0, len(data.DataViews))
	for i, dv := range data.DataViews {
		view := &models.DataView{
			ID:              dv.ID,
			Title:           dv.Title,
			IndexPattern:    dv.IndexPattern,
			TimeField:       dv.TimeField,
			RuntimeMappings: models.RuntimeMappings(dv.RuntimeMappings),
		}
		if err := validateDataView(view, fmt.Sprintf("data_views.%d.", i)); err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	var engineConfig *models.RiskEngineConfiguration
	if ec := data.EngineConfig; ec != nil {
		engineConfig = &models.RiskEngineConfiguration{
			Enabled:                 ec.Enabled,
			PageSize:                ec.PageSize,
			AlertSampleSizePerShard: ec.AlertSampleSizePerShard,
		}
		if err := validateEngineConfig(engineConfig, s.maxPageSize, "engine_configuration."); err != nil {
			return nil, err
		}
	}

	for i, in := range data.RiskInputs {
		if in.HostName == "" && in.UserName == "" {
			return nil, apperrors.ValidationError(fmt.Sprintf("risk input %d: host or user is required", i), nil).
				WithField(fmt.Sprintf("risk_inputs.%d.host", i))
		}
		if in.RiskScore < 0 || in.RiskScore > 100 {
			return nil, apperrors.ValidationError(fmt.Sprintf("risk input %d: risk_score must be between 0 and 100", i), nil).
				WithField(fmt.Sprintf("risk_inputs.%d.risk_score", i))
		}
	}

	summary := &SeedSummary{}
	err := s.repos.Tx.WithTransaction(ctx, func(tx *repository.Repositories) error {
		for _, view := range views {
			if err := tx.DataViews.Upsert(ctx, view); err != nil {
				return err
			}
			summary.DataViews++
		}

		if engineConfig != nil {
			if err := tx.EngineConfig.Save(ctx, engineConfig); err != nil {
				return err
			}
			summary.EngineConfig = true
		}

		for _, in := range data.RiskInputs {
			input := &models.RiskInput{
				IndexName: in.Index,
				HostName:  optional(in.HostName),
				UserName:  optional(in.UserName),
				Category:  models.RiskCategoryAlerts,
				RuleName:  in.RuleName,
				Severity:  in.Severity,
				RiskScore: in.RiskScore,
				Timestamp: in.Timestamp,
			}
			if err := tx.RiskInputs.Insert(ctx, input); err != nil {
				return err
			}
			summary.RiskInputs++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load seed data: %w", err)
	}

	return summary, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
