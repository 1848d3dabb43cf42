package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ajharbinger/riskscore-preview/internal/models"
)

// DefaultEngineConfigurationID identifies the single stored risk engine configuration
const DefaultEngineConfigurationID = "default"

// engineConfigRepository implements EngineConfigRepository
type engineConfigRepository struct {
	db dbExecutor
}

// NewEngineConfigRepository creates a new engine configuration repository
func NewEngineConfigRepository(db dbExecutor) EngineConfigRepository {
	return &engineConfigRepository{db: db}
}

// Get retrieves the stored configuration
func (r *engineConfigRepository) Get(ctx context.Context) (*models.RiskEngineConfiguration, error) {
	query := `
		SELECT id, enabled, page_size, alert_sample_size_per_shard, updated_at
		FROM risk_engine_configuration
		WHERE id = $1
	`

	var cfg models.RiskEngineConfiguration
	var pageSize, sampleSize sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, DefaultEngineConfigurationID).Scan(
		&cfg.ID, &cfg.Enabled, &pageSize, &sampleSize, &cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get risk engine configuration: %w", err)
	}

	if pageSize.Valid {
		v := int(pageSize.Int64)
		cfg.PageSize = &v
	}
	if sampleSize.Valid {
		v := int(sampleSize.Int64)
		cfg.AlertSampleSizePerShard = &v
	}

	return &cfg, nil
}

// Save creates or replaces the stored configuration
func (r *engineConfigRepository) Save(ctx context.Context, cfg *models.RiskEngineConfiguration) error {
	query := `
		INSERT INTO risk_engine_configuration (id, enabled, page_size, alert_sample_size_per_shard, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			page_size = EXCLUDED.page_size,
			alert_sample_size_per_shard = EXCLUDED.alert_sample_size_per_shard,
			updated_at = EXCLUDED.updated_at
	`

	cfg.ID = DefaultEngineConfigurationID
	cfg.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query, cfg.ID, cfg.Enabled, nullableInt(cfg.PageSize), nullableInt(cfg.AlertSampleSizePerShard), cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save risk engine configuration: %w", err)
	}

	return nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
