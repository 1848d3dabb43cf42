package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ajharbinger/riskscore-preview/internal/models"
)

// dataViewRepository implements DataViewRepository
type dataViewRepository struct {
	db dbExecutor
}

// NewDataViewRepository creates a new data view repository
func NewDataViewRepository(db dbExecutor) DataViewRepository {
	return &dataViewRepository{db: db}
}

// GetByID retrieves a data view by ID
func (r *dataViewRepository) GetByID(ctx context.Context, id string) (*models.DataView, error) {
	query := `
		SELECT id, title, index_pattern, time_field, runtime_mappings, created_at, updated_at
		FROM data_views
		WHERE id = $1
	`

	var view models.DataView
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&view.ID, &view.Title, &view.IndexPattern, &view.TimeField,
		&view.RuntimeMappings, &view.CreatedAt, &view.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("data view %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get data view: %w", err)
	}

	return &view, nil
}

// Upsert creates or replaces a data view
func (r *dataViewRepository) Upsert(ctx context.Context, view *models.DataView) error {
	query := `
		INSERT INTO data_views (id, title, index_pattern, time_field, runtime_mappings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			index_pattern = EXCLUDED.index_pattern,
			time_field = EXCLUDED.time_field,
			runtime_mappings = EXCLUDED.runtime_mappings,
			updated_at = EXCLUDED.updated_at
	`

	if view.TimeField == "" {
		view.TimeField = "@timestamp"
	}
	now := time.Now().UTC()
	if view.CreatedAt.IsZero() {
		view.CreatedAt = now
	}
	view.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query, view.ID, view.Title, view.IndexPattern, view.TimeField, view.RuntimeMappings, now)
	if err != nil {
		return fmt.Errorf("failed to upsert data view: %w", err)
	}

	return nil
}
