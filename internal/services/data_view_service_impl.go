package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
	"github.com/ajharbinger/riskscore-preview/internal/models"
	"github.com/ajharbinger/riskscore-preview/internal/repository"
	"github.com/ajharbinger/riskscore-preview/internal/riskscore"
)

// dataViewServiceImpl implements DataViewService
type dataViewServiceImpl struct {
	repos *repository.Repositories
}

// newDataViewService creates a new data view service implementation
func newDataViewService(repos *repository.Repositories) DataViewService {
	return &dataViewServiceImpl{repos: repos}
}

// ResolveDataView returns the index pattern and runtime mappings behind a data view
func (s *dataViewServiceImpl) ResolveDataView(ctx context.Context, dataViewID string) (*riskscore.ResolvedDataView, error) {
	view, err := s.repos.DataViews.GetByID(ctx, dataViewID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("Data view %q not found", dataViewID), err).
				WithField("data_view_id").
				WithOperation("ResolveDataView")
		}
		return nil, fmt.Errorf("failed to get data view: %w", err)
	}

	indices := view.Indices()
	if len(indices) == 0 {
		return nil, fmt.Errorf("data view %q has no index pattern", dataViewID)
	}

	return &riskscore.ResolvedDataView{
		Index:           strings.Join(indices, ","),
		RuntimeMappings: view.RuntimeMappings,
	}, nil
}

// Save validates and stores a data view
func (s *dataViewServiceImpl) Save(ctx context.Context, view *models.DataView) error {
	if err := validateDataView(view, ""); err != nil {
		return err
	}

	if err := s.repos.DataViews.Upsert(ctx, view); err != nil {
		return apperrors.DatabaseError("failed to save data view", err)
	}
	return nil
}

// validateDataView checks the fields a data view needs to be resolvable.
// prefix qualifies the reported field name.
func validateDataView(view *models.DataView, prefix string) error {
	if strings.TrimSpace(view.ID) == "" {
		return apperrors.ValidationError("data view id is required", nil).WithField(prefix + "id")
	}
	if len(view.Indices()) == 0 {
		return apperrors.ValidationError(fmt.Sprintf("data view %q index pattern is required", view.ID), nil).WithField(prefix + "index_pattern")
	}
	return nil
}
