package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/riskscore-preview/internal/models"
)

// auditRepository implements AuditRepository
type auditRepository struct {
	db dbExecutor
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db dbExecutor) AuditRepository {
	return &auditRepository{db: db}
}

// InsertAuditEvent stores an audit event
func (r *auditRepository) InsertAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	query := `
		INSERT INTO audit_events (id, message, action, category, type, outcome, labels, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Message, event.Action, event.Category, event.Type, event.Outcome, event.Labels, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}
