package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ajharbinger/riskscore-preview/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// DataViewRepository defines the interface for data view access
type DataViewRepository interface {
	GetByID(ctx context.Context, id string) (*models.DataView, error)
	Upsert(ctx context.Context, view *models.DataView) error
}

// RiskInputRepository defines the interface for risk input access
type RiskInputRepository interface {
	// ListEntities returns one page of distinct entity identifiers, ordered
	// ascending and strictly after q.After
	ListEntities(ctx context.Context, q EntityQuery) (*EntityPage, error)
	// ListInputs returns the riskiest inputs of each entity, at most
	// q.SampleSize per entity
	ListInputs(ctx context.Context, q InputQuery) (*InputSet, error)
	Insert(ctx context.Context, input *models.RiskInput) error
}

// EngineConfigRepository defines the interface for the stored risk engine configuration
type EngineConfigRepository interface {
	Get(ctx context.Context) (*models.RiskEngineConfiguration, error)
	Save(ctx context.Context, cfg *models.RiskEngineConfiguration) error
}

// AuditRepository defines the interface for audit event persistence
type AuditRepository interface {
	InsertAuditEvent(ctx context.Context, event *models.AuditEvent) error
}

// TransactionManager defines the interface for database transaction management
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(repos *Repositories) error) error
}

// Repositories groups all repository interfaces
type Repositories struct {
	DataViews    DataViewRepository
	RiskInputs   RiskInputRepository
	EngineConfig EngineConfigRepository
	Audit        AuditRepository
	Tx           TransactionManager
}

// Scope narrows risk inputs to a set of sources and a time window
type Scope struct {
	IndexPatterns []string
	Start         time.Time
	End           time.Time
	Filter        map[string]interface{}
}

// EntityQuery selects a page of entities
type EntityQuery struct {
	Scope
	IdentifierField string
	After           string
	Limit           int
}

// EntityPage is a page of entity identifiers
type EntityPage struct {
	Values []string
	Query  string
}

// InputQuery selects the risk inputs of a set of entities
type InputQuery struct {
	Scope
	IdentifierField string
	Entities        []string
	SampleSize      int
}

// InputSet holds risk inputs grouped by entity identifier
type InputSet struct {
	ByEntity map[string][]models.RiskInput
	Query    string
}
