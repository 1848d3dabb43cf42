// Package audit records security relevant actions. Recording is best effort:
// callers log sink failures and carry on.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/riskscore-preview/internal/logger"
	"github.com/ajharbinger/riskscore-preview/internal/models"
)

// Event categories, types and outcomes
const (
	CategoryDatabase = "database"

	TypeChange = "change"

	OutcomeSuccess = "success"
)

// Risk score actions
const (
	ActionRiskEnginePreview = "risk_engine_preview"
)

// Event is one audit record
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time
	Message   string
	Action    string
	Category  string
	Type      string
	Outcome   string
	Labels    map[string]string
}

// NewEvent creates an event with a fresh ID and timestamp
func NewEvent(message, action, category, eventType, outcome string) Event {
	return Event{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Message:   message,
		Action:    action,
		Category:  category,
		Type:      eventType,
		Outcome:   outcome,
		Labels:    map[string]string{},
	}
}

// Logger receives audit events
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// Store persists audit events
type Store interface {
	InsertAuditEvent(ctx context.Context, event *models.AuditEvent) error
}

// LogSink writes audit events to the service log
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates an audit logger backed by the service log
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log.With("log_type", "audit")}
}

// Log implements Logger
func (s *LogSink) Log(_ context.Context, event Event) error {
	fields := []interface{}{
		"event_id", event.ID.String(),
		"event_action", event.Action,
		"event_category", event.Category,
		"event_type", event.Type,
		"event_outcome", event.Outcome,
	}
	for k, v := range event.Labels {
		fields = append(fields, "label_"+k, v)
	}
	s.log.Info(event.Message, fields...)
	return nil
}

// StoreSink persists audit events
type StoreSink struct {
	store Store
}

// NewStoreSink creates an audit logger that persists events through store
func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

// Log implements Logger
func (s *StoreSink) Log(ctx context.Context, event Event) error {
	return s.store.InsertAuditEvent(ctx, &models.AuditEvent{
		ID:        event.ID,
		Message:   event.Message,
		Action:    event.Action,
		Category:  event.Category,
		Type:      event.Type,
		Outcome:   event.Outcome,
		Labels:    models.AuditLabels(event.Labels),
		CreatedAt: event.Timestamp,
	})
}

// MultiSink fans an event out to several loggers. Every sink is attempted;
// the joined error reports the ones that failed.
type MultiSink []Logger

// Log implements Logger
func (m MultiSink) Log(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards audit events
type Nop struct{}

// Log implements Logger
func (Nop) Log(context.Context, Event) error { return nil }
