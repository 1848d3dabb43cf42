package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/riskscore-preview/internal/logger"
	"github.com/ajharbinger/riskscore-preview/internal/models"
)

type mockStore struct {
	events      []*models.AuditEvent
	shouldError bool
}

func (m *mockStore) InsertAuditEvent(_ context.Context, event *models.AuditEvent) error {
	if m.shouldError {
		return errors.New("mock error")
	}
	m.events = append(m.events, event)
	return nil
}

func TestNewEvent(t *testing.T) {
	event := NewEvent("User triggered custom manual scoring", ActionRiskEnginePreview, CategoryDatabase, TypeChange, OutcomeSuccess)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.NotNil(t, event.Labels)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(logger.New(logger.Options{Output: &buf}))

	event := NewEvent("User triggered custom manual scoring", ActionRiskEnginePreview, CategoryDatabase, TypeChange, OutcomeSuccess)
	event.Labels["data_view_id"] = "dv-1"
	require.NoError(t, sink.Log(context.Background(), event))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "User triggered custom manual scoring", entry["message"])
	assert.Equal(t, "audit", entry["log_type"])
	assert.Equal(t, ActionRiskEnginePreview, entry["event_action"])
	assert.Equal(t, "dv-1", entry["label_data_view_id"])
}

func TestStoreSink(t *testing.T) {
	store := &mockStore{}
	sink := NewStoreSink(store)

	event := NewEvent("msg", ActionRiskEnginePreview, CategoryDatabase, TypeChange, OutcomeSuccess)
	require.NoError(t, sink.Log(context.Background(), event))

	require.Len(t, store.events, 1)
	assert.Equal(t, event.ID, store.events[0].ID)
	assert.Equal(t, OutcomeSuccess, store.events[0].Outcome)
}

func TestMultiSink_AttemptsEverySink(t *testing.T) {
	failing := &mockStore{shouldError: true}
	working := &mockStore{}
	sinks := MultiSink{NewStoreSink(failing), NewStoreSink(working)}

	err := sinks.Log(context.Background(), NewEvent("msg", ActionRiskEnginePreview, CategoryDatabase, TypeChange, OutcomeSuccess))

	assert.Error(t, err)
	assert.Len(t, working.events, 1)
}
