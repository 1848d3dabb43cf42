package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEvent is a persisted audit record
type AuditEvent struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Message   string      `json:"message" db:"message"`
	Action    string      `json:"action" db:"action"`
	Category  string      `json:"category" db:"category"`
	Type      string      `json:"type" db:"type"`
	Outcome   string      `json:"outcome" db:"outcome"`
	Labels    AuditLabels `json:"labels" db:"labels"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// AuditLabels holds free-form audit context as JSON
type AuditLabels map[string]string

// Value implements driver.Valuer for AuditLabels
func (l AuditLabels) Value() (driver.Value, error) {
	if l == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for AuditLabels
func (l *AuditLabels) Scan(value interface{}) error {
	if value == nil {
		*l = AuditLabels{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into AuditLabels", value)
	}

	return json.Unmarshal(bytes, l)
}
