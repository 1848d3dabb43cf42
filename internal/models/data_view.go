package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DataView maps a named view onto one or more physical risk input sources
type DataView struct {
	ID              string          `json:"id" db:"id"`
	Title           string          `json:"title" db:"title"`
	IndexPattern    string          `json:"index_pattern" db:"index_pattern"`
	TimeField       string          `json:"time_field" db:"time_field"`
	RuntimeMappings RuntimeMappings `json:"runtime_mappings" db:"runtime_mappings"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Indices splits the comma separated index pattern
func (d *DataView) Indices() []string {
	var out []string
	for _, part := range strings.Split(d.IndexPattern, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RuntimeField describes a field computed at query time
type RuntimeField struct {
	Type   string `json:"type"`
	Script string `json:"script,omitempty"`
}

// RuntimeMappings represents the runtime field definitions of a data view as JSON
type RuntimeMappings map[string]RuntimeField

// Value implements driver.Valuer for RuntimeMappings
func (r RuntimeMappings) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner for RuntimeMappings
func (r *RuntimeMappings) Scan(value interface{}) error {
	if value == nil {
		*r = RuntimeMappings{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RuntimeMappings", value)
	}

	return json.Unmarshal(bytes, r)
}
