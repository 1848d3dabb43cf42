package models

import "time"

// RiskEngineConfiguration is the stored risk engine configuration. Nil fields
// fall back to the service defaults.
type RiskEngineConfiguration struct {
	ID                      string    `json:"id" db:"id"`
	Enabled                 bool      `json:"enabled" db:"enabled"`
	PageSize                *int      `json:"page_size,omitempty" db:"page_size"`
	AlertSampleSizePerShard *int      `json:"alert_sample_size_per_shard,omitempty" db:"alert_sample_size_per_shard"`
	UpdatedAt               time.Time `json:"updated_at" db:"updated_at"`
}
