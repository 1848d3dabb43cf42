package models

import (
	"time"

	"github.com/google/uuid"
)

// RiskCategory groups risk inputs; alerts are the only category today
type RiskCategory string

const (
	RiskCategoryAlerts RiskCategory = "category_1"
)

// RiskInput is a single scored signal attributed to a host and/or user
type RiskInput struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	IndexName string       `json:"index" db:"index_name"`
	HostName  *string      `json:"host_name,omitempty" db:"host_name"`
	UserName  *string      `json:"user_name,omitempty" db:"user_name"`
	Category  RiskCategory `json:"category" db:"category"`
	RuleName  string       `json:"rule_name" db:"rule_name"`
	Severity  string       `json:"severity" db:"severity"`
	RiskScore float64      `json:"risk_score" db:"risk_score"`
	Timestamp time.Time    `json:"timestamp" db:"event_timestamp"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
