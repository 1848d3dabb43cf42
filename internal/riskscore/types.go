package riskscore

import (
	"time"

	"github.com/ajharbinger/riskscore-preview/internal/models"
)

// IdentifierType is the kind of entity being scored
type IdentifierType string

const (
	IdentifierTypeHost IdentifierType = "host"
	IdentifierTypeUser IdentifierType = "user"
)

// IdentifierTypes lists every supported identifier type in scoring order
var IdentifierTypes = []IdentifierType{IdentifierTypeHost, IdentifierTypeUser}

// Valid reports whether t is a supported identifier type
func (t IdentifierType) Valid() bool {
	return t == IdentifierTypeHost || t == IdentifierTypeUser
}

// Field returns the entity field that identifies this type
func (t IdentifierType) Field() string {
	return string(t) + ".name"
}

// AfterKeys holds one continuation token per identifier type. Tokens are
// opaque to callers and are handed back verbatim to resume paging.
type AfterKeys map[IdentifierType]map[string]string

// DateRange is a time window expressed with date math ("now-15d") or
// absolute timestamps
type DateRange struct {
	Start string `json:"start" mapstructure:"start"`
	End   string `json:"end" mapstructure:"end"`
}

// Weight types
const (
	WeightTypeGlobalIdentifier = "global_identifier"
	WeightTypeRiskCategory     = "risk_category"
)

// Weight overrides how much a scoring factor contributes for each
// identifier type. Host and User are multipliers in [0, 1].
type Weight struct {
	Type  string   `json:"type" mapstructure:"type"`
	Value string   `json:"value,omitempty" mapstructure:"value"`
	Host  *float64 `json:"host,omitempty" mapstructure:"host"`
	User  *float64 `json:"user,omitempty" mapstructure:"user"`
}

// For returns the multiplier for an identifier type, 1 when unset
func (w Weight) For(t IdentifierType) float64 {
	var v *float64
	switch t {
	case IdentifierTypeHost:
		v = w.Host
	case IdentifierTypeUser:
		v = w.User
	}
	if v == nil {
		return 1
	}
	return *v
}

// PreviewRequest is a partially specified preview request as received on the
// wire. Unset optional fields are filled in by the service.
type PreviewRequest struct {
	AfterKeys      AfterKeys              `json:"after_keys,omitempty" mapstructure:"after_keys"`
	DataViewID     string                 `json:"data_view_id" mapstructure:"data_view_id"`
	Debug          bool                   `json:"debug,omitempty" mapstructure:"debug"`
	PageSize       *int                   `json:"page_size,omitempty" mapstructure:"page_size"`
	IdentifierType IdentifierType         `json:"identifier_type,omitempty" mapstructure:"identifier_type"`
	Filter         map[string]interface{} `json:"filter,omitempty" mapstructure:"filter"`
	Range          *DateRange             `json:"range,omitempty" mapstructure:"range"`
	Weights        []Weight               `json:"weights,omitempty" mapstructure:"weights"`
}

// ScoreParams is the fully resolved request handed to a Scorer
type ScoreParams struct {
	AfterKeys               AfterKeys              `json:"after_keys"`
	Debug                   bool                   `json:"debug"`
	Filter                  map[string]interface{} `json:"filter,omitempty"`
	IdentifierType          IdentifierType         `json:"identifier_type,omitempty"`
	Index                   string                 `json:"index"`
	PageSize                int                    `json:"page_size"`
	Range                   DateRange              `json:"range"`
	RuntimeMappings         models.RuntimeMappings `json:"runtime_mappings,omitempty"`
	Weights                 []Weight               `json:"weights,omitempty"`
	AlertSampleSizePerShard int                    `json:"alert_sample_size_per_shard"`
}

// ScoredIdentifierTypes returns the identifier types a request covers
func (p ScoreParams) ScoredIdentifierTypes() []IdentifierType {
	if p.IdentifierType != "" {
		return []IdentifierType{p.IdentifierType}
	}
	return IdentifierTypes
}

// RiskLevel is the bucket a normalized score falls in
type RiskLevel string

const (
	RiskLevelUnknown  RiskLevel = "Unknown"
	RiskLevelLow      RiskLevel = "Low"
	RiskLevelModerate RiskLevel = "Moderate"
	RiskLevelHigh     RiskLevel = "High"
	RiskLevelCritical RiskLevel = "Critical"
)

// InputReference describes one risk input that contributed to a score
type InputReference struct {
	ID                string    `json:"id"`
	Index             string    `json:"index"`
	Category          string    `json:"category"`
	Description       string    `json:"description"`
	RiskScore         float64   `json:"risk_score"`
	Timestamp         time.Time `json:"timestamp"`
	ContributionScore float64   `json:"contribution_score"`
}

// EntityScore is the risk score of a single entity
type EntityScore struct {
	Timestamp           time.Time        `json:"@timestamp"`
	IDField             string           `json:"id_field"`
	IDValue             string           `json:"id_value"`
	CalculatedLevel     RiskLevel        `json:"calculated_level"`
	CalculatedScore     float64          `json:"calculated_score"`
	CalculatedScoreNorm float64          `json:"calculated_score_norm"`
	Category1Score      float64          `json:"category_1_score"`
	Category1Count      int              `json:"category_1_count"`
	Notes               []string         `json:"notes"`
	Inputs              []InputReference `json:"inputs"`
}

// DebugInfo is attached to a result when the request asked for it
type DebugInfo struct {
	Request ScoreParams `json:"request"`
	Queries []string    `json:"queries"`
}

// ScoreResult is a page of scores together with the keys that resume paging
type ScoreResult struct {
	AfterKeys AfterKeys                        `json:"after_keys"`
	Scores    map[IdentifierType][]EntityScore `json:"scores"`
	Debug     *DebugInfo                       `json:"debug,omitempty"`
}
