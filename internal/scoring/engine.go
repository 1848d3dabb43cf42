package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/ajharbinger/riskscore-preview/internal/riskscore"
)

const (
	// DefaultDecayExponent is the exponent p of the zeta series: the i-th
	// riskiest input contributes score / i^p.
	DefaultDecayExponent = 1.5
	// DefaultRiskCap is the largest reachable raw score, 100 * zeta(1.5)
	DefaultRiskCap = 261.2
	// DefaultMaxReportedInputs caps the inputs listed on each entity score
	DefaultMaxReportedInputs = 10
)

// ScoringEngine aggregates individual risk inputs into an entity risk score
type ScoringEngine struct {
	decayExponent     float64
	riskCap           float64
	maxReportedInputs int
}

// NewScoringEngine creates a new scoring engine instance
func NewScoringEngine() *ScoringEngine {
	return &ScoringEngine{
		decayExponent:     DefaultDecayExponent,
		riskCap:           DefaultRiskCap,
		maxReportedInputs: DefaultMaxReportedInputs,
	}
}

// Input is one risk signal attributed to an entity
type Input struct {
	ID          string
	Index       string
	Category    string
	Description string
	RiskScore   float64
	Timestamp   time.Time
}

// ScoreDetail provides detailed information about a scored entity
type ScoreDetail struct {
	Score           float64
	NormalizedScore float64
	Level           riskscore.RiskLevel
	Category1Score  float64
	Category1Count  int
	LatestInput     time.Time
	Contributions   []riskscore.InputReference
}

// ScoreEntity scores one entity from its risk inputs. weight scales every
// input and comes from the request weights. Inputs are ranked by risk score
// so the result does not depend on their order.
func (e *ScoringEngine) ScoreEntity(inputs []Input, weight float64) ScoreDetail {
	ranked := append([]Input(nil), inputs...)
	SortInputs(ranked)

	detail := ScoreDetail{Category1Count: len(ranked)}
	for i, in := range ranked {
		contribution := in.RiskScore * weight / math.Pow(float64(i+1), e.decayExponent)
		detail.Score += contribution

		if in.Timestamp.After(detail.LatestInput) {
			detail.LatestInput = in.Timestamp
		}
		if i < e.maxReportedInputs {
			detail.Contributions = append(detail.Contributions, riskscore.InputReference{
				ID:                in.ID,
				Index:             in.Index,
				Category:          in.Category,
				Description:       in.Description,
				RiskScore:         in.RiskScore,
				Timestamp:         in.Timestamp,
				ContributionScore: round(contribution),
			})
		}
	}

	detail.Score = round(detail.Score)
	detail.Category1Score = detail.Score
	detail.NormalizedScore = e.Normalize(detail.Score)
	detail.Level = Level(detail.NormalizedScore)
	return detail
}

// Normalize maps a raw score onto 0..100
func (e *ScoringEngine) Normalize(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return round(math.Min(100, 100*score/e.riskCap))
}

// Level buckets a normalized score
func Level(normalized float64) riskscore.RiskLevel {
	switch {
	case normalized >= 90:
		return riskscore.RiskLevelCritical
	case normalized >= 70:
		return riskscore.RiskLevelHigh
	case normalized >= 40:
		return riskscore.RiskLevelModerate
	case normalized >= 20:
		return riskscore.RiskLevelLow
	default:
		return riskscore.RiskLevelUnknown
	}
}

// WeightFor combines the request weights that apply to an identifier type
// and risk category into one multiplier
func WeightFor(weights []riskscore.Weight, identifierType riskscore.IdentifierType, category string) float64 {
	weight := 1.0
	for _, w := range weights {
		switch w.Type {
		case riskscore.WeightTypeGlobalIdentifier:
			weight *= w.For(identifierType)
		case riskscore.WeightTypeRiskCategory:
			if w.Value == category {
				weight *= w.For(identifierType)
			}
		}
	}
	return weight
}

// SortInputs orders inputs by risk score descending, newest first on ties,
// then by ID
func SortInputs(inputs []Input) {
	sort.SliceStable(inputs, func(i, j int) bool {
		a, b := inputs[i], inputs[j]
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID < b.ID
	})
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
