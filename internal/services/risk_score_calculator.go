package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajharbinger/riskscore-preview/internal/datemath"
	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
	"github.com/ajharbinger/riskscore-preview/internal/logger"
	"github.com/ajharbinger/riskscore-preview/internal/models"
	"github.com/ajharbinger/riskscore-preview/internal/repository"
	"github.com/ajharbinger/riskscore-preview/internal/riskscore"
	"github.com/ajharbinger/riskscore-preview/internal/scoring"
)

// RiskScoreCalculator scores entities from the risk inputs stored in Postgres.
// Each identifier type is paged independently and scored concurrently.
type RiskScoreCalculator struct {
	inputs repository.RiskInputRepository
	engine *scoring.ScoringEngine
	logger logger.Logger
	now    func() time.Time
}

// NewRiskScoreCalculator creates a calculator over the given risk inputs
func NewRiskScoreCalculator(inputs repository.RiskInputRepository, engine *scoring.ScoringEngine, log logger.Logger) *RiskScoreCalculator {
	return &RiskScoreCalculator{
		inputs: inputs,
		engine: engine,
		logger: log.With("component", "risk_score_calculator"),
		now:    time.Now,
	}
}

// identifierPage is the scored page of one identifier type
type identifierPage struct {
	scores   []riskscore.EntityScore
	afterKey map[string]string
	queries  []string
}

// CalculateScores implements riskscore.Scorer
func (c *RiskScoreCalculator) CalculateScores(ctx context.Context, params riskscore.ScoreParams) (*riskscore.ScoreResult, error) {
	now := c.now()
	start, err := datemath.Parse(params.Range.Start, now, false)
	if err != nil {
		return nil, apperrors.ValidationError(fmt.Sprintf("invalid range.start %q", params.Range.Start), err).WithField("range.start")
	}
	end, err := datemath.Parse(params.Range.End, now, true)
	if err != nil {
		return nil, apperrors.ValidationError(fmt.Sprintf("invalid range.end %q", params.Range.End), err).WithField("range.end")
	}

	scope := repository.Scope{
		IndexPatterns: splitIndex(params.Index),
		Start:         start,
		End:           end,
		Filter:        params.Filter,
	}

	types := params.ScoredIdentifierTypes()
	pages := make([]identifierPage, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, identifierType := range types {
		g.Go(func() error {
			page, err := c.scoreIdentifierType(gctx, identifierType, scope, params)
			if err != nil {
				return err
			}
			pages[i] = *page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &riskscore.ScoreResult{
		AfterKeys: riskscore.AfterKeys{},
		Scores:    make(map[riskscore.IdentifierType][]riskscore.EntityScore, len(types)),
	}
	var queries []string
	for i, identifierType := range types {
		result.Scores[identifierType] = pages[i].scores
		if pages[i].afterKey != nil {
			result.AfterKeys[identifierType] = pages[i].afterKey
		}
		queries = append(queries, pages[i].queries...)
	}
	if params.Debug {
		result.Debug = &riskscore.DebugInfo{Request: params, Queries: queries}
	}

	return result, nil
}

func (c *RiskScoreCalculator) scoreIdentifierType(ctx context.Context, identifierType riskscore.IdentifierType, scope repository.Scope, params riskscore.ScoreParams) (*identifierPage, error) {
	field := identifierType.Field()

	entities, err := c.inputs.ListEntities(ctx, repository.EntityQuery{
		Scope:           scope,
		IdentifierField: field,
		After:           params.AfterKeys[identifierType][field],
		Limit:           params.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entities: %w", identifierType, err)
	}

	inputs, err := c.inputs.ListInputs(ctx, repository.InputQuery{
		Scope:           scope,
		IdentifierField: field,
		Entities:        entities.Values,
		SampleSize:      params.AlertSampleSizePerShard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s risk inputs: %w", identifierType, err)
	}

	page := &identifierPage{
		scores:  make([]riskscore.EntityScore, 0, len(entities.Values)),
		queries: []string{entities.Query},
	}
	if inputs.Query != "" {
		page.queries = append(page.queries, inputs.Query)
	}

	weight := scoring.WeightFor(params.Weights, identifierType, string(models.RiskCategoryAlerts))
	for _, id := range entities.Values {
		detail := c.engine.ScoreEntity(toScoringInputs(inputs.ByEntity[id]), weight)
		page.scores = append(page.scores, entityScore(field, id, detail))
	}

	if n := len(entities.Values); n > 0 {
		page.afterKey = map[string]string{field: entities.Values[n-1]}
	}

	c.logger.Debug("Scored identifier page",
		"identifier_type", string(identifierType),
		"entities", len(entities.Values),
		"weight", weight,
	)
	return page, nil
}

func entityScore(field, id string, detail scoring.ScoreDetail) riskscore.EntityScore {
	inputs := detail.Contributions
	if inputs == nil {
		inputs = []riskscore.InputReference{}
	}
	return riskscore.EntityScore{
		Timestamp:           detail.LatestInput,
		IDField:             field,
		IDValue:             id,
		CalculatedLevel:     detail.Level,
		CalculatedScore:     detail.Score,
		CalculatedScoreNorm: detail.NormalizedScore,
		Category1Score:      detail.Category1Score,
		Category1Count:      detail.Category1Count,
		Notes:               []string{},
		Inputs:              inputs,
	}
}

func toScoringInputs(inputs []models.RiskInput) []scoring.Input {
	out := make([]scoring.Input, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, scoring.Input{
			ID:          in.ID.String(),
			Index:       in.IndexName,
			Category:    string(in.Category),
			Description: in.RuleName,
			RiskScore:   in.RiskScore,
			Timestamp:   in.Timestamp,
		})
	}
	return out
}

func splitIndex(index string) []string {
	var out []string
	for _, part := range strings.Split(index, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
