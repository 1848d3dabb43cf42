package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
	"github.com/ajharbinger/riskscore-preview/internal/models"
)

// identifierColumns maps entity identifier fields onto risk_inputs columns
var identifierColumns = map[string]string{
	"host.name": "host_name",
	"user.name": "user_name",
}

// riskInputRepository implements RiskInputRepository
type riskInputRepository struct {
	db dbExecutor
}

// NewRiskInputRepository creates a new risk input repository
func NewRiskInputRepository(db dbExecutor) RiskInputRepository {
	return &riskInputRepository{db: db}
}

// ListEntities returns one page of entity identifiers in ascending order
func (r *riskInputRepository) ListEntities(ctx context.Context, q EntityQuery) (*EntityPage, error) {
	column, err := identifierColumn(q.IdentifierField)
	if err != nil {
		return nil, err
	}

	args := &queryArgs{}
	where, err := scopeConditions(column, q.Scope, args)
	if err != nil {
		return nil, err
	}
	if q.After != "" {
		where = append(where, fmt.Sprintf("%s > %s", column, args.add(q.After)))
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT %[1]s
		FROM risk_inputs
		WHERE %[2]s
		ORDER BY %[1]s
		LIMIT %[3]s
	`, column, strings.Join(where, " AND "), args.add(q.Limit))

	rows, err := r.db.QueryContext(ctx, query, args.values...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	page := &EntityPage{Query: compact(query)}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		page.Values = append(page.Values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}

	return page, nil
}

// ListInputs returns the riskiest inputs of each requested entity
func (r *riskInputRepository) ListInputs(ctx context.Context, q InputQuery) (*InputSet, error) {
	column, err := identifierColumn(q.IdentifierField)
	if err != nil {
		return nil, err
	}

	set := &InputSet{ByEntity: make(map[string][]models.RiskInput, len(q.Entities))}
	if len(q.Entities) == 0 {
		return set, nil
	}

	args := &queryArgs{}
	where, err := scopeConditions(column, q.Scope, args)
	if err != nil {
		return nil, err
	}
	where = append(where, fmt.Sprintf("%s = ANY(%s)", column, args.add(pq.Array(q.Entities))))

	query := fmt.Sprintf(`
		SELECT id, index_name, host_name, user_name, category, rule_name, severity,
			risk_score, event_timestamp, created_at, entity
		FROM (
			SELECT ri.*, ri.%[1]s AS entity,
				ROW_NUMBER() OVER (
					PARTITION BY ri.%[1]s
					ORDER BY ri.risk_score DESC, ri.event_timestamp DESC, ri.id
				) AS rn
			FROM risk_inputs ri
			WHERE %[2]s
		) ranked
		WHERE rn <= %[3]s
		ORDER BY entity, rn
	`, column, strings.Join(where, " AND "), args.add(q.SampleSize))

	rows, err := r.db.QueryContext(ctx, query, args.values...)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk inputs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var in models.RiskInput
		var entity string
		if err := rows.Scan(
			&in.ID, &in.IndexName, &in.HostName, &in.UserName, &in.Category, &in.RuleName,
			&in.Severity, &in.RiskScore, &in.Timestamp, &in.CreatedAt, &entity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan risk input: %w", err)
		}
		set.ByEntity[entity] = append(set.ByEntity[entity], in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate risk inputs: %w", err)
	}

	set.Query = compact(query)
	return set, nil
}

// Insert stores a risk input
func (r *riskInputRepository) Insert(ctx context.Context, input *models.RiskInput) error {
	query := `
		INSERT INTO risk_inputs (id, index_name, host_name, user_name, category, rule_name,
			severity, risk_score, event_timestamp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if input.ID == uuid.Nil {
		input.ID = uuid.New()
	}
	if input.Category == "" {
		input.Category = models.RiskCategoryAlerts
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		input.ID, input.IndexName, input.HostName, input.UserName, input.Category, input.RuleName,
		input.Severity, input.RiskScore, input.Timestamp, input.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert risk input: %w", err)
	}

	return nil
}

func identifierColumn(field string) (string, error) {
	column, ok := identifierColumns[field]
	if !ok {
		return "", apperrors.ValidationError(fmt.Sprintf("unsupported identifier field %q", field), nil)
	}
	return column, nil
}

// scopeConditions builds the conditions shared by entity and input queries
func scopeConditions(column string, scope Scope, args *queryArgs) ([]string, error) {
	where := []string{
		column + " IS NOT NULL",
		fmt.Sprintf("event_timestamp BETWEEN %s AND %s", args.add(scope.Start), args.add(scope.End)),
	}
	if len(scope.IndexPatterns) > 0 {
		where = append(where, fmt.Sprintf("index_name LIKE ANY(%s)", args.add(pq.Array(likePatterns(scope.IndexPatterns)))))
	}

	filter, err := compileFilter(scope.Filter, args)
	if err != nil {
		return nil, err
	}
	if filter != "TRUE" {
		where = append(where, "("+filter+")")
	}
	return where, nil
}

// likePatterns turns index patterns such as "alerts-*" into LIKE patterns
func likePatterns(patterns []string) []string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, strings.ReplaceAll(escaper.Replace(p), "*", "%"))
	}
	return out
}

func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
