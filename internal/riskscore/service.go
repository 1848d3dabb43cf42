// Package riskscore implements the risk score preview: a stateless facade
// that validates a scoring request, fills in defaults, resolves the data view
// and hands the request to a scorer. Paging state lives with the caller in
// the after keys.
package riskscore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ajharbinger/riskscore-preview/internal/audit"
	"github.com/ajharbinger/riskscore-preview/internal/datemath"
	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
	"github.com/ajharbinger/riskscore-preview/internal/logger"
	"github.com/ajharbinger/riskscore-preview/internal/models"
)

// Default preview window
const (
	DefaultRangeStart = "now-15d"
	DefaultRangeEnd   = "now"
)

// auditTimeout bounds how long a preview waits on the audit sinks
const auditTimeout = 2 * time.Second

// ResolvedDataView is what scoring needs to know about a data view
type ResolvedDataView struct {
	Index           string
	RuntimeMappings models.RuntimeMappings
}

// Configuration carries the effective risk engine settings
type Configuration struct {
	PageSize                int
	AlertSampleSizePerShard int
}

// DataViewResolver looks up the sources behind a data view
type DataViewResolver interface {
	ResolveDataView(ctx context.Context, dataViewID string) (*ResolvedDataView, error)
}

// ConfigProvider supplies the risk engine configuration with defaults applied
type ConfigProvider interface {
	GetConfigurationWithDefaults(ctx context.Context) (*Configuration, error)
}

// Scorer computes risk scores for a resolved request
type Scorer interface {
	CalculateScores(ctx context.Context, params ScoreParams) (*ScoreResult, error)
}

// Dependencies are the collaborators of a Service
type Dependencies struct {
	DataViews   DataViewResolver
	Config      ConfigProvider
	Scorer      Scorer
	Audit       audit.Logger
	Logger      logger.Logger
	MaxPageSize int
	Now         func() time.Time
}

// Service is the preview facade. It holds no per-request state and is safe
// for concurrent use.
type Service struct {
	dataViews   DataViewResolver
	config      ConfigProvider
	scorer      Scorer
	audit       audit.Logger
	logger      logger.Logger
	maxPageSize int
	now         func() time.Time
}

// NewService creates a preview service
func NewService(deps Dependencies) *Service {
	s := &Service{
		dataViews:   deps.DataViews,
		config:      deps.Config,
		scorer:      deps.Scorer,
		audit:       deps.Audit,
		logger:      deps.Logger,
		maxPageSize: deps.MaxPageSize,
		now:         deps.Now,
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Preview scores one page of entities. Errors are always *errors.AppError:
// validation and not-found errors keep their kind, everything raised by the
// collaborators is reported as an upstream error wrapping the original.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (*ScoreResult, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	cfg, err := s.config.GetConfigurationWithDefaults(ctx)
	if err != nil {
		return nil, translate(err, "Failed to load risk engine configuration", "GetConfigurationWithDefaults")
	}

	params := ResolveDefaults(req, cfg)

	view, err := s.dataViews.ResolveDataView(ctx, req.DataViewID)
	if err != nil {
		return nil, translate(err, "Failed to resolve data view", "ResolveDataView")
	}
	params.Index = view.Index
	params.RuntimeMappings = view.RuntimeMappings

	s.logger.Debug("Calculating preview risk scores",
		"data_view_id", req.DataViewID,
		"index", params.Index,
		"identifier_type", string(params.IdentifierType),
		"page_size", params.PageSize,
		"range_start", params.Range.Start,
		"range_end", params.Range.End,
	)

	result, err := s.scorer.CalculateScores(ctx, params)
	if err != nil {
		s.logger.Error("Failed to calculate risk scores", err, "data_view_id", req.DataViewID)
		return nil, translate(err, "Failed to calculate risk scores", "CalculateScores")
	}

	s.recordAudit(ctx, req)
	return result, nil
}

// ResolveDefaults fills every unset optional field of req
func ResolveDefaults(req PreviewRequest, cfg *Configuration) ScoreParams {
	afterKeys := req.AfterKeys
	if afterKeys == nil {
		afterKeys = AfterKeys{}
	}
	dateRange := DateRange{Start: DefaultRangeStart, End: DefaultRangeEnd}
	if req.Range != nil {
		dateRange = *req.Range
	}
	pageSize := cfg.PageSize
	if req.PageSize != nil {
		pageSize = *req.PageSize
	}

	return ScoreParams{
		AfterKeys:               afterKeys,
		Debug:                   req.Debug,
		Filter:                  req.Filter,
		IdentifierType:          req.IdentifierType,
		PageSize:                pageSize,
		Range:                   dateRange,
		Weights:                 req.Weights,
		AlertSampleSizePerShard: cfg.AlertSampleSizePerShard,
	}
}

// Validate checks a request without touching any collaborator
func (s *Service) Validate(req PreviewRequest) error {
	if strings.TrimSpace(req.DataViewID) == "" {
		return invalid("data_view_id", "data_view_id is required")
	}

	if req.IdentifierType != "" && !req.IdentifierType.Valid() {
		return invalid("identifier_type", fmt.Sprintf("identifier_type must be one of host, user; got %q", req.IdentifierType))
	}

	if req.PageSize != nil {
		if *req.PageSize <= 0 {
			return invalid("page_size", fmt.Sprintf("page_size must be greater than 0; got %d", *req.PageSize))
		}
		if s.maxPageSize > 0 && *req.PageSize > s.maxPageSize {
			return invalid("page_size", fmt.Sprintf("page_size must be at most %d; got %d", s.maxPageSize, *req.PageSize))
		}
	}

	if req.Range != nil {
		if err := validateRange(*req.Range, s.now()); err != nil {
			return err
		}
	}

	for identifierType := range req.AfterKeys {
		if !identifierType.Valid() {
			return invalid("after_keys."+string(identifierType), fmt.Sprintf("after_keys contains unknown identifier type %q", identifierType))
		}
	}

	for i, w := range req.Weights {
		if err := validateWeight(i, w); err != nil {
			return err
		}
	}

	return nil
}

func validateRange(r DateRange, now time.Time) error {
	start, err := datemath.Parse(r.Start, now, false)
	if err != nil {
		return invalidCause("range.start", fmt.Sprintf("range.start is not a valid date expression: %q", r.Start), err)
	}
	end, err := datemath.Parse(r.End, now, true)
	if err != nil {
		return invalidCause("range.end", fmt.Sprintf("range.end is not a valid date expression: %q", r.End), err)
	}
	if start.After(end) {
		return invalid("range", fmt.Sprintf("range.start (%s) must not be after range.end (%s)", r.Start, r.End))
	}
	return nil
}

func validateWeight(i int, w Weight) error {
	field := fmt.Sprintf("weights.%d", i)
	switch w.Type {
	case WeightTypeGlobalIdentifier:
		if w.Value != "" {
			return invalid(field+".value", "global_identifier weights do not take a value")
		}
	case WeightTypeRiskCategory:
		if w.Value != string(models.RiskCategoryAlerts) {
			return invalid(field+".value", fmt.Sprintf("unknown risk category %q", w.Value))
		}
	default:
		return invalid(field+".type", fmt.Sprintf("unknown weight type %q", w.Type))
	}
	for _, t := range IdentifierTypes {
		if v := w.For(t); v < 0 || v > 1 {
			return invalid(field+"."+string(t), fmt.Sprintf("%s weight must be between 0 and 1; got %v", t, v))
		}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, req PreviewRequest) {
	event := audit.NewEvent(
		"User triggered custom manual scoring",
		audit.ActionRiskEnginePreview,
		audit.CategoryDatabase,
		audit.TypeChange,
		audit.OutcomeSuccess,
	)
	event.Labels["data_view_id"] = req.DataViewID
	if req.IdentifierType != "" {
		event.Labels["identifier_type"] = string(req.IdentifierType)
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := s.audit.Log(auditCtx, event); err != nil {
		s.logger.Warn("Failed to record audit event", "event_action", event.Action, "error", err.Error())
	}
}

// translate keeps validation and not-found errors as they are and wraps
// everything else as an upstream failure
func translate(err error, message, operation string) error {
	if apperrors.Is(err, apperrors.ErrCodeValidationError) || apperrors.Is(err, apperrors.ErrCodeNotFound) {
		return apperrors.Transform(err)
	}
	return apperrors.UpstreamError(fmt.Sprintf("%s: %v", message, err), err).WithOperation(operation)
}

func invalid(field, message string) error {
	return apperrors.ValidationError(message, nil).WithField(field).WithOperation("Preview")
}

func invalidCause(field, message string, cause error) error {
	return apperrors.ValidationError(message, cause).WithField(field).WithOperation("Preview")
}
