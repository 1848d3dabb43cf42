package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
	"github.com/ajharbinger/riskscore-preview/internal/logger"
	"github.com/ajharbinger/riskscore-preview/internal/models"
	"github.com/ajharbinger/riskscore-preview/internal/riskscore"
	"github.com/ajharbinger/riskscore-preview/internal/scoring"
	"github.com/ajharbinger/riskscore-preview/pkg/config"
)

var now = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func testConfig() *config.Config {
	return &config.Config{
		EntityAnalytics: config.EntityAnalyticsConfig{
			DefaultPageSize:         1000,
			MaxPageSize:             10000,
			AlertSampleSizePerShard: 10000,
		},
		AuditSink: config.AuditSinkDatabase,
	}
}

func input(host, user string, score float64, age time.Duration) models.RiskInput {
	in := models.RiskInput{
		ID:        uuid.New(),
		IndexName: ".alerts-security.alerts-default",
		Category:  models.RiskCategoryAlerts,
		RuleName:  "Rule",
		Severity:  "high",
		RiskScore: score,
		Timestamp: now.Add(-age),
	}
	if host != "" {
		in.HostName = strPtr(host)
	}
	if user != "" {
		in.UserName = strPtr(user)
	}
	return in
}

func newTestCalculator(repos *fakeRepos) *RiskScoreCalculator {
	calc := NewRiskScoreCalculator(repos.inputs, scoring.NewScoringEngine(), logger.NewNop())
	calc.now = func() time.Time { return now }
	return calc
}

func defaultParams() riskscore.ScoreParams {
	return riskscore.ScoreParams{
		AfterKeys:               riskscore.AfterKeys{},
		Index:                   ".alerts-security.alerts-default",
		PageSize:                1000,
		Range:                   riskscore.DateRange{Start: "now-15d", End: "now"},
		AlertSampleSizePerShard: 10000,
	}
}

func TestRiskScoreCalculator_ScoresBothIdentifierTypes(t *testing.T) {
	repos := newFakeRepos()
	repos.inputs.inputs = []models.RiskInput{
		input("web-01", "alice", 99, time.Hour),
		input("web-01", "", 47, 2*time.Hour),
		input("db-01", "bob", 73, time.Hour),
		input("old-01", "", 90, 30*24*time.Hour),
	}

	result, err := newTestCalculator(repos).CalculateScores(context.Background(), defaultParams())
	require.NoError(t, err)

	hosts := result.Scores[riskscore.IdentifierTypeHost]
	require.Len(t, hosts, 2, "inputs outside the range are ignored")
	assert.Equal(t, "db-01", hosts[0].IDValue)
	assert.Equal(t, "web-01", hosts[1].IDValue)
	assert.Equal(t, "host.name", hosts[1].IDField)
	assert.Equal(t, 2, hosts[1].Category1Count)
	assert.True(t, hosts[1].Timestamp.Equal(now.Add(-time.Hour)), "timestamp is the latest input")
	assert.NotNil(t, hosts[1].Notes)

	users := result.Scores[riskscore.IdentifierTypeUser]
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].IDValue)

	assert.Equal(t, map[string]string{"host.name": "web-01"}, result.AfterKeys[riskscore.IdentifierTypeHost])
	assert.Equal(t, map[string]string{"user.name": "bob"}, result.AfterKeys[riskscore.IdentifierTypeUser])
	assert.Nil(t, result.Debug)
}

func TestRiskScoreCalculator_Pages(t *testing.T) {
	repos := newFakeRepos()
	for _, host := range []string{"a", "b", "c"} {
		repos.inputs.inputs = append(repos.inputs.inputs, input(host, "", 50, time.Hour))
	}
	calc := newTestCalculator(repos)

	params := defaultParams()
	params.IdentifierType = riskscore.IdentifierTypeHost
	params.PageSize = 2

	first, err := calc.CalculateScores(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, first.Scores[riskscore.IdentifierTypeHost], 2)
	assert.NotContains(t, first.Scores, riskscore.IdentifierTypeUser)

	params.AfterKeys = first.AfterKeys
	second, err := calc.CalculateScores(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, second.Scores[riskscore.IdentifierTypeHost], 1)
	assert.Equal(t, "c", second.Scores[riskscore.IdentifierTypeHost][0].IDValue)

	params.AfterKeys = second.AfterKeys
	last, err := calc.CalculateScores(context.Background(), params)
	require.NoError(t, err)
	assert.Empty(t, last.Scores[riskscore.IdentifierTypeHost])
	assert.NotContains(t, last.AfterKeys, riskscore.IdentifierTypeHost)
}

func TestRiskScoreCalculator_Weights(t *testing.T) {
	repos := newFakeRepos()
	repos.inputs.inputs = []models.RiskInput{input("web-01", "alice", 80, time.Hour)}
	calc := newTestCalculator(repos)

	half := 0.5
	params := defaultParams()
	params.Weights = []riskscore.Weight{{Type: riskscore.WeightTypeGlobalIdentifier, Host: &half}}

	result, err := calc.CalculateScores(context.Background(), params)
	require.NoError(t, err)
	assert.InDelta(t, 40, result.Scores[riskscore.IdentifierTypeHost][0].CalculatedScore, 0.001)
	assert.InDelta(t, 80, result.Scores[riskscore.IdentifierTypeUser][0].CalculatedScore, 0.001)
}

func TestRiskScoreCalculator_Debug(t *testing.T) {
	repos := newFakeRepos()
	repos.inputs.inputs = []models.RiskInput{input("web-01", "", 80, time.Hour)}

	params := defaultParams()
	params.Debug = true
	params.IdentifierType = riskscore.IdentifierTypeHost

	result, err := newTestCalculator(repos).CalculateScores(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, result.Debug)
	assert.Equal(t, params.Index, result.Debug.Request.Index)
	assert.Equal(t, []string{"entities host.name", "inputs host.name"}, result.Debug.Queries)
}

func TestRiskScoreCalculator_RepositoryError(t *testing.T) {
	repos := newFakeRepos()
	repos.inputs.err = errors.New("connection reset")

	_, err := newTestCalculator(repos).CalculateScores(context.Background(), defaultParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDataViewService_ResolveDataView(t *testing.T) {
	repos := newFakeRepos()
	svc := newDataViewService(repos.Repositories)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, &models.DataView{
		ID:           "security-solution-default",
		IndexPattern: ".alerts-security.alerts-default, logs-*",
	}))

	view, err := svc.ResolveDataView(ctx, "security-solution-default")
	require.NoError(t, err)
	assert.Equal(t, ".alerts-security.alerts-default,logs-*", view.Index)

	_, err = svc.ResolveDataView(ctx, "missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))

	repos.dataViews.err = errors.New("timeout")
	_, err = svc.ResolveDataView(ctx, "security-solution-default")
	require.Error(t, err)
	assert.False(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}

func TestDataViewService_SaveValidates(t *testing.T) {
	svc := newDataViewService(newFakeRepos().Repositories)

	err := svc.Save(context.Background(), &models.DataView{ID: "x", IndexPattern: " , "})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidationError))
}

func TestEngineConfigService_GetConfigurationWithDefaults(t *testing.T) {
	repos := newFakeRepos()
	svc := newEngineConfigService(repos.Repositories, testConfig())
	ctx := context.Background()

	cfg, err := svc.GetConfigurationWithDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, &riskscore.Configuration{PageSize: 1000, AlertSampleSizePerShard: 10000}, cfg)

	require.NoError(t, svc.Save(ctx, &models.RiskEngineConfiguration{PageSize: intPtr(250)}))
	cfg, err = svc.GetConfigurationWithDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.PageSize)
	assert.Equal(t, 10000, cfg.AlertSampleSizePerShard)

	err = svc.Save(ctx, &models.RiskEngineConfiguration{PageSize: intPtr(0)})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidationError))

	repos.config.err = errors.New("boom")
	_, err = svc.GetConfigurationWithDefaults(ctx)
	assert.Error(t, err)
}

func TestServices_PreviewEndToEnd(t *testing.T) {
	repos := newFakeRepos()
	repos.dataViews.views["security-solution-default"] = &models.DataView{
		ID:           "security-solution-default",
		IndexPattern: ".alerts-security.alerts-default",
	}
	// Relative to the wall clock since the facade resolves "now" itself
	repos.inputs.inputs = []models.RiskInput{
		{ID: uuid.New(), HostName: strPtr("web-01"), RiskScore: 99, Timestamp: time.Now().Add(-time.Hour), Category: models.RiskCategoryAlerts},
	}

	svcs := NewServicesWithRepositories(repos.Repositories, testConfig(), logger.NewNop())
	result, err := svcs.RiskScore.Preview(context.Background(), riskscore.PreviewRequest{
		DataViewID:     "security-solution-default",
		IdentifierType: riskscore.IdentifierTypeHost,
	})
	require.NoError(t, err)
	require.Len(t, result.Scores[riskscore.IdentifierTypeHost], 1)
	assert.Equal(t, "web-01", result.Scores[riskscore.IdentifierTypeHost][0].IDValue)

	require.Len(t, repos.audit.events, 1)
	assert.Equal(t, "User triggered custom manual scoring", repos.audit.events[0].Message)
	assert.Equal(t, "risk_engine_preview", repos.audit.events[0].Action)

	_, err = svcs.RiskScore.Preview(context.Background(), riskscore.PreviewRequest{DataViewID: "missing"})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}

func TestSeedService_Load(t *testing.T) {
	repos := newFakeRepos()
	svc := newSeedService(repos.Repositories, testConfig())

	summary, err := svc.Load(context.Background(), &SeedData{
		DataViews:    []SeedDataView{{ID: "dv", IndexPattern: "alerts-*"}},
		EngineConfig: &SeedEngineConfig{Enabled: true, PageSize: intPtr(50)},
		RiskInputs: []SeedRiskInput{
			{Index: "alerts-1", HostName: "web-01", RiskScore: 10, Timestamp: now},
			{Index: "alerts-1", UserName: "alice", RiskScore: 20, Timestamp: now},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, &SeedSummary{DataViews: 1, EngineConfig: true, RiskInputs: 2}, summary)
	assert.Len(t, repos.inputs.inputs, 2)
	assert.Nil(t, repos.inputs.inputs[0].UserName)
	require.NotNil(t, repos.config.stored)

	_, err = svc.Load(context.Background(), &SeedData{RiskInputs: []SeedRiskInput{{Index: "x", RiskScore: 5}}})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidationError))
}

func TestSeedService_LoadRejectsWhatSaveRejects(t *testing.T) {
	tests := []struct {
		name  string
		data  *SeedData
		field string
	}{
		{
			name:  "page size above max",
			data:  &SeedData{EngineConfig: &SeedEngineConfig{Enabled: true, PageSize: intPtr(50000)}},
			field: "engine_configuration.page_size",
		},
		{
			name:  "zero sample size",
			data:  &SeedData{EngineConfig: &SeedEngineConfig{AlertSampleSizePerShard: intPtr(0)}},
			field: "engine_configuration.alert_sample_size_per_shard",
		},
		{
			name:  "empty index pattern",
			data:  &SeedData{DataViews: []SeedDataView{{ID: "ok", IndexPattern: "alerts-*"}, {ID: "empty"}}},
			field: "data_views.1.index_pattern",
		},
		{
			name:  "missing id",
			data:  &SeedData{DataViews: []SeedDataView{{IndexPattern: "alerts-*"}}},
			field: "data_views.0.id",
		},
		{
			name: "risk score out of range",
			data: &SeedData{
				DataViews:  []SeedDataView{{ID: "dv", IndexPattern: "alerts-*"}},
				RiskInputs: []SeedRiskInput{{Index: "alerts-1", HostName: "web-01", RiskScore: 150, Timestamp: now}},
			},
			field: "risk_inputs.0.risk_score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos := newFakeRepos()
			svc := newSeedService(repos.Repositories, testConfig())

			_, err := svc.Load(context.Background(), tt.data)

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
			assert.Equal(t, apperrors.ErrCodeValidationError, appErr.Code)
			assert.Equal(t, tt.field, appErr.Field)

			// nothing is written when validation fails
			assert.Empty(t, repos.dataViews.views)
			assert.Nil(t, repos.config.stored)
			assert.Empty(t, repos.inputs.inputs)
		})
	}
}

func TestSeedService_SeededConfigurationStaysWithinLimits(t *testing.T) {
	repos := newFakeRepos()
	cfg := testConfig()
	seed := newSeedService(repos.Repositories, cfg)
	engineConfig := newEngineConfigService(repos.Repositories, cfg)
	ctx := context.Background()

	_, err := seed.Load(ctx, &SeedData{EngineConfig: &SeedEngineConfig{Enabled: true, PageSize: intPtr(cfg.EntityAnalytics.MaxPageSize + 1)}})
	require.Error(t, err)

	effective, err := engineConfig.GetConfigurationWithDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg.EntityAnalytics.DefaultPageSize, effective.PageSize)
}
