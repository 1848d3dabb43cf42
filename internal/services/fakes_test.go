package services

import (
	"context"
	"sort"
	"sync"

	"github.com/ajharbinger/riskscore-preview/internal/models"
	"github.com/ajharbinger/riskscore-preview/internal/repository"
)

// fakeRiskInputs is an in-memory RiskInputRepository. Filters are ignored.
type fakeRiskInputs struct {
	mu     sync.Mutex
	inputs []models.RiskInput
	err    error
	calls  int
}

func entityOf(in models.RiskInput, field string) *string {
	if field == "host.name" {
		return in.HostName
	}
	return in.UserName
}

func (f *fakeRiskInputs) inScope(in models.RiskInput, s repository.Scope) bool {
	return !in.Timestamp.Before(s.Start) && !in.Timestamp.After(s.End)
}

func (f *fakeRiskInputs) ListEntities(_ context.Context, q repository.EntityQuery) (*repository.EntityPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	seen := map[string]bool{}
	var values []string
	for _, in := range f.inputs {
		id := entityOf(in, q.IdentifierField)
		if id == nil || !f.inScope(in, q.Scope) || *id <= q.After || seen[*id] {
			continue
		}
		seen[*id] = true
		values = append(values, *id)
	}
	sort.Strings(values)
	if len(values) > q.Limit {
		values = values[:q.Limit]
	}
	return &repository.EntityPage{Values: values, Query: "entities " + q.IdentifierField}, nil
}

func (f *fakeRiskInputs) ListInputs(_ context.Context, q repository.InputQuery) (*repository.InputSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	wanted := map[string]bool{}
	for _, e := range q.Entities {
		wanted[e] = true
	}
	set := &repository.InputSet{ByEntity: map[string][]models.RiskInput{}, Query: "inputs " + q.IdentifierField}
	for _, in := range f.inputs {
		id := entityOf(in, q.IdentifierField)
		if id == nil || !wanted[*id] || !f.inScope(in, q.Scope) {
			continue
		}
		if len(set.ByEntity[*id]) < q.SampleSize {
			set.ByEntity[*id] = append(set.ByEntity[*id], in)
		}
	}
	return set, nil
}

func (f *fakeRiskInputs) Insert(_ context.Context, input *models.RiskInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, *input)
	return nil
}

type fakeDataViews struct {
	views map[string]*models.DataView
	err   error
}

func (f *fakeDataViews) GetByID(_ context.Context, id string) (*models.DataView, error) {
	if f.err != nil {
		return nil, f.err
	}
	view, ok := f.views[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return view, nil
}

func (f *fakeDataViews) Upsert(_ context.Context, view *models.DataView) error {
	if f.views == nil {
		f.views = map[string]*models.DataView{}
	}
	f.views[view.ID] = view
	return nil
}

type fakeEngineConfig struct {
	stored *models.RiskEngineConfiguration
	err    error
}

func (f *fakeEngineConfig) Get(context.Context) (*models.RiskEngineConfiguration, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.stored == nil {
		return nil, repository.ErrNotFound
	}
	return f.stored, nil
}

func (f *fakeEngineConfig) Save(_ context.Context, cfg *models.RiskEngineConfiguration) error {
	f.stored = cfg
	return nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (f *fakeAudit) InsertAuditEvent(_ context.Context, event *models.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
	return nil
}

// fakeTx runs the function against the same repositories without isolation
type fakeTx struct {
	repos *repository.Repositories
}

func (f *fakeTx) WithTransaction(_ context.Context, fn func(repos *repository.Repositories) error) error {
	return fn(f.repos)
}

type fakeRepos struct {
	*repository.Repositories
	inputs    *fakeRiskInputs
	dataViews *fakeDataViews
	config    *fakeEngineConfig
	audit     *fakeAudit
}

func newFakeRepos() *fakeRepos {
	f := &fakeRepos{
		inputs:    &fakeRiskInputs{},
		dataViews: &fakeDataViews{views: map[string]*models.DataView{}},
		config:    &fakeEngineConfig{},
		audit:     &fakeAudit{},
	}
	f.Repositories = &repository.Repositories{
		DataViews:    f.dataViews,
		RiskInputs:   f.inputs,
		EngineConfig: f.config,
		Audit:        f.audit,
	}
	f.Repositories.Tx = &fakeTx{repos: f.Repositories}
	return f
}
