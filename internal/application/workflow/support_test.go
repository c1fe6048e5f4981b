package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	domainwf "github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// memStore is an in-memory port.EntityStore. It keeps the persisted state
// per entity separately from the live object so the optimistic check behaves
// like the sqlite implementation.
type memStore struct {
	mu     sync.Mutex
	objs   map[string]entity.WorkflowEntity
	states map[string]domainwf.State
	saves  int

	failUpdateState error
	failSave        error
}

func newMemStore() *memStore {
	return &memStore{
		objs:   make(map[string]entity.WorkflowEntity),
		states: make(map[string]domainwf.State),
	}
}

func (s *memStore) Create(_ context.Context, e entity.WorkflowEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs[e.Ref().ID] = e
	s.states[e.Ref().ID] = e.Meta().CurrentState
	return nil
}

func (s *memStore) Load(_ context.Context, id string) (entity.WorkflowEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.objs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrNotFound, id)
	}
	return e, nil
}

func (s *memStore) Save(_ context.Context, e entity.WorkflowEntity) error {
	if s.failSave != nil {
		return s.failSave
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.objs[e.Ref().ID] = e
	return nil
}

func (s *memStore) UpdateState(_ context.Context, e entity.WorkflowEntity, expectedFrom domainwf.State) error {
	if s.failUpdateState != nil {
		return s.failUpdateState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.states[e.Ref().ID]
	if !ok {
		return fmt.Errorf("%w: %s", domainwf.ErrNotFound, e.Ref())
	}
	if cur != expectedFrom {
		return fmt.Errorf("%w: expected %s, found %s", domainwf.ErrConcurrentModification, expectedFrom, cur)
	}
	s.states[e.Ref().ID] = e.Meta().CurrentState
	return nil
}

func (s *memStore) UpdateSLADue(_ context.Context, ref entity.Ref, due *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.objs[ref.ID]; ok {
		e.Meta().SLADueAt = due
	}
	return nil
}

func (s *memStore) FindActive(_ context.Context, limit int) ([]entity.WorkflowEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.WorkflowEntity
	for _, e := range s.objs {
		if !e.Meta().Terminal && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

// persistedState reports what the store believes the entity's state is.
func (s *memStore) persistedState(id string) domainwf.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id]
}

// forceState simulates a competing writer moving the stored state.
func (s *memStore) forceState(id string, state domainwf.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[id] = state
}

type memApplications struct{ *memStore }

func (s *memApplications) GetApplication(ctx context.Context, id string) (*entity.Application, error) {
	e, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.(*entity.Application), nil
}

type memDocuments struct{ *memStore }

func (s *memDocuments) GetDocumentPackage(ctx context.Context, id string) (*entity.DocumentPackage, error) {
	e, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.(*entity.DocumentPackage), nil
}

func (s *memDocuments) FindByApplication(_ context.Context, applicationID string) (*entity.DocumentPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.objs {
		doc := e.(*entity.DocumentPackage)
		if doc.ApplicationID == applicationID {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%w: no document package for %s", domainwf.ErrNotFound, applicationID)
}

func (s *memDocuments) FindExpiring(_ context.Context, now time.Time, limit int) ([]*entity.DocumentPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.DocumentPackage
	for _, e := range s.objs {
		doc := e.(*entity.DocumentPackage)
		if !doc.Terminal && doc.ExpiresAt != nil && !doc.ExpiresAt.After(now) && len(out) < limit {
			out = append(out, doc)
		}
	}
	return out, nil
}

type memFunding struct{ *memStore }

func (s *memFunding) GetFundingRequest(ctx context.Context, id string) (*entity.FundingRequest, error) {
	e, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.(*entity.FundingRequest), nil
}

func (s *memFunding) FindByApplication(_ context.Context, applicationID string) (*entity.FundingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.objs {
		req := e.(*entity.FundingRequest)
		if req.ApplicationID == applicationID {
			return req, nil
		}
	}
	return nil, fmt.Errorf("%w: no funding request for %s", domainwf.ErrNotFound, applicationID)
}

type memHistory struct {
	mu         sync.Mutex
	records    []*entity.TransitionRecord
	failAppend error
}

func (h *memHistory) Append(_ context.Context, rec *entity.TransitionRecord) error {
	if h.failAppend != nil {
		return h.failAppend
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

func (h *memHistory) ListByEntity(_ context.Context, ref entity.Ref, limit int) ([]*entity.TransitionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*entity.TransitionRecord
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		if h.records[i].Entity == ref {
			out = append(out, h.records[i])
		}
	}
	return out, nil
}

func (h *memHistory) forEntity(ref entity.Ref) []*entity.TransitionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*entity.TransitionRecord
	for _, rec := range h.records {
		if rec.Entity == ref {
			out = append(out, rec)
		}
	}
	return out
}

// memTx runs the function directly; the sqlite transaction semantics are
// covered by the repository layer.
type memTx struct{}

func (memTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// taskHook records state entries; optionally fails.
type taskHook struct {
	mu      sync.Mutex
	entries []domainwf.State
	err     error
}

func (h *taskHook) OnStateEntry(_ context.Context, _ entity.WorkflowEntity, to domainwf.State) error {
	if h.err != nil {
		return h.err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, to)
	return nil
}

// schedulerStub records requested automatic transitions.
type schedulerStub struct {
	mu        sync.Mutex
	scheduled []*entity.TransitionSchedule
	err       error
}

func (s *schedulerStub) Schedule(_ context.Context, e entity.WorkflowEntity, to domainwf.State, reason string, delay time.Duration) (*entity.TransitionSchedule, error) {
	if s.err != nil {
		return nil, s.err
	}
	sched := &entity.TransitionSchedule{
		ID:           uuid.NewString(),
		Entity:       e.Ref(),
		WorkflowType: e.WorkflowType(),
		FromState:    e.Meta().CurrentState,
		ToState:      to,
		Reason:       reason,
		ScheduledFor: time.Now().UTC().Add(delay),
		CreatedAt:    time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, sched)
	return sched, nil
}

// tableSLA derives due dates from the state tables, mirroring the SLA
// service.
type tableSLA struct{ tables domainwf.Tables }

func (s tableSLA) DueDate(e entity.WorkflowEntity) *time.Time {
	table, err := s.tables.Get(e.WorkflowType())
	if err != nil {
		return nil
	}
	def, ok := table.SLA(e.Meta().CurrentState)
	if !ok {
		return nil
	}
	due := e.Meta().StateChangedAt.Add(time.Duration(def.Hours) * time.Hour)
	return &due
}

// notifierStub records emitted events.
type notifierStub struct {
	mu     sync.Mutex
	events []string
}

func (n *notifierStub) Notify(_ context.Context, _ entity.Ref, event string, _, _ domainwf.State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *notifierStub) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

// testEnv wires a full factory over in-memory stores.
type testEnv struct {
	factory  *Factory
	apps     *memApplications
	docs     *memDocuments
	funding  *memFunding
	history  *memHistory
	tasks    *taskHook
	sched    *schedulerStub
	notifier *notifierStub
	tables   domainwf.Tables
}

func newTestEnv() *testEnv {
	env := &testEnv{
		apps:     &memApplications{newMemStore()},
		docs:     &memDocuments{newMemStore()},
		funding:  &memFunding{newMemStore()},
		history:  &memHistory{},
		tasks:    &taskHook{},
		sched:    &schedulerStub{},
		notifier: &notifierStub{},
		tables:   domainwf.LendingTables(),
	}

	registry := port.NewRegistry()
	registry.Register(domainwf.TypeApplication, env.apps)
	registry.Register(domainwf.TypeDocument, env.docs)
	registry.Register(domainwf.TypeFunding, env.funding)

	factory, err := NewFactory(FactoryConfig{
		Tables:       env.tables,
		Registry:     registry,
		History:      env.history,
		Tx:           memTx{},
		Applications: env.apps,
		Documents:    env.docs,
		Funding:      env.funding,
		Tasks:        env.tasks,
		Scheduler:    env.sched,
		SLA:          tableSLA{env.tables},
		Notifier:     env.notifier,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		panic(err)
	}
	env.factory = factory
	return env
}

func (env *testEnv) newApplication(state domainwf.State) *entity.Application {
	now := time.Now().UTC()
	app := &entity.Application{
		ID:              uuid.NewString(),
		BorrowerName:    "Ada Lovelace",
		LoanAmountCents: 25_000_000,
		ProductCode:     "FIX30",
		WorkflowMeta:    entity.NewWorkflowMeta(state),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	app.Terminal = env.tables[domainwf.TypeApplication].IsTerminal(state)
	_ = env.apps.Create(context.Background(), app)
	return app
}

func (env *testEnv) newDocumentPackage(appID string, state domainwf.State, signers []entity.Signer) *entity.DocumentPackage {
	now := time.Now().UTC()
	doc := &entity.DocumentPackage{
		ID:            uuid.NewString(),
		ApplicationID: appID,
		Signers:       signers,
		WorkflowMeta:  entity.NewWorkflowMeta(state),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	doc.Terminal = env.tables[domainwf.TypeDocument].IsTerminal(state)
	_ = env.docs.Create(context.Background(), doc)
	return doc
}

func (env *testEnv) newFundingRequest(appID string, state domainwf.State) *entity.FundingRequest {
	now := time.Now().UTC()
	req := &entity.FundingRequest{
		ID:            uuid.NewString(),
		ApplicationID: appID,
		AmountCents:   25_000_000,
		WorkflowMeta:  entity.NewWorkflowMeta(state),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	req.Terminal = env.tables[domainwf.TypeFunding].IsTerminal(state)
	_ = env.funding.Create(context.Background(), req)
	return req
}
