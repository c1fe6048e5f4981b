package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// fakeEntityStore is an in-memory port.EntityStore for scheduler and sweep
// tests.
type fakeEntityStore struct {
	mu   sync.Mutex
	objs map[string]entity.WorkflowEntity
}

func newFakeEntityStore() *fakeEntityStore {
	return &fakeEntityStore{objs: make(map[string]entity.WorkflowEntity)}
}

func (s *fakeEntityStore) add(e entity.WorkflowEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs[e.Ref().ID] = e
}

func (s *fakeEntityStore) Load(_ context.Context, id string) (entity.WorkflowEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.objs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	return e, nil
}

func (s *fakeEntityStore) Create(_ context.Context, e entity.WorkflowEntity) error {
	s.add(e)
	return nil
}

func (s *fakeEntityStore) Save(_ context.Context, e entity.WorkflowEntity) error {
	s.add(e)
	return nil
}

func (s *fakeEntityStore) UpdateState(_ context.Context, e entity.WorkflowEntity, _ workflow.State) error {
	s.add(e)
	return nil
}

func (s *fakeEntityStore) UpdateSLADue(_ context.Context, ref entity.Ref, due *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.objs[ref.ID]; ok {
		e.Meta().SLADueAt = due
	}
	return nil
}

func (s *fakeEntityStore) FindActive(_ context.Context, limit int) ([]entity.WorkflowEntity, error) {
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

// fakeScheduleRepo is an in-memory port.ScheduleRepository.
type fakeScheduleRepo struct {
	mu    sync.Mutex
	rows  map[string]*entity.TransitionSchedule
	order []string
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{rows: make(map[string]*entity.TransitionSchedule)}
}

func (r *fakeScheduleRepo) Create(_ context.Context, sched *entity.TransitionSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sched
	r.rows[sched.ID] = &cp
	r.order = append(r.order, sched.ID)
	return nil
}

func (r *fakeScheduleRepo) GetDue(_ context.Context, now time.Time, limit int) ([]*entity.TransitionSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.TransitionSchedule
	for _, id := range r.order {
		row := r.rows[id]
		if !row.Executed && !row.ScheduledFor.After(now) && len(out) < limit {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) MarkExecuted(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Executed {
		return fmt.Errorf("%w: pending schedule %s", workflow.ErrNotFound, id)
	}
	row.Executed = true
	row.ExecutedAt = &at
	return nil
}

func (r *fakeScheduleRepo) ListPendingByEntity(_ context.Context, ref entity.Ref) ([]*entity.TransitionSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.TransitionSchedule
	for _, id := range r.order {
		row := r.rows[id]
		if !row.Executed && row.Entity == ref {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) pending() []*entity.TransitionSchedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.TransitionSchedule
	for _, id := range r.order {
		if !r.rows[id].Executed {
			cp := *r.rows[id]
			out = append(out, &cp)
		}
	}
	return out
}

// fakeTaskRepo is an in-memory port.TaskRepository.
type fakeTaskRepo struct {
	mu    sync.Mutex
	rows  map[string]*entity.WorkflowTask
	order []string
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{rows: make(map[string]*entity.WorkflowTask)}
}

func (r *fakeTaskRepo) Create(_ context.Context, task *entity.WorkflowTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *task
	r.rows[task.ID] = &cp
	r.order = append(r.order, task.ID)
	return nil
}

func (r *fakeTaskRepo) GetByID(_ context.Context, id string) (*entity.WorkflowTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", workflow.ErrNotFound, id)
	}
	cp := *row
	return &cp, nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task *entity.WorkflowTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[task.ID]; !ok {
		return fmt.Errorf("%w: task %s", workflow.ErrNotFound, task.ID)
	}
	cp := *task
	r.rows[task.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) list(match func(*entity.WorkflowTask) bool) []*entity.WorkflowTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.WorkflowTask
	for _, id := range r.order {
		if match(r.rows[id]) {
			cp := *r.rows[id]
			out = append(out, &cp)
		}
	}
	return out
}

func (r *fakeTaskRepo) ListByEntity(_ context.Context, ref entity.Ref) ([]*entity.WorkflowTask, error) {
	return r.list(func(t *entity.WorkflowTask) bool { return t.Entity == ref }), nil
}

func (r *fakeTaskRepo) ListByAssignee(_ context.Context, assignee string) ([]*entity.WorkflowTask, error) {
	return r.list(func(t *entity.WorkflowTask) bool {
		return t.AssignedTo == assignee && !t.IsTerminalStatus()
	}), nil
}

func (r *fakeTaskRepo) ListByKind(_ context.Context, kind string) ([]*entity.WorkflowTask, error) {
	return r.list(func(t *entity.WorkflowTask) bool {
		return t.Kind == kind && !t.IsTerminalStatus()
	}), nil
}

func (r *fakeTaskRepo) ListPending(_ context.Context) ([]*entity.WorkflowTask, error) {
	return r.list(func(t *entity.WorkflowTask) bool { return t.Status == entity.TaskStatusPending }), nil
}

func (r *fakeTaskRepo) ListOverdue(_ context.Context, now time.Time, workflowType workflow.Type) ([]*entity.WorkflowTask, error) {
	return r.list(func(t *entity.WorkflowTask) bool {
		if workflowType != "" && t.WorkflowType != workflowType {
			return false
		}
		return t.IsOverdue(now)
	}), nil
}

// recordingExecutor captures executed transitions, optionally failing.
type recordingExecutor struct {
	mu       sync.Mutex
	executed []string
	apply    bool // move the entity's state on success
	err      error
}

func (x *recordingExecutor) Execute(_ context.Context, e entity.WorkflowEntity, to workflow.State, _ string) error {
	if x.err != nil {
		return x.err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.executed = append(x.executed, e.Ref().ID+"->"+to.String())
	if x.apply {
		e.Meta().CurrentState = to
	}
	return nil
}

func newTestApplication(state workflow.State) *entity.Application {
	now := time.Now().UTC()
	return &entity.Application{
		ID:              uuid.NewString(),
		BorrowerName:    "Grace Hopper",
		LoanAmountCents: 40_000_000,
		ProductCode:     "ARM7",
		WorkflowMeta:    entity.NewWorkflowMeta(state),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
