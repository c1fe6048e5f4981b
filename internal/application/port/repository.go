package port

import (
	"context"
	"time"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// EntityStore defines persistence operations common to every workflow entity
// kind. Load returns workflow.ErrNotFound (wrapped) when the id is unknown.
type EntityStore interface {
	Load(ctx context.Context, id string) (entity.WorkflowEntity, error)
	Create(ctx context.Context, e entity.WorkflowEntity) error
	Save(ctx context.Context, e entity.WorkflowEntity) error

	// UpdateState persists the entity's workflow meta conditioned on the
	// stored state still being expectedFrom. It returns
	// workflow.ErrConcurrentModification (wrapped) when the condition fails.
	UpdateState(ctx context.Context, e entity.WorkflowEntity, expectedFrom workflow.State) error

	// UpdateSLADue persists a recomputed SLA due date without touching state.
	UpdateSLADue(ctx context.Context, ref entity.Ref, due *time.Time) error

	// FindActive returns entities not yet in a terminal state, for periodic
	// sweeps.
	FindActive(ctx context.Context, limit int) ([]entity.WorkflowEntity, error)
}

// ApplicationStore extends EntityStore with application lookups.
type ApplicationStore interface {
	EntityStore
	GetApplication(ctx context.Context, id string) (*entity.Application, error)
}

// DocumentStore extends EntityStore with document package lookups.
type DocumentStore interface {
	EntityStore
	GetDocumentPackage(ctx context.Context, id string) (*entity.DocumentPackage, error)
	FindByApplication(ctx context.Context, applicationID string) (*entity.DocumentPackage, error)
	// FindExpiring returns open packages whose signature window has elapsed.
	FindExpiring(ctx context.Context, now time.Time, limit int) ([]*entity.DocumentPackage, error)
}

// FundingStore extends EntityStore with funding request lookups.
type FundingStore interface {
	EntityStore
	GetFundingRequest(ctx context.Context, id string) (*entity.FundingRequest, error)
	FindByApplication(ctx context.Context, applicationID string) (*entity.FundingRequest, error)
}

// HistoryRepository persists the append-only transition audit trail.
type HistoryRepository interface {
	Append(ctx context.Context, rec *entity.TransitionRecord) error
	ListByEntity(ctx context.Context, ref entity.Ref, limit int) ([]*entity.TransitionRecord, error)
}

// ScheduleRepository persists automatic transition schedules.
type ScheduleRepository interface {
	Create(ctx context.Context, sched *entity.TransitionSchedule) error
	// GetDue returns pending records with scheduled_for <= now. Executed
	// records are filtered out here, which is what makes repeated polling
	// idempotent.
	GetDue(ctx context.Context, now time.Time, limit int) ([]*entity.TransitionSchedule, error)
	MarkExecuted(ctx context.Context, id string, at time.Time) error
	ListPendingByEntity(ctx context.Context, ref entity.Ref) ([]*entity.TransitionSchedule, error)
}

// TaskRepository persists workflow tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *entity.WorkflowTask) error
	GetByID(ctx context.Context, id string) (*entity.WorkflowTask, error)
	Update(ctx context.Context, task *entity.WorkflowTask) error
	ListByEntity(ctx context.Context, ref entity.Ref) ([]*entity.WorkflowTask, error)
	ListByAssignee(ctx context.Context, assignee string) ([]*entity.WorkflowTask, error)
	ListByKind(ctx context.Context, kind string) ([]*entity.WorkflowTask, error)
	ListPending(ctx context.Context) ([]*entity.WorkflowTask, error)
	// ListOverdue returns open tasks past their due date, optionally filtered
	// by workflow type ("" matches all).
	ListOverdue(ctx context.Context, now time.Time, workflowType workflow.Type) ([]*entity.WorkflowTask, error)
}

// TransactionManager runs a function inside one atomic unit of work. Nested
// calls join the enclosing unit.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
