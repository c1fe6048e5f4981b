package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	domainwf "github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// StateEntryHook creates the required-action tasks when an entity enters a
// state. Satisfied by service.TaskService.
type StateEntryHook interface {
	OnStateEntry(ctx context.Context, e entity.WorkflowEntity, to domainwf.State) error
}

// AutoScheduler persists automatic follow-up transitions. Satisfied by
// service.SchedulerService.
type AutoScheduler interface {
	Schedule(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, reason string, delay time.Duration) (*entity.TransitionSchedule, error)
}

// SLACalculator derives the due-by timestamp for an entity's current state.
// Satisfied by service.SLAService.
type SLACalculator interface {
	DueDate(e entity.WorkflowEntity) *time.Time
}

// Machine validates and applies single transitions for one workflow type. It
// owns state mutation and history creation; nothing else writes
// CurrentState.
type Machine struct {
	table    *domainwf.Table
	registry *port.Registry
	history  port.HistoryRepository
	tx       port.TransactionManager
	logger   *zap.Logger

	tasks     StateEntryHook
	scheduler AutoScheduler
	sla       SLACalculator
	notifier  port.Notifier
}

// MachineOption configures optional machine collaborators.
type MachineOption func(*Machine)

// WithStateEntryHook wires task creation on state entry.
func WithStateEntryHook(hook StateEntryHook) MachineOption {
	return func(m *Machine) { m.tasks = hook }
}

// WithAutoScheduler wires automatic transition scheduling.
func WithAutoScheduler(scheduler AutoScheduler) MachineOption {
	return func(m *Machine) { m.scheduler = scheduler }
}

// WithSLACalculator wires SLA due-date recomputation.
func WithSLACalculator(sla SLACalculator) MachineOption {
	return func(m *Machine) { m.sla = sla }
}

// WithNotifier wires fire-and-forget event notification.
func WithNotifier(notifier port.Notifier) MachineOption {
	return func(m *Machine) { m.notifier = notifier }
}

// NewMachine creates a state machine for one workflow type.
func NewMachine(
	table *domainwf.Table,
	registry *port.Registry,
	history port.HistoryRepository,
	tx port.TransactionManager,
	logger *zap.Logger,
	opts ...MachineOption,
) *Machine {
	m := &Machine{
		table:    table,
		registry: registry,
		history:  history,
		tx:       tx,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Table returns the state table the machine enforces.
func (m *Machine) Table() *domainwf.Table {
	return m.table
}

// AllowedTransitions returns the legal target states for the entity's current
// state. Terminal entities have none, regardless of the graph.
func (m *Machine) AllowedTransitions(e entity.WorkflowEntity) []domainwf.State {
	if e.Meta().Terminal {
		return nil
	}
	return m.table.AllowedTransitions(e.Meta().CurrentState)
}

// ValidateTransition checks table legality and actor permission for moving
// the entity to the target state. A nil actor is the system and bypasses
// role checks.
func (m *Machine) ValidateTransition(e entity.WorkflowEntity, to domainwf.State, actor *domainwf.Actor) error {
	meta := e.Meta()
	if meta.Terminal {
		return fmt.Errorf("%w: %s is %s", domainwf.ErrAlreadyTerminal, e.Ref(), meta.CurrentState)
	}
	if !m.table.CanTransition(meta.CurrentState, to) {
		return fmt.Errorf("%w: %s -> %s for %s", domainwf.ErrInvalidTransition, meta.CurrentState, to, e.Ref())
	}
	if roles, restricted := m.table.PermittedRoles(to); restricted && actor != nil {
		if !roles[actor.Role] {
			return fmt.Errorf("%w: role %q may not move %s to %s", domainwf.ErrPermissionDenied, actor.Role, e.Ref(), to)
		}
	}
	return nil
}

// Transition moves the entity to the target state. State mutation and the
// history record commit as one atomic unit, guarded by an optimistic check on
// the stored state. Task creation, notification, automatic-transition
// scheduling run after the commit and surface as warnings when they fail.
func (m *Machine) Transition(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, actor *domainwf.Actor, reason string, validate bool) (*Result, error) {
	meta := e.Meta()
	from := meta.CurrentState

	if from == to {
		return &Result{From: from, To: to, NoOp: true}, nil
	}

	// Terminal is a hard rule, enforced even when validation is skipped.
	if meta.Terminal {
		return nil, fmt.Errorf("%w: %s is %s", domainwf.ErrAlreadyTerminal, e.Ref(), from)
	}

	if validate {
		if err := m.ValidateTransition(e, to, actor); err != nil {
			return nil, err
		}
	}

	store, err := m.registry.Store(e.WorkflowType())
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	eventName, _ := m.table.ResolveEvent(from, to)

	prev := *meta
	meta.CurrentState = to
	meta.StateChangedAt = now
	meta.StateChangedBy = actorRef(actor)
	meta.Terminal = m.table.IsTerminal(to)
	if m.sla != nil {
		meta.SLADueAt = m.sla.DueDate(e)
	} else {
		meta.SLADueAt = nil
	}

	rec := &entity.TransitionRecord{
		ID:           uuid.NewString(),
		Entity:       e.Ref(),
		WorkflowType: e.WorkflowType(),
		FromState:    from,
		ToState:      to,
		Actor:        actorRef(actor),
		Reason:       reason,
		Event:        eventName,
		OccurredAt:   now,
	}

	err = m.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := store.UpdateState(txCtx, e, from); err != nil {
			return err
		}
		if err := m.history.Append(txCtx, rec); err != nil {
			return fmt.Errorf("failed to write transition history: %w", err)
		}
		return nil
	})
	if err != nil {
		*meta = prev
		return nil, err
	}

	m.logger.Info("Transition executed",
		zap.String("entity", e.Ref().String()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("actor", actorRef(actor)),
		zap.String("reason", reason))

	res := &Result{From: from, To: to, Event: eventName}
	m.runPostCommit(ctx, e, to, eventName, from, res)
	return res, nil
}

// History returns the most recent transition records for the entity.
func (m *Machine) History(ctx context.Context, e entity.WorkflowEntity, limit int) ([]*entity.TransitionRecord, error) {
	return m.history.ListByEntity(ctx, e.Ref(), limit)
}

// runPostCommit performs steps that follow a durable state change. None of
// them may revert the transition; failures become warnings on the result.
func (m *Machine) runPostCommit(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, eventName string, from domainwf.State, res *Result) {
	if m.tasks != nil {
		if err := m.tasks.OnStateEntry(ctx, e, to); err != nil {
			m.logger.Error("State entry task creation failed",
				zap.String("entity", e.Ref().String()),
				zap.String("state", to.String()),
				zap.Error(err))
			res.Warn("create_tasks", err)
		}
	}

	if m.notifier != nil && eventName != "" {
		m.notifier.Notify(ctx, e.Ref(), eventName, from, to)
	}

	if rule, ok := m.table.AutoRule(to); ok && m.scheduler != nil {
		if _, err := m.scheduler.Schedule(ctx, e, rule.To, rule.Reason, rule.Delay); err != nil {
			m.logger.Error("Automatic transition scheduling failed",
				zap.String("entity", e.Ref().String()),
				zap.String("to_state", rule.To.String()),
				zap.Error(err))
			res.Warn("schedule_auto_transition", err)
		}
	}
}

func actorRef(actor *domainwf.Actor) string {
	if actor == nil {
		return ""
	}
	return actor.ID
}
