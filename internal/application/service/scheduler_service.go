package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// TransitionExecutor applies a system-initiated transition to a live entity.
// It is implemented by the transition handler factory; the indirection keeps
// this package free of handler dependencies.
type TransitionExecutor interface {
	Execute(ctx context.Context, e entity.WorkflowEntity, to workflow.State, reason string) error
}

// SchedulerService owns automatic transition schedules: it persists "fire at
// time T" records and executes the due ones on each poll.
type SchedulerService struct {
	repo      port.ScheduleRepository
	registry  *port.Registry
	executor  TransitionExecutor
	logger    *zap.Logger
	batchSize int
}

// NewSchedulerService creates a scheduler. The executor is bound later via
// SetExecutor because handlers are constructed after the services they use.
func NewSchedulerService(repo port.ScheduleRepository, registry *port.Registry, logger *zap.Logger) *SchedulerService {
	return &SchedulerService{
		repo:      repo,
		registry:  registry,
		logger:    logger,
		batchSize: 100,
	}
}

// SetExecutor binds the transition executor used by ProcessDue.
func (s *SchedulerService) SetExecutor(executor TransitionExecutor) {
	s.executor = executor
}

// SetBatchSize overrides how many due schedules one poll processes.
func (s *SchedulerService) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// Schedule persists a pending automatic transition firing after delay.
func (s *SchedulerService) Schedule(ctx context.Context, e entity.WorkflowEntity, to workflow.State, reason string, delay time.Duration) (*entity.TransitionSchedule, error) {
	return s.ScheduleAt(ctx, e, to, reason, time.Now().UTC().Add(delay), false)
}

// ScheduleAt persists a pending automatic transition firing at a fixed time.
// Recurring schedules re-arm themselves one calendar month after execution.
func (s *SchedulerService) ScheduleAt(ctx context.Context, e entity.WorkflowEntity, to workflow.State, reason string, at time.Time, recurring bool) (*entity.TransitionSchedule, error) {
	sched := &entity.TransitionSchedule{
		ID:           uuid.NewString(),
		Entity:       e.Ref(),
		WorkflowType: e.WorkflowType(),
		FromState:    e.Meta().CurrentState,
		ToState:      to,
		Reason:       reason,
		ScheduledFor: at,
		Recurring:    recurring,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, sched); err != nil {
		return nil, fmt.Errorf("failed to persist transition schedule: %w", err)
	}

	s.logger.Info("Automatic transition scheduled",
		zap.String("schedule_id", sched.ID),
		zap.String("entity", sched.Entity.String()),
		zap.String("to_state", to.String()),
		zap.Time("scheduled_for", at))
	return sched, nil
}

// PendingForEntity returns the not-yet-executed schedules for an entity.
func (s *SchedulerService) PendingForEntity(ctx context.Context, ref entity.Ref) ([]*entity.TransitionSchedule, error) {
	return s.repo.ListPendingByEntity(ctx, ref)
}

// ProcessDue executes every pending schedule whose time has come and returns
// how many were newly executed. Failures leave the record pending for the
// next poll; a record whose entity no longer exists is marked executed so it
// is not retried forever. A failing record never blocks the rest of the
// batch.
func (s *SchedulerService) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if s.executor == nil {
		return 0, errors.New("scheduler has no transition executor bound")
	}

	due, err := s.repo.GetDue(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch due schedules: %w", err)
	}

	executed := 0
	for _, sched := range due {
		if s.processOne(ctx, sched, now) {
			executed++
		}
	}

	if executed > 0 {
		s.logger.Info("Due transitions processed",
			zap.Int("due", len(due)),
			zap.Int("executed", executed))
	}
	return executed, nil
}

func (s *SchedulerService) processOne(ctx context.Context, sched *entity.TransitionSchedule, now time.Time) bool {
	store, err := s.registry.Store(sched.WorkflowType)
	if err != nil {
		s.logger.Error("Schedule references unknown workflow type",
			zap.String("schedule_id", sched.ID),
			zap.Error(err))
		return false
	}

	e, err := store.Load(ctx, sched.Entity.ID)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			// Orphaned record: mark executed so it is not retried forever.
			s.logger.Warn("Scheduled entity no longer exists, retiring schedule",
				zap.String("schedule_id", sched.ID),
				zap.String("entity", sched.Entity.String()))
			s.markExecuted(ctx, sched, now)
			return false
		}
		s.logger.Error("Failed to load entity for scheduled transition",
			zap.String("schedule_id", sched.ID),
			zap.String("entity", sched.Entity.String()),
			zap.Error(err))
		return false
	}

	if err := s.executor.Execute(ctx, e, sched.ToState, sched.Reason); err != nil {
		s.logger.Error("Scheduled transition failed, leaving pending for retry",
			zap.String("schedule_id", sched.ID),
			zap.String("entity", sched.Entity.String()),
			zap.String("to_state", sched.ToState.String()),
			zap.Error(err))
		return false
	}

	s.markExecuted(ctx, sched, now)

	if sched.Recurring {
		s.rearm(ctx, e, sched)
	}
	return true
}

func (s *SchedulerService) markExecuted(ctx context.Context, sched *entity.TransitionSchedule, at time.Time) {
	if err := s.repo.MarkExecuted(ctx, sched.ID, at); err != nil {
		s.logger.Error("Failed to mark schedule executed",
			zap.String("schedule_id", sched.ID),
			zap.Error(err))
	}
}

func (s *SchedulerService) rearm(ctx context.Context, e entity.WorkflowEntity, sched *entity.TransitionSchedule) {
	next := nextMonth(sched.ScheduledFor)
	if _, err := s.ScheduleAt(ctx, e, sched.ToState, sched.Reason, next, true); err != nil {
		s.logger.Error("Failed to re-arm recurring schedule",
			zap.String("schedule_id", sched.ID),
			zap.Error(err))
	}
}

// nextMonth advances one calendar month with the day clamped to the target
// month's length, so Jan 31 becomes Feb 28 (or 29) rather than rolling over
// into March.
func nextMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	lastDay := time.Date(year, month+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month+1, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
