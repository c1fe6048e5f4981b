package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// TaskService owns workflow task records: creation on state entry, mutation
// by human actors, and the query surface.
type TaskService struct {
	repo   port.TaskRepository
	tables workflow.Tables
	logger *zap.Logger
}

// NewTaskService creates a task service.
func NewTaskService(repo port.TaskRepository, tables workflow.Tables, logger *zap.Logger) *TaskService {
	return &TaskService{repo: repo, tables: tables, logger: logger}
}

// CreateTask creates a single task tied to an entity.
func (s *TaskService) CreateTask(ctx context.Context, e entity.WorkflowEntity, kind, description, assignee string, dueAt *time.Time) (*entity.WorkflowTask, error) {
	now := time.Now().UTC()
	task := &entity.WorkflowTask{
		ID:           uuid.NewString(),
		Entity:       e.Ref(),
		WorkflowType: e.WorkflowType(),
		State:        e.Meta().CurrentState,
		Kind:         kind,
		Description:  description,
		Status:       entity.TaskStatusPending,
		AssignedTo:   assignee,
		DueAt:        dueAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("Task created",
		zap.String("task_id", task.ID),
		zap.String("entity", task.Entity.String()),
		zap.String("kind", kind))
	return task, nil
}

// OnStateEntry creates the required-action tasks for the state the entity
// just entered. Due dates derive from the state's SLA window when defined.
func (s *TaskService) OnStateEntry(ctx context.Context, e entity.WorkflowEntity, to workflow.State) error {
	table, err := s.tables.Get(e.WorkflowType())
	if err != nil {
		return err
	}

	actions := table.RequiredActions(to)
	if len(actions) == 0 {
		return nil
	}

	var dueAt *time.Time
	if def, ok := table.SLA(to); ok {
		due := time.Now().UTC().Add(time.Duration(def.Hours) * time.Hour)
		dueAt = &due
	}

	for _, action := range actions {
		if _, err := s.CreateTask(ctx, e, action.Kind, action.Description, "", dueAt); err != nil {
			return fmt.Errorf("state entry task %q: %w", action.Kind, err)
		}
	}
	return nil
}

// Complete marks a task done. Terminal tasks reject further mutation.
func (s *TaskService) Complete(ctx context.Context, taskID, actorID, notes string) error {
	task, err := s.loadOpen(ctx, taskID)
	if err != nil {
		return err
	}

	task.Status = entity.TaskStatusCompleted
	task.CompletedBy = actorID
	task.UpdatedAt = time.Now().UTC()
	appendNote(task, notes)

	if err := s.repo.Update(ctx, task); err != nil {
		return fmt.Errorf("failed to complete task %s: %w", taskID, err)
	}
	return nil
}

// Cancel voids a task. Terminal tasks reject further mutation.
func (s *TaskService) Cancel(ctx context.Context, taskID, actorID, reason string) error {
	task, err := s.loadOpen(ctx, taskID)
	if err != nil {
		return err
	}

	task.Status = entity.TaskStatusCancelled
	task.CompletedBy = actorID
	task.UpdatedAt = time.Now().UTC()
	appendNote(task, reason)

	if err := s.repo.Update(ctx, task); err != nil {
		return fmt.Errorf("failed to cancel task %s: %w", taskID, err)
	}
	return nil
}

// Reassign moves a task to another assignee. Terminal tasks reject further
// mutation.
func (s *TaskService) Reassign(ctx context.Context, taskID, newAssignee, actorID, reason string) error {
	task, err := s.loadOpen(ctx, taskID)
	if err != nil {
		return err
	}

	previous := task.AssignedTo
	task.AssignedTo = newAssignee
	task.UpdatedAt = time.Now().UTC()
	appendNote(task, reason)

	if err := s.repo.Update(ctx, task); err != nil {
		return fmt.Errorf("failed to reassign task %s: %w", taskID, err)
	}

	s.logger.Info("Task reassigned",
		zap.String("task_id", taskID),
		zap.String("from", previous),
		zap.String("to", newAssignee),
		zap.String("by", actorID))
	return nil
}

// IsOverdue reports whether the task is past due and still open.
func (s *TaskService) IsOverdue(task *entity.WorkflowTask) bool {
	return task.IsOverdue(time.Now().UTC())
}

// TasksForEntity returns all tasks attached to an entity.
func (s *TaskService) TasksForEntity(ctx context.Context, ref entity.Ref) ([]*entity.WorkflowTask, error) {
	return s.repo.ListByEntity(ctx, ref)
}

// TasksByAssignee returns all tasks assigned to an actor.
func (s *TaskService) TasksByAssignee(ctx context.Context, assignee string) ([]*entity.WorkflowTask, error) {
	return s.repo.ListByAssignee(ctx, assignee)
}

// TasksByKind returns all tasks of one kind.
func (s *TaskService) TasksByKind(ctx context.Context, kind string) ([]*entity.WorkflowTask, error) {
	return s.repo.ListByKind(ctx, kind)
}

// PendingTasks returns every open task.
func (s *TaskService) PendingTasks(ctx context.Context) ([]*entity.WorkflowTask, error) {
	return s.repo.ListPending(ctx)
}

// OverdueTasks returns open tasks past their due date, optionally filtered by
// workflow type ("" matches all).
func (s *TaskService) OverdueTasks(ctx context.Context, workflowType workflow.Type) ([]*entity.WorkflowTask, error) {
	return s.repo.ListOverdue(ctx, time.Now().UTC(), workflowType)
}

func (s *TaskService) loadOpen(ctx context.Context, taskID string) (*entity.WorkflowTask, error) {
	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %s", workflow.ErrNotFound, taskID)
	}
	if task.IsTerminalStatus() {
		return nil, fmt.Errorf("%w: task %s is %s", workflow.ErrAlreadyTerminal, taskID, task.Status)
	}
	return task, nil
}

func appendNote(task *entity.WorkflowTask, note string) {
	if note == "" {
		return
	}
	if task.Notes != "" {
		task.Notes += "\n"
	}
	task.Notes += note
}
