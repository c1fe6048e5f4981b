package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/infrastructure/persistence/sqlite"
)

// TaskRepository implements port.TaskRepository on sqlite.
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a workflow task repository.
func NewTaskRepository(db *sql.DB, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

const taskColumns = `
	id, entity_kind, entity_id, workflow_type, state, kind, description,
	status, assigned_to, completed_by, notes, due_at, created_at, updated_at
`

// Create persists a new task.
func (r *TaskRepository) Create(ctx context.Context, task *entity.WorkflowTask) error {
	query := `
		INSERT INTO workflow_tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		task.ID,
		task.Entity.Kind.String(),
		task.Entity.ID,
		task.WorkflowType.String(),
		task.State.String(),
		task.Kind,
		task.Description,
		task.Status,
		nullString(task.AssignedTo),
		nullString(task.CompletedBy),
		nullString(task.Notes),
		nullTime(task.DueAt),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow task",
			zap.String("entity", task.Entity.String()),
			zap.String("kind", task.Kind),
			zap.Error(err))
		return fmt.Errorf("failed to create workflow task: %w", err)
	}
	return nil
}

// GetByID retrieves a task by id.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowTask, error) {
	query := `SELECT ` + taskColumns + ` FROM workflow_tasks WHERE id = ?`
	task, err := scanTask(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: task %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	return task, nil
}

// Update persists the task's mutable fields.
func (r *TaskRepository) Update(ctx context.Context, task *entity.WorkflowTask) error {
	query := `
		UPDATE workflow_tasks
		SET status = ?, assigned_to = ?, completed_by = ?, notes = ?, due_at = ?, updated_at = ?
		WHERE id = ?
	`
	task.UpdatedAt = time.Now().UTC()
	res, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		task.Status,
		nullString(task.AssignedTo),
		nullString(task.CompletedBy),
		nullString(task.Notes),
		nullTime(task.DueAt),
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", task.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for task %s: %w", task.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: task %s", workflow.ErrNotFound, task.ID)
	}
	return nil
}

// ListByEntity returns all tasks for an entity, newest first.
func (r *TaskRepository) ListByEntity(ctx context.Context, ref entity.Ref) ([]*entity.WorkflowTask, error) {
	query := `
		SELECT ` + taskColumns + ` FROM workflow_tasks
		WHERE entity_kind = ? AND entity_id = ?
		ORDER BY created_at DESC
	`
	return r.queryTasks(ctx, query, ref.Kind.String(), ref.ID)
}

// ListByAssignee returns open tasks for an assignee.
func (r *TaskRepository) ListByAssignee(ctx context.Context, assignee string) ([]*entity.WorkflowTask, error) {
	query := `
		SELECT ` + taskColumns + ` FROM workflow_tasks
		WHERE assigned_to = ? AND status IN (?, ?)
		ORDER BY due_at IS NULL, due_at
	`
	return r.queryTasks(ctx, query, assignee, entity.TaskStatusPending, entity.TaskStatusInProgress)
}

// ListByKind returns open tasks of one kind.
func (r *TaskRepository) ListByKind(ctx context.Context, kind string) ([]*entity.WorkflowTask, error) {
	query := `
		SELECT ` + taskColumns + ` FROM workflow_tasks
		WHERE kind = ? AND status IN (?, ?)
		ORDER BY due_at IS NULL, due_at
	`
	return r.queryTasks(ctx, query, kind, entity.TaskStatusPending, entity.TaskStatusInProgress)
}

// ListPending returns all pending tasks.
func (r *TaskRepository) ListPending(ctx context.Context) ([]*entity.WorkflowTask, error) {
	query := `
		SELECT ` + taskColumns + ` FROM workflow_tasks
		WHERE status = ?
		ORDER BY due_at IS NULL, due_at
	`
	return r.queryTasks(ctx, query, entity.TaskStatusPending)
}

// ListOverdue returns open tasks past their due date, optionally filtered by
// workflow type.
func (r *TaskRepository) ListOverdue(ctx context.Context, now time.Time, workflowType workflow.Type) ([]*entity.WorkflowTask, error) {
	query := `
		SELECT ` + taskColumns + ` FROM workflow_tasks
		WHERE status IN (?, ?) AND due_at IS NOT NULL AND due_at < ?
	`
	args := []interface{}{entity.TaskStatusPending, entity.TaskStatusInProgress, now}
	if workflowType != "" {
		query += ` AND workflow_type = ?`
		args = append(args, workflowType.String())
	}
	query += ` ORDER BY due_at`
	return r.queryTasks(ctx, query, args...)
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*entity.WorkflowTask, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []*entity.WorkflowTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func scanTask(row rowScanner) (*entity.WorkflowTask, error) {
	var task entity.WorkflowTask
	var kind, wfType, state string
	var assignedTo, completedBy, notes sql.NullString
	var dueAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&kind,
		&task.Entity.ID,
		&wfType,
		&state,
		&task.Kind,
		&task.Description,
		&task.Status,
		&assignedTo,
		&completedBy,
		&notes,
		&dueAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Entity.Kind = workflow.Type(kind)
	task.WorkflowType = workflow.Type(wfType)
	task.State = workflow.State(state)
	task.AssignedTo = stringValue(assignedTo)
	task.CompletedBy = stringValue(completedBy)
	task.Notes = stringValue(notes)
	task.DueAt = timePtr(dueAt)
	return &task, nil
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)
