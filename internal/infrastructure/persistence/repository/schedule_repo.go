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

// ScheduleRepository implements port.ScheduleRepository on sqlite. Executed
// schedules are retained, never deleted.
type ScheduleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewScheduleRepository creates a transition schedule repository.
func NewScheduleRepository(db *sql.DB, logger *zap.Logger) *ScheduleRepository {
	return &ScheduleRepository{db: db, logger: logger}
}

const scheduleColumns = `
	id, entity_kind, entity_id, workflow_type, from_state, to_state, reason,
	scheduled_for, recurring, executed, executed_at, created_at
`

// Create persists a new schedule.
func (r *ScheduleRepository) Create(ctx context.Context, sched *entity.TransitionSchedule) error {
	query := `
		INSERT INTO transition_schedules (` + scheduleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		sched.ID,
		sched.Entity.Kind.String(),
		sched.Entity.ID,
		sched.WorkflowType.String(),
		sched.FromState.String(),
		sched.ToState.String(),
		nullString(sched.Reason),
		sched.ScheduledFor,
		sched.Recurring,
		sched.Executed,
		nullTime(sched.ExecutedAt),
		sched.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create transition schedule",
			zap.String("entity", sched.Entity.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create transition schedule: %w", err)
	}
	return nil
}

// GetDue returns pending schedules whose fire time has passed, oldest first.
func (r *ScheduleRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*entity.TransitionSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + ` FROM transition_schedules
		WHERE executed = 0 AND scheduled_for <= ?
		ORDER BY scheduled_for
		LIMIT ?
	`
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// MarkExecuted flips a schedule to executed.
func (r *ScheduleRepository) MarkExecuted(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE transition_schedules SET executed = 1, executed_at = ? WHERE id = ? AND executed = 0`
	res, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark schedule %s executed: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for schedule %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: pending schedule %s", workflow.ErrNotFound, id)
	}
	return nil
}

// ListPendingByEntity returns an entity's unexecuted schedules.
func (r *ScheduleRepository) ListPendingByEntity(ctx context.Context, ref entity.Ref) ([]*entity.TransitionSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + ` FROM transition_schedules
		WHERE executed = 0 AND entity_kind = ? AND entity_id = ?
		ORDER BY scheduled_for
	`
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, ref.Kind.String(), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending schedules for %s: %w", ref, err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func collectSchedules(rows *sql.Rows) ([]*entity.TransitionSchedule, error) {
	var out []*entity.TransitionSchedule
	for rows.Next() {
		var sched entity.TransitionSchedule
		var kind, wfType, from, to string
		var reason sql.NullString
		var executedAt sql.NullTime
		err := rows.Scan(
			&sched.ID,
			&kind,
			&sched.Entity.ID,
			&wfType,
			&from,
			&to,
			&reason,
			&sched.ScheduledFor,
			&sched.Recurring,
			&sched.Executed,
			&executedAt,
			&sched.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition schedule: %w", err)
		}
		sched.Entity.Kind = workflow.Type(kind)
		sched.WorkflowType = workflow.Type(wfType)
		sched.FromState = workflow.State(from)
		sched.ToState = workflow.State(to)
		sched.Reason = stringValue(reason)
		sched.ExecutedAt = timePtr(executedAt)
		out = append(out, &sched)
	}
	return out, rows.Err()
}

// Verify interface compliance
var _ port.ScheduleRepository = (*ScheduleRepository)(nil)
