package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/infrastructure/persistence/sqlite"
)

// updateEntityState writes the workflow meta block conditioned on the stored
// state still matching expectedFrom. Losing the optimistic race yields
// workflow.ErrConcurrentModification; a missing row yields
// workflow.ErrNotFound.
func updateEntityState(ctx context.Context, db *sql.DB, table string, e entity.WorkflowEntity, expectedFrom workflow.State) error {
	meta := e.Meta()
	query := fmt.Sprintf(`
		UPDATE %s
		SET current_state = ?, state_changed_at = ?, state_changed_by = ?,
			terminal = ?, sla_due_at = ?, updated_at = ?
		WHERE id = ? AND current_state = ?
	`, table)

	res, err := sqlite.Executor(ctx, db).ExecContext(ctx, query,
		meta.CurrentState.String(),
		meta.StateChangedAt,
		nullString(meta.StateChangedBy),
		meta.Terminal,
		nullTime(meta.SLADueAt),
		time.Now().UTC(),
		e.Ref().ID,
		expectedFrom.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update state for %s: %w", e.Ref(), err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for %s: %w", e.Ref(), err)
	}
	if affected > 0 {
		return nil
	}

	// Zero rows: either the row is gone or someone moved it first.
	var current string
	row := sqlite.Executor(ctx, db).QueryRowContext(ctx, fmt.Sprintf(`SELECT current_state FROM %s WHERE id = ?`, table), e.Ref().ID)
	if err := row.Scan(&current); err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, e.Ref())
	} else if err != nil {
		return fmt.Errorf("failed to re-read state for %s: %w", e.Ref(), err)
	}
	return fmt.Errorf("%w: %s expected %s, found %s", workflow.ErrConcurrentModification, e.Ref(), expectedFrom, current)
}

// updateSLADue persists a recomputed SLA due date.
func updateSLADue(ctx context.Context, db *sql.DB, table, id string, due *time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET sla_due_at = ?, updated_at = ? WHERE id = ?`, table)
	_, err := sqlite.Executor(ctx, db).ExecContext(ctx, query, nullTime(due), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update sla due date for %s/%s: %w", table, id, err)
	}
	return nil
}
