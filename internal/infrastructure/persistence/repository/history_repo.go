package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository on sqlite. Records are
// insert-only; there is no update or delete path.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a transition history repository.
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Append writes one transition record.
func (r *HistoryRepository) Append(ctx context.Context, rec *entity.TransitionRecord) error {
	query := `
		INSERT INTO transition_history
			(id, entity_kind, entity_id, workflow_type, from_state, to_state, actor, reason, event, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		rec.ID,
		rec.Entity.Kind.String(),
		rec.Entity.ID,
		rec.WorkflowType.String(),
		rec.FromState.String(),
		rec.ToState.String(),
		nullString(rec.Actor),
		nullString(rec.Reason),
		nullString(rec.Event),
		rec.OccurredAt,
	)
	if err != nil {
		r.logger.Error("Failed to append transition record",
			zap.String("entity", rec.Entity.String()),
			zap.Error(err))
		return fmt.Errorf("failed to append transition record: %w", err)
	}
	return nil
}

// ListByEntity returns an entity's transitions, most recent first.
func (r *HistoryRepository) ListByEntity(ctx context.Context, ref entity.Ref, limit int) ([]*entity.TransitionRecord, error) {
	query := `
		SELECT id, entity_kind, entity_id, workflow_type, from_state, to_state, actor, reason, event, occurred_at
		FROM transition_history
		WHERE entity_kind = ? AND entity_id = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, ref.Kind.String(), ref.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for %s: %w", ref, err)
	}
	defer rows.Close()

	var out []*entity.TransitionRecord
	for rows.Next() {
		var rec entity.TransitionRecord
		var kind, wfType, from, to string
		var actor, reason, event sql.NullString
		err := rows.Scan(
			&rec.ID,
			&kind,
			&rec.Entity.ID,
			&wfType,
			&from,
			&to,
			&actor,
			&reason,
			&event,
			&rec.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition record: %w", err)
		}
		rec.Entity.Kind = workflow.Type(kind)
		rec.WorkflowType = workflow.Type(wfType)
		rec.FromState = workflow.State(from)
		rec.ToState = workflow.State(to)
		rec.Actor = stringValue(actor)
		rec.Reason = stringValue(reason)
		rec.Event = stringValue(event)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
