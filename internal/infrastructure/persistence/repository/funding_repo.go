package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/infrastructure/persistence/sqlite"
)

// FundingRepository implements port.FundingStore on sqlite.
type FundingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFundingRepository creates a funding request repository.
func NewFundingRepository(db *sql.DB, logger *zap.Logger) *FundingRepository {
	return &FundingRepository{db: db, logger: logger}
}

const fundingColumns = `
	id, application_id, amount_cents, approver, approved_at, disbursed_at, stipulations,
	current_state, state_changed_at, state_changed_by, terminal, sla_due_at,
	created_at, updated_at
`

// Create persists a new funding request.
func (r *FundingRepository) Create(ctx context.Context, e entity.WorkflowEntity) error {
	req, err := asFunding(e)
	if err != nil {
		return err
	}

	stips, err := marshalStipulations(req.Stipulations)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO funding_requests (` + fundingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		req.ID,
		req.ApplicationID,
		req.AmountCents,
		nullString(req.Approver),
		nullTime(req.ApprovedAt),
		nullTime(req.DisbursedAt),
		stips,
		req.CurrentState.String(),
		req.StateChangedAt,
		nullString(req.StateChangedBy),
		req.Terminal,
		nullTime(req.SLADueAt),
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create funding request",
			zap.String("funding_id", req.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create funding request: %w", err)
	}
	return nil
}

// Load implements port.EntityStore.
func (r *FundingRepository) Load(ctx context.Context, id string) (entity.WorkflowEntity, error) {
	return r.GetFundingRequest(ctx, id)
}

// GetFundingRequest retrieves a funding request by id.
func (r *FundingRepository) GetFundingRequest(ctx context.Context, id string) (*entity.FundingRequest, error) {
	query := `SELECT ` + fundingColumns + ` FROM funding_requests WHERE id = ?`
	req, err := scanFunding(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: funding request %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load funding request %s: %w", id, err)
	}
	return req, nil
}

// FindByApplication returns the most recent funding request for an
// application, or workflow.ErrNotFound when none exists.
func (r *FundingRepository) FindByApplication(ctx context.Context, applicationID string) (*entity.FundingRequest, error) {
	query := `
		SELECT ` + fundingColumns + ` FROM funding_requests
		WHERE application_id = ?
		ORDER BY created_at DESC LIMIT 1
	`
	req, err := scanFunding(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, applicationID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no funding request for application %s", workflow.ErrNotFound, applicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find funding request for application %s: %w", applicationID, err)
	}
	return req, nil
}

// Save persists the request's business fields.
func (r *FundingRepository) Save(ctx context.Context, e entity.WorkflowEntity) error {
	req, err := asFunding(e)
	if err != nil {
		return err
	}

	stips, err := marshalStipulations(req.Stipulations)
	if err != nil {
		return err
	}

	query := `
		UPDATE funding_requests
		SET amount_cents = ?, approver = ?, approved_at = ?, disbursed_at = ?, stipulations = ?, updated_at = ?
		WHERE id = ?
	`
	req.UpdatedAt = time.Now().UTC()
	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		req.AmountCents,
		nullString(req.Approver),
		nullTime(req.ApprovedAt),
		nullTime(req.DisbursedAt),
		stips,
		req.UpdatedAt,
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save funding request %s: %w", req.ID, err)
	}
	return nil
}

// UpdateState implements the optimistic state write.
func (r *FundingRepository) UpdateState(ctx context.Context, e entity.WorkflowEntity, expectedFrom workflow.State) error {
	return updateEntityState(ctx, r.db, "funding_requests", e, expectedFrom)
}

// UpdateSLADue implements port.EntityStore.
func (r *FundingRepository) UpdateSLADue(ctx context.Context, ref entity.Ref, due *time.Time) error {
	return updateSLADue(ctx, r.db, "funding_requests", ref.ID, due)
}

// FindActive returns non-terminal funding requests for periodic sweeps.
func (r *FundingRepository) FindActive(ctx context.Context, limit int) ([]entity.WorkflowEntity, error) {
	query := `SELECT ` + fundingColumns + ` FROM funding_requests WHERE terminal = 0 ORDER BY state_changed_at LIMIT ?`
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active funding requests: %w", err)
	}
	defer rows.Close()

	var out []entity.WorkflowEntity
	for rows.Next() {
		req, err := scanFunding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanFunding(row rowScanner) (*entity.FundingRequest, error) {
	var req entity.FundingRequest
	var approver, stips, changedBy sql.NullString
	var state string
	var approvedAt, disbursedAt, slaDue sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.ApplicationID,
		&req.AmountCents,
		&approver,
		&approvedAt,
		&disbursedAt,
		&stips,
		&state,
		&req.StateChangedAt,
		&changedBy,
		&req.Terminal,
		&slaDue,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Approver = stringValue(approver)
	req.ApprovedAt = timePtr(approvedAt)
	req.DisbursedAt = timePtr(disbursedAt)
	req.CurrentState = workflow.State(state)
	req.StateChangedBy = stringValue(changedBy)
	req.SLADueAt = timePtr(slaDue)

	if stips.Valid && stips.String != "" {
		if err := json.Unmarshal([]byte(stips.String), &req.Stipulations); err != nil {
			return nil, fmt.Errorf("failed to decode stipulations for funding request %s: %w", req.ID, err)
		}
	}
	return &req, nil
}

func marshalStipulations(stips []entity.Stipulation) (sql.NullString, error) {
	if len(stips) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(stips)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode stipulations: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func asFunding(e entity.WorkflowEntity) (*entity.FundingRequest, error) {
	req, ok := e.(*entity.FundingRequest)
	if !ok {
		return nil, fmt.Errorf("entity %s is not a funding request", e.Ref())
	}
	return req, nil
}

// Verify interface compliance
var _ port.FundingStore = (*FundingRepository)(nil)
