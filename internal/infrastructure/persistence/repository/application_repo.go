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

// ApplicationRepository implements port.ApplicationStore on sqlite.
type ApplicationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApplicationRepository creates an application repository.
func NewApplicationRepository(db *sql.DB, logger *zap.Logger) *ApplicationRepository {
	return &ApplicationRepository{db: db, logger: logger}
}

const applicationColumns = `
	id, borrower_name, loan_amount_cents, product_code, decision,
	current_state, state_changed_at, state_changed_by, terminal, sla_due_at,
	created_at, updated_at
`

// Create persists a new application.
func (r *ApplicationRepository) Create(ctx context.Context, e entity.WorkflowEntity) error {
	app, err := asApplication(e)
	if err != nil {
		return err
	}

	decision, err := marshalDecision(app.Decision)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		app.ID,
		app.BorrowerName,
		app.LoanAmountCents,
		app.ProductCode,
		decision,
		app.CurrentState.String(),
		app.StateChangedAt,
		nullString(app.StateChangedBy),
		app.Terminal,
		nullTime(app.SLADueAt),
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create application",
			zap.String("application_id", app.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

// Load implements port.EntityStore.
func (r *ApplicationRepository) Load(ctx context.Context, id string) (entity.WorkflowEntity, error) {
	return r.GetApplication(ctx, id)
}

// GetApplication retrieves an application by id.
func (r *ApplicationRepository) GetApplication(ctx context.Context, id string) (*entity.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = ?`
	app, err := scanApplication(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: application %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load application %s: %w", id, err)
	}
	return app, nil
}

// Save persists the application's business fields.
func (r *ApplicationRepository) Save(ctx context.Context, e entity.WorkflowEntity) error {
	app, err := asApplication(e)
	if err != nil {
		return err
	}

	decision, err := marshalDecision(app.Decision)
	if err != nil {
		return err
	}

	query := `
		UPDATE applications
		SET borrower_name = ?, loan_amount_cents = ?, product_code = ?, decision = ?, updated_at = ?
		WHERE id = ?
	`
	app.UpdatedAt = time.Now().UTC()
	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		app.BorrowerName,
		app.LoanAmountCents,
		app.ProductCode,
		decision,
		app.UpdatedAt,
		app.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save application %s: %w", app.ID, err)
	}
	return nil
}

// UpdateState implements the optimistic state write: the update only applies
// while the stored state still equals expectedFrom.
func (r *ApplicationRepository) UpdateState(ctx context.Context, e entity.WorkflowEntity, expectedFrom workflow.State) error {
	return updateEntityState(ctx, r.db, "applications", e, expectedFrom)
}

// UpdateSLADue implements port.EntityStore.
func (r *ApplicationRepository) UpdateSLADue(ctx context.Context, ref entity.Ref, due *time.Time) error {
	return updateSLADue(ctx, r.db, "applications", ref.ID, due)
}

// FindActive returns non-terminal applications for periodic sweeps.
func (r *ApplicationRepository) FindActive(ctx context.Context, limit int) ([]entity.WorkflowEntity, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE terminal = 0 ORDER BY state_changed_at LIMIT ?`
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active applications: %w", err)
	}
	defer rows.Close()

	var out []entity.WorkflowEntity
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*entity.Application, error) {
	var app entity.Application
	var decision, changedBy sql.NullString
	var state string
	var slaDue sql.NullTime

	err := row.Scan(
		&app.ID,
		&app.BorrowerName,
		&app.LoanAmountCents,
		&app.ProductCode,
		&decision,
		&state,
		&app.StateChangedAt,
		&changedBy,
		&app.Terminal,
		&slaDue,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.CurrentState = workflow.State(state)
	app.StateChangedBy = stringValue(changedBy)
	app.SLADueAt = timePtr(slaDue)

	if decision.Valid && decision.String != "" {
		var d entity.UnderwritingDecision
		if err := json.Unmarshal([]byte(decision.String), &d); err != nil {
			return nil, fmt.Errorf("failed to decode decision for application %s: %w", app.ID, err)
		}
		app.Decision = &d
	}
	return &app, nil
}

func marshalDecision(d *entity.UnderwritingDecision) (sql.NullString, error) {
	if d == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode decision: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func asApplication(e entity.WorkflowEntity) (*entity.Application, error) {
	app, ok := e.(*entity.Application)
	if !ok {
		return nil, fmt.Errorf("entity %s is not an application", e.Ref())
	}
	return app, nil
}

// Verify interface compliance
var _ port.ApplicationStore = (*ApplicationRepository)(nil)
