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

// DocumentRepository implements port.DocumentStore on sqlite.
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a document package repository.
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{db: db, logger: logger}
}

const documentColumns = `
	id, application_id, signers, sent_at, expires_at,
	current_state, state_changed_at, state_changed_by, terminal, sla_due_at,
	created_at, updated_at
`

// Create persists a new document package.
func (r *DocumentRepository) Create(ctx context.Context, e entity.WorkflowEntity) error {
	doc, err := asDocument(e)
	if err != nil {
		return err
	}

	signers, err := marshalSigners(doc.Signers)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO document_packages (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		doc.ID,
		doc.ApplicationID,
		signers,
		nullTime(doc.SentAt),
		nullTime(doc.ExpiresAt),
		doc.CurrentState.String(),
		doc.StateChangedAt,
		nullString(doc.StateChangedBy),
		doc.Terminal,
		nullTime(doc.SLADueAt),
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document package",
			zap.String("document_id", doc.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create document package: %w", err)
	}
	return nil
}

// Load implements port.EntityStore.
func (r *DocumentRepository) Load(ctx context.Context, id string) (entity.WorkflowEntity, error) {
	return r.GetDocumentPackage(ctx, id)
}

// GetDocumentPackage retrieves a document package by id.
func (r *DocumentRepository) GetDocumentPackage(ctx context.Context, id string) (*entity.DocumentPackage, error) {
	query := `SELECT ` + documentColumns + ` FROM document_packages WHERE id = ?`
	doc, err := scanDocument(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: document package %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document package %s: %w", id, err)
	}
	return doc, nil
}

// FindByApplication returns the most recent package for an application, or
// workflow.ErrNotFound when none exists.
func (r *DocumentRepository) FindByApplication(ctx context.Context, applicationID string) (*entity.DocumentPackage, error) {
	query := `
		SELECT ` + documentColumns + ` FROM document_packages
		WHERE application_id = ?
		ORDER BY created_at DESC LIMIT 1
	`
	doc, err := scanDocument(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, applicationID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no document package for application %s", workflow.ErrNotFound, applicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document package for application %s: %w", applicationID, err)
	}
	return doc, nil
}

// FindExpiring returns open packages whose signature window elapsed before now.
func (r *DocumentRepository) FindExpiring(ctx context.Context, now time.Time, limit int) ([]*entity.DocumentPackage, error) {
	query := `
		SELECT ` + documentColumns + ` FROM document_packages
		WHERE terminal = 0 AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY expires_at LIMIT ?
	`
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring document packages: %w", err)
	}
	defer rows.Close()

	var out []*entity.DocumentPackage
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Save persists the package's business fields.
func (r *DocumentRepository) Save(ctx context.Context, e entity.WorkflowEntity) error {
	doc, err := asDocument(e)
	if err != nil {
		return err
	}

	signers, err := marshalSigners(doc.Signers)
	if err != nil {
		return err
	}

	query := `
		UPDATE document_packages
		SET signers = ?, sent_at = ?, expires_at = ?, updated_at = ?
		WHERE id = ?
	`
	doc.UpdatedAt = time.Now().UTC()
	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		signers,
		nullTime(doc.SentAt),
		nullTime(doc.ExpiresAt),
		doc.UpdatedAt,
		doc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save document package %s: %w", doc.ID, err)
	}
	return nil
}

// UpdateState implements the optimistic state write.
func (r *DocumentRepository) UpdateState(ctx context.Context, e entity.WorkflowEntity, expectedFrom workflow.State) error {
	return updateEntityState(ctx, r.db, "document_packages", e, expectedFrom)
}

// UpdateSLADue implements port.EntityStore.
func (r *DocumentRepository) UpdateSLADue(ctx context.Context, ref entity.Ref, due *time.Time) error {
	return updateSLADue(ctx, r.db, "document_packages", ref.ID, due)
}

// FindActive returns non-terminal packages for periodic sweeps.
func (r *DocumentRepository) FindActive(ctx context.Context, limit int) ([]entity.WorkflowEntity, error) {
	query := `SELECT ` + documentColumns + ` FROM document_packages WHERE terminal = 0 ORDER BY state_changed_at LIMIT ?`
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active document packages: %w", err)
	}
	defer rows.Close()

	var out []entity.WorkflowEntity
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func scanDocument(row rowScanner) (*entity.DocumentPackage, error) {
	var doc entity.DocumentPackage
	var signers, changedBy sql.NullString
	var state string
	var sentAt, expiresAt, slaDue sql.NullTime

	err := row.Scan(
		&doc.ID,
		&doc.ApplicationID,
		&signers,
		&sentAt,
		&expiresAt,
		&state,
		&doc.StateChangedAt,
		&changedBy,
		&doc.Terminal,
		&slaDue,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.CurrentState = workflow.State(state)
	doc.StateChangedBy = stringValue(changedBy)
	doc.SentAt = timePtr(sentAt)
	doc.ExpiresAt = timePtr(expiresAt)
	doc.SLADueAt = timePtr(slaDue)

	if signers.Valid && signers.String != "" {
		if err := json.Unmarshal([]byte(signers.String), &doc.Signers); err != nil {
			return nil, fmt.Errorf("failed to decode signers for document package %s: %w", doc.ID, err)
		}
	}
	return &doc, nil
}

func marshalSigners(signers []entity.Signer) (sql.NullString, error) {
	if len(signers) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(signers)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode signers: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func asDocument(e entity.WorkflowEntity) (*entity.DocumentPackage, error) {
	doc, ok := e.(*entity.DocumentPackage)
	if !ok {
		return nil, fmt.Errorf("entity %s is not a document package", e.Ref())
	}
	return doc, nil
}

// Verify interface compliance
var _ port.DocumentStore = (*DocumentRepository)(nil)
