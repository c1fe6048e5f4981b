package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	domainwf "github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// ApplicationHandler enforces loan-application business rules around the
// generic state machine.
type ApplicationHandler struct {
	baseHandler
	applications port.ApplicationStore
	documents    port.DocumentStore
	funding      port.FundingStore
	factory      *Factory
}

func newApplicationHandler(machine *Machine, tx port.TransactionManager, applications port.ApplicationStore, documents port.DocumentStore, funding port.FundingStore, factory *Factory, logger *zap.Logger) *ApplicationHandler {
	h := &ApplicationHandler{
		baseHandler: baseHandler{
			workflowType: domainwf.TypeApplication,
			machine:      machine,
			tx:           tx,
			logger:       logger,
		},
		applications: applications,
		documents:    documents,
		funding:      funding,
		factory:      factory,
	}
	h.hooks = h
	return h
}

func (h *ApplicationHandler) precondition(_ context.Context, e entity.WorkflowEntity, to domainwf.State, _ *domainwf.Actor) error {
	app, err := asApplication(e)
	if err != nil {
		return err
	}

	switch to {
	case domainwf.AppSubmitted:
		if !app.IsComplete() {
			return fmt.Errorf("%w: application %s is missing required fields", domainwf.ErrPreconditionFailed, app.ID)
		}
	case domainwf.AppApproved, domainwf.AppDenied:
		if !app.HasRecordedDecision() {
			return fmt.Errorf("%w: application %s has no recorded underwriting decision", domainwf.ErrPreconditionFailed, app.ID)
		}
	}
	return nil
}

func (h *ApplicationHandler) preActions(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, actor *domainwf.Actor) error {
	app, err := asApplication(e)
	if err != nil {
		return err
	}

	switch to {
	case domainwf.AppApproved, domainwf.AppDenied:
		stampDecision(app, actor)
		if err := h.applications.Save(ctx, app); err != nil {
			return fmt.Errorf("failed to record decision metadata: %w", err)
		}
	case domainwf.AppDocumentsSent:
		if err := h.ensureDocumentsDispatched(ctx, app); err != nil {
			return err
		}
	}
	return nil
}

func (h *ApplicationHandler) postActions(ctx context.Context, e entity.WorkflowEntity, _, to domainwf.State, res *Result) {
	app, err := asApplication(e)
	if err != nil {
		res.Warn("post_actions", err)
		return
	}

	if to == domainwf.AppQCApproved {
		if err := h.ensureFundingRequest(ctx, app); err != nil {
			h.logger.Error("Failed to create funding request",
				zap.String("application_id", app.ID),
				zap.Error(err))
			res.Warn("create_funding_request", err)
		}
	}
}

// ensureDocumentsDispatched guarantees a sent document package exists before
// the application reports documents out. Runs pre-transition: a failure here
// aborts the application transition.
func (h *ApplicationHandler) ensureDocumentsDispatched(ctx context.Context, app *entity.Application) error {
	pkg, err := h.documents.FindByApplication(ctx, app.ID)
	if err != nil && !errors.Is(err, domainwf.ErrNotFound) {
		return fmt.Errorf("failed to look up document package: %w", err)
	}

	if pkg == nil {
		now := time.Now().UTC()
		pkg = &entity.DocumentPackage{
			ID:            uuid.NewString(),
			ApplicationID: app.ID,
			Signers:       []entity.Signer{{Name: app.BorrowerName}},
			WorkflowMeta:  entity.NewWorkflowMeta(domainwf.DocDraft),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := h.documents.Create(ctx, pkg); err != nil {
			return fmt.Errorf("failed to create document package: %w", err)
		}
	}

	if pkg.CurrentState != domainwf.DocDraft {
		return nil
	}

	docs, err := h.factory.Handler(domainwf.TypeDocument)
	if err != nil {
		return err
	}
	if _, err := docs.Transition(ctx, pkg, domainwf.DocSent, nil, "application documents dispatched"); err != nil {
		return fmt.Errorf("failed to dispatch document package %s: %w", pkg.ID, err)
	}
	return nil
}

// ensureFundingRequest creates the downstream funding request once QC signs
// off. Idempotent: an existing request is left alone.
func (h *ApplicationHandler) ensureFundingRequest(ctx context.Context, app *entity.Application) error {
	existing, err := h.funding.FindByApplication(ctx, app.ID)
	if err != nil && !errors.Is(err, domainwf.ErrNotFound) {
		return err
	}
	if existing != nil {
		return nil
	}

	now := time.Now().UTC()
	req := &entity.FundingRequest{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		AmountCents:   app.LoanAmountCents,
		WorkflowMeta:  entity.NewWorkflowMeta(domainwf.FundingPending),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.funding.Create(ctx, req); err != nil {
		return err
	}

	h.logger.Info("Funding request created",
		zap.String("application_id", app.ID),
		zap.String("funding_request_id", req.ID))
	return nil
}

func stampDecision(app *entity.Application, actor *domainwf.Actor) {
	if app.Decision == nil {
		return
	}
	if app.Decision.DecidedBy == "" && actor != nil {
		app.Decision.DecidedBy = actor.ID
	}
	if app.Decision.DecidedAt.IsZero() {
		app.Decision.DecidedAt = time.Now().UTC()
	}
}

func asApplication(e entity.WorkflowEntity) (*entity.Application, error) {
	app, ok := e.(*entity.Application)
	if !ok {
		return nil, fmt.Errorf("entity %s is not a loan application", e.Ref())
	}
	return app, nil
}
