package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	domainwf "github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// DocumentHandler enforces signature rules for document packages and cascades
// package completion into the owning application's workflow.
type DocumentHandler struct {
	baseHandler
	documents    port.DocumentStore
	applications port.ApplicationStore
	factory      *Factory
}

func newDocumentHandler(machine *Machine, tx port.TransactionManager, documents port.DocumentStore, applications port.ApplicationStore, factory *Factory, logger *zap.Logger) *DocumentHandler {
	h := &DocumentHandler{
		baseHandler: baseHandler{
			workflowType: domainwf.TypeDocument,
			machine:      machine,
			tx:           tx,
			logger:       logger,
		},
		documents:    documents,
		applications: applications,
		factory:      factory,
	}
	h.hooks = h
	return h
}

func (h *DocumentHandler) precondition(_ context.Context, e entity.WorkflowEntity, to domainwf.State, _ *domainwf.Actor) error {
	doc, err := asDocumentPackage(e)
	if err != nil {
		return err
	}

	switch to {
	case domainwf.DocSent:
		if len(doc.Signers) == 0 {
			return fmt.Errorf("%w: document package %s has no signers", domainwf.ErrPreconditionFailed, doc.ID)
		}
	case domainwf.DocCompleted:
		if !doc.AllSignaturesCollected() {
			return fmt.Errorf("%w: document package %s has unsigned signers", domainwf.ErrPreconditionFailed, doc.ID)
		}
	}
	return nil
}

func (h *DocumentHandler) preActions(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, _ *domainwf.Actor) error {
	doc, err := asDocumentPackage(e)
	if err != nil {
		return err
	}

	if to == domainwf.DocSent {
		now := time.Now().UTC()
		expires := now.Add(domainwf.SignatureWindow)
		doc.SentAt = &now
		doc.ExpiresAt = &expires
		if err := h.documents.Save(ctx, doc); err != nil {
			return fmt.Errorf("failed to stamp dispatch time: %w", err)
		}
	}
	return nil
}

func (h *DocumentHandler) postActions(ctx context.Context, e entity.WorkflowEntity, _, to domainwf.State, res *Result) {
	doc, err := asDocumentPackage(e)
	if err != nil {
		res.Warn("post_actions", err)
		return
	}

	switch to {
	case domainwf.DocPartiallySigned:
		h.cascadeApplication(ctx, doc, res, domainwf.AppPartiallyExecuted)
	case domainwf.DocCompleted:
		// documents_sent must pass through partially_executed first.
		h.cascadeApplication(ctx, doc, res, domainwf.AppPartiallyExecuted, domainwf.AppFullyExecuted)
	case domainwf.DocExpired:
		h.cascadeApplication(ctx, doc, res, domainwf.AppDocumentsExpired)
	}
}

// cascadeApplication walks the owning application through the given target
// states, skipping targets that are not legal from its current state. This
// cascade is load-bearing: failures are logged and surfaced as warnings so
// pending cross-entity work stays visible.
func (h *DocumentHandler) cascadeApplication(ctx context.Context, doc *entity.DocumentPackage, res *Result, targets ...domainwf.State) {
	app, err := h.applications.GetApplication(ctx, doc.ApplicationID)
	if err != nil {
		h.logger.Error("Failed to load owning application for cascade",
			zap.String("document_id", doc.ID),
			zap.String("application_id", doc.ApplicationID),
			zap.Error(err))
		res.Warn("cascade_application", err)
		return
	}

	apps, err := h.factory.Handler(domainwf.TypeApplication)
	if err != nil {
		res.Warn("cascade_application", err)
		return
	}

	for _, target := range targets {
		if app.CurrentState == target {
			continue
		}
		if !h.factory.tables[domainwf.TypeApplication].CanTransition(app.CurrentState, target) {
			continue
		}
		reason := fmt.Sprintf("document package %s %s", doc.ID, doc.CurrentState)
		if _, err := apps.Transition(ctx, app, target, nil, reason); err != nil {
			h.logger.Error("Application cascade failed",
				zap.String("document_id", doc.ID),
				zap.String("application_id", app.ID),
				zap.String("target", target.String()),
				zap.Error(err))
			res.Warn("cascade_application", err)
			return
		}
	}
}

func asDocumentPackage(e entity.WorkflowEntity) (*entity.DocumentPackage, error) {
	doc, ok := e.(*entity.DocumentPackage)
	if !ok {
		return nil, fmt.Errorf("entity %s is not a document package", e.Ref())
	}
	return doc, nil
}
