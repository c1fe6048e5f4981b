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

// FundingHandler enforces approval and stipulation rules for funding requests
// and cascades disbursement into the owning application.
type FundingHandler struct {
	baseHandler
	funding      port.FundingStore
	applications port.ApplicationStore
	factory      *Factory
}

func newFundingHandler(machine *Machine, tx port.TransactionManager, funding port.FundingStore, applications port.ApplicationStore, factory *Factory, logger *zap.Logger) *FundingHandler {
	h := &FundingHandler{
		baseHandler: baseHandler{
			workflowType: domainwf.TypeFunding,
			machine:      machine,
			tx:           tx,
			logger:       logger,
		},
		funding:      funding,
		applications: applications,
		factory:      factory,
	}
	h.hooks = h
	return h
}

func (h *FundingHandler) precondition(_ context.Context, e entity.WorkflowEntity, to domainwf.State, actor *domainwf.Actor) error {
	req, err := asFundingRequest(e)
	if err != nil {
		return err
	}

	switch to {
	case domainwf.FundingApproved:
		// Approval needs an accountable identity: either an acting approver
		// or an already-recorded approval.
		if actor == nil && !req.HasApprovalRecord() {
			return fmt.Errorf("%w: funding request %s has no approver identity", domainwf.ErrPreconditionFailed, req.ID)
		}
	case domainwf.FundingDisbursed:
		if !req.HasApprovalRecord() {
			return fmt.Errorf("%w: funding request %s has no recorded approval", domainwf.ErrPreconditionFailed, req.ID)
		}
		if !req.AllStipulationsSatisfied() {
			return fmt.Errorf("%w: funding request %s has unsatisfied stipulations", domainwf.ErrPreconditionFailed, req.ID)
		}
	}
	return nil
}

func (h *FundingHandler) preActions(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, actor *domainwf.Actor) error {
	req, err := asFundingRequest(e)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	switch to {
	case domainwf.FundingApproved:
		if !req.HasApprovalRecord() && actor != nil {
			req.Approver = actor.ID
			req.ApprovedAt = &now
			if err := h.funding.Save(ctx, req); err != nil {
				return fmt.Errorf("failed to record funding approval: %w", err)
			}
		}
	case domainwf.FundingDisbursed:
		req.DisbursedAt = &now
		if err := h.funding.Save(ctx, req); err != nil {
			return fmt.Errorf("failed to record disbursement time: %w", err)
		}
	}
	return nil
}

func (h *FundingHandler) postActions(ctx context.Context, e entity.WorkflowEntity, _, to domainwf.State, res *Result) {
	req, err := asFundingRequest(e)
	if err != nil {
		res.Warn("post_actions", err)
		return
	}

	if to != domainwf.FundingDisbursed {
		return
	}

	app, err := h.applications.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		h.logger.Error("Failed to load owning application for funding cascade",
			zap.String("funding_request_id", req.ID),
			zap.String("application_id", req.ApplicationID),
			zap.Error(err))
		res.Warn("cascade_application", err)
		return
	}

	if app.CurrentState != domainwf.AppReadyToFund {
		h.logger.Warn("Disbursement cascade skipped, application not ready to fund",
			zap.String("application_id", app.ID),
			zap.String("state", app.CurrentState.String()))
		return
	}

	apps, err := h.factory.Handler(domainwf.TypeApplication)
	if err != nil {
		res.Warn("cascade_application", err)
		return
	}

	reason := fmt.Sprintf("funding request %s disbursed", req.ID)
	if _, err := apps.Transition(ctx, app, domainwf.AppFunded, nil, reason); err != nil {
		h.logger.Error("Application funding cascade failed",
			zap.String("funding_request_id", req.ID),
			zap.String("application_id", app.ID),
			zap.Error(err))
		res.Warn("cascade_application", err)
	}
}

func asFundingRequest(e entity.WorkflowEntity) (*entity.FundingRequest, error) {
	req, ok := e.(*entity.FundingRequest)
	if !ok {
		return nil, fmt.Errorf("entity %s is not a funding request", e.Ref())
	}
	return req, nil
}
