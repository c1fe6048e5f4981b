package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	domainwf "github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// Handler wraps the state machine with entity-specific business rules for one
// workflow type.
type Handler interface {
	WorkflowType() domainwf.Type
	AllowedTransitions(e entity.WorkflowEntity) []domainwf.State
	ValidateTransition(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, actor *domainwf.Actor) error
	Transition(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, actor *domainwf.Actor, reason string) (*Result, error)
	History(ctx context.Context, e entity.WorkflowEntity, limit int) ([]*entity.TransitionRecord, error)
}

// transitionHooks are the per-entity-kind extension points.
type transitionHooks interface {
	// precondition rejects illegal business states. Errors wrap
	// ErrPreconditionFailed.
	precondition(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, actor *domainwf.Actor) error

	// preActions run inside the transition's unit of work, before the state
	// changes. Any failure aborts the transition.
	preActions(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, actor *domainwf.Actor) error

	// postActions run after the unit of work commits. Failures append
	// warnings to the result; the state change stands.
	postActions(ctx context.Context, e entity.WorkflowEntity, from, to domainwf.State, res *Result)
}

// baseHandler carries the orchestration shared by all three entity kinds:
// validate, pre-actions + state mutation in one unit of work, then
// post-actions.
type baseHandler struct {
	workflowType domainwf.Type
	machine      *Machine
	hooks        transitionHooks
	tx           port.TransactionManager
	logger       *zap.Logger
}

// WorkflowType implements Handler.
func (h *baseHandler) WorkflowType() domainwf.Type {
	return h.workflowType
}

// AllowedTransitions implements Handler.
func (h *baseHandler) AllowedTransitions(e entity.WorkflowEntity) []domainwf.State {
	return h.machine.AllowedTransitions(e)
}

// ValidateTransition implements Handler: state machine legality and
// permission first, then entity preconditions.
func (h *baseHandler) ValidateTransition(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, actor *domainwf.Actor) error {
	if e.Meta().CurrentState == to {
		return nil
	}
	if err := h.machine.ValidateTransition(e, to, actor); err != nil {
		return err
	}
	return h.hooks.precondition(ctx, e, to, actor)
}

// Transition implements Handler.
func (h *baseHandler) Transition(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, actor *domainwf.Actor, reason string) (*Result, error) {
	if err := h.ValidateTransition(ctx, e, to, actor); err != nil {
		return nil, err
	}

	var res *Result
	err := h.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := h.hooks.preActions(txCtx, e, to, actor); err != nil {
			return err
		}
		r, err := h.machine.Transition(txCtx, e, to, actor, reason, true)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !res.NoOp {
		h.hooks.postActions(ctx, e, res.From, to, res)
	}

	for _, w := range res.Warnings {
		h.logger.Warn("Transition completed with side-effect warning",
			zap.String("entity", e.Ref().String()),
			zap.String("step", w.Step),
			zap.Error(w.Err))
	}
	return res, nil
}

// History implements Handler.
func (h *baseHandler) History(ctx context.Context, e entity.WorkflowEntity, limit int) ([]*entity.TransitionRecord, error) {
	return h.machine.History(ctx, e, limit)
}
