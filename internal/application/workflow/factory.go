package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	domainwf "github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// FactoryConfig gathers the collaborators the factory wires into each
// machine and handler.
type FactoryConfig struct {
	Tables       domainwf.Tables
	Registry     *port.Registry
	History      port.HistoryRepository
	Tx           port.TransactionManager
	Applications port.ApplicationStore
	Documents    port.DocumentStore
	Funding      port.FundingStore
	Tasks        StateEntryHook
	Scheduler    AutoScheduler
	SLA          SLACalculator
	Notifier     port.Notifier
	Logger       *zap.Logger
}

// Factory resolves the transition handler for a workflow type. It also
// implements the scheduler's TransitionExecutor so scheduled and cascaded
// transitions flow through the same business rules as caller-initiated ones.
type Factory struct {
	tables   domainwf.Tables
	handlers map[domainwf.Type]Handler
}

// NewFactory builds the per-type machines and handlers.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	f := &Factory{
		tables:   cfg.Tables,
		handlers: make(map[domainwf.Type]Handler),
	}

	opts := []MachineOption{
		WithStateEntryHook(cfg.Tasks),
		WithAutoScheduler(cfg.Scheduler),
		WithSLACalculator(cfg.SLA),
		WithNotifier(cfg.Notifier),
	}

	machineFor := func(workflowType domainwf.Type) (*Machine, error) {
		table, err := cfg.Tables.Get(workflowType)
		if err != nil {
			return nil, err
		}
		return NewMachine(table, cfg.Registry, cfg.History, cfg.Tx, cfg.Logger, opts...), nil
	}

	appMachine, err := machineFor(domainwf.TypeApplication)
	if err != nil {
		return nil, err
	}
	docMachine, err := machineFor(domainwf.TypeDocument)
	if err != nil {
		return nil, err
	}
	fundMachine, err := machineFor(domainwf.TypeFunding)
	if err != nil {
		return nil, err
	}

	f.handlers[domainwf.TypeApplication] = newApplicationHandler(appMachine, cfg.Tx, cfg.Applications, cfg.Documents, cfg.Funding, f, cfg.Logger)
	f.handlers[domainwf.TypeDocument] = newDocumentHandler(docMachine, cfg.Tx, cfg.Documents, cfg.Applications, f, cfg.Logger)
	f.handlers[domainwf.TypeFunding] = newFundingHandler(fundMachine, cfg.Tx, cfg.Funding, cfg.Applications, f, cfg.Logger)
	return f, nil
}

// Handler resolves the handler for a workflow type. Unknown types error
// loudly.
func (f *Factory) Handler(workflowType domainwf.Type) (Handler, error) {
	h, ok := f.handlers[workflowType]
	if !ok {
		return nil, fmt.Errorf("%w: no transition handler for workflow type %q", domainwf.ErrNotFound, workflowType)
	}
	return h, nil
}

// HandlerFor resolves the handler for an entity.
func (f *Factory) HandlerFor(e entity.WorkflowEntity) (Handler, error) {
	return f.Handler(e.WorkflowType())
}

// Execute applies a system-initiated transition, implementing
// service.TransitionExecutor.
func (f *Factory) Execute(ctx context.Context, e entity.WorkflowEntity, to domainwf.State, reason string) error {
	h, err := f.HandlerFor(e)
	if err != nil {
		return err
	}
	_, err = h.Transition(ctx, e, to, nil, reason)
	return err
}
