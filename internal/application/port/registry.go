package port

import (
	"fmt"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// Registry maps workflow types to their entity stores. Unknown types error
// loudly instead of silently resolving to nothing.
type Registry struct {
	stores map[workflow.Type]EntityStore
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[workflow.Type]EntityStore)}
}

// Register binds a store to a workflow type.
func (r *Registry) Register(workflowType workflow.Type, store EntityStore) {
	r.stores[workflowType] = store
}

// Store resolves the store for a workflow type.
func (r *Registry) Store(workflowType workflow.Type) (EntityStore, error) {
	store, ok := r.stores[workflowType]
	if !ok {
		return nil, fmt.Errorf("%w: no entity store registered for workflow type %q", workflow.ErrNotFound, workflowType)
	}
	return store, nil
}
