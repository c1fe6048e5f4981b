package entity

import (
	"time"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// Ref is an opaque reference usable to attach history, schedule and task
// records to any workflow-participating entity.
type Ref struct {
	Kind workflow.Type `json:"kind"`
	ID   string        `json:"id"`
}

// String returns "kind/id".
func (r Ref) String() string {
	return string(r.Kind) + "/" + r.ID
}

// WorkflowMeta carries the workflow-owned fields shared by every entity kind.
// Only the state machine writes CurrentState.
type WorkflowMeta struct {
	CurrentState   workflow.State `json:"current_state"`
	StateChangedAt time.Time      `json:"state_changed_at"`
	StateChangedBy string         `json:"state_changed_by,omitempty"`
	Terminal       bool           `json:"terminal"`
	SLADueAt       *time.Time     `json:"sla_due_at,omitempty"`
}

// WorkflowEntity is implemented by every entity kind that moves through a
// state table.
type WorkflowEntity interface {
	Ref() Ref
	WorkflowType() workflow.Type
	Meta() *WorkflowMeta
}

// NewWorkflowMeta returns the meta block for a freshly created entity.
func NewWorkflowMeta(initial workflow.State) WorkflowMeta {
	return WorkflowMeta{
		CurrentState:   initial,
		StateChangedAt: time.Now().UTC(),
	}
}
