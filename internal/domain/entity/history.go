package entity

import (
	"time"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// TransitionRecord is the append-only audit trail of an executed transition.
// Exactly one record is written per transition, inside the same unit of work
// as the state mutation. Records are never mutated or deleted.
type TransitionRecord struct {
	ID           string         `json:"id"`
	Entity       Ref            `json:"entity"`
	WorkflowType workflow.Type  `json:"workflow_type"`
	FromState    workflow.State `json:"from_state"`
	ToState      workflow.State `json:"to_state"`
	Actor        string         `json:"actor,omitempty"` // empty for system-initiated
	Reason       string         `json:"reason,omitempty"`
	Event        string         `json:"event,omitempty"` // named event, best-effort
	OccurredAt   time.Time      `json:"occurred_at"`
}
