package entity

import (
	"time"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// TransitionSchedule is a "fire at time T" record for an automatic transition.
// It moves from pending to executed exactly once and is retained as an audit
// trail, never deleted.
type TransitionSchedule struct {
	ID           string         `json:"id"`
	Entity       Ref            `json:"entity"`
	WorkflowType workflow.Type  `json:"workflow_type"`
	FromState    workflow.State `json:"from_state"`
	ToState      workflow.State `json:"to_state"`
	Reason       string         `json:"reason"`
	ScheduledFor time.Time      `json:"scheduled_for"`
	Recurring    bool           `json:"recurring"` // re-armed monthly after execution
	Executed     bool           `json:"executed"`
	ExecutedAt   *time.Time     `json:"executed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
