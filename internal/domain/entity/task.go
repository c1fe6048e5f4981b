package entity

import (
	"time"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// Task status constants. Completed and cancelled are terminal.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// WorkflowTask is a follow-up action for a human actor, tied to an entity and
// the state that spawned it. Tasks are never physically deleted.
type WorkflowTask struct {
	ID           string         `json:"id"`
	Entity       Ref            `json:"entity"`
	WorkflowType workflow.Type  `json:"workflow_type"`
	State        workflow.State `json:"state"` // state whose entry created the task
	Kind         string         `json:"kind"`
	Description  string         `json:"description"`
	Status       string         `json:"status"`
	AssignedTo   string         `json:"assigned_to,omitempty"`
	CompletedBy  string         `json:"completed_by,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	DueAt        *time.Time     `json:"due_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsTerminalStatus reports whether the task can no longer be mutated.
func (t *WorkflowTask) IsTerminalStatus() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusCancelled
}

// IsOverdue reports whether the task has a due date in the past and is still
// open.
func (t *WorkflowTask) IsOverdue(now time.Time) bool {
	if t.DueAt == nil {
		return false
	}
	if t.Status != TaskStatusPending && t.Status != TaskStatusInProgress {
		return false
	}
	return t.DueAt.Before(now)
}
