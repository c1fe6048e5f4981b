package entity

import (
	"time"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// Stipulation is a condition that must be cleared before disbursement.
type Stipulation struct {
	Description string     `json:"description"`
	SatisfiedAt *time.Time `json:"satisfied_at,omitempty"`
}

// FundingRequest is the disbursement request for an approved application.
type FundingRequest struct {
	ID            string        `json:"id"`
	ApplicationID string        `json:"application_id"`
	AmountCents   int64         `json:"amount_cents"`
	Approver      string        `json:"approver,omitempty"`
	ApprovedAt    *time.Time    `json:"approved_at,omitempty"`
	DisbursedAt   *time.Time    `json:"disbursed_at,omitempty"`
	Stipulations  []Stipulation `json:"stipulations,omitempty"`

	WorkflowMeta

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref implements WorkflowEntity.
func (f *FundingRequest) Ref() Ref {
	return Ref{Kind: workflow.TypeFunding, ID: f.ID}
}

// WorkflowType implements WorkflowEntity.
func (f *FundingRequest) WorkflowType() workflow.Type {
	return workflow.TypeFunding
}

// Meta implements WorkflowEntity.
func (f *FundingRequest) Meta() *WorkflowMeta {
	return &f.WorkflowMeta
}

// HasApprovalRecord reports whether an approver identity and decision
// timestamp have been captured.
func (f *FundingRequest) HasApprovalRecord() bool {
	return f.Approver != "" && f.ApprovedAt != nil
}

// AllStipulationsSatisfied reports whether every stipulation has been cleared.
func (f *FundingRequest) AllStipulationsSatisfied() bool {
	for _, s := range f.Stipulations {
		if s.SatisfiedAt == nil {
			return false
		}
	}
	return true
}
