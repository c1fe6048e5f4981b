package entity

import (
	"time"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// UnderwritingDecision is the recorded outcome of underwriting review.
type UnderwritingDecision struct {
	Outcome   string    `json:"outcome"` // "approve" or "deny"
	DecidedBy string    `json:"decided_by"`
	DecidedAt time.Time `json:"decided_at"`
	Notes     string    `json:"notes,omitempty"`
}

// Application is a loan application moving through the application workflow.
type Application struct {
	ID              string                `json:"id"`
	BorrowerName    string                `json:"borrower_name"`
	LoanAmountCents int64                 `json:"loan_amount_cents"`
	ProductCode     string                `json:"product_code"`
	Decision        *UnderwritingDecision `json:"decision,omitempty"`

	WorkflowMeta

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref implements WorkflowEntity.
func (a *Application) Ref() Ref {
	return Ref{Kind: workflow.TypeApplication, ID: a.ID}
}

// WorkflowType implements WorkflowEntity.
func (a *Application) WorkflowType() workflow.Type {
	return workflow.TypeApplication
}

// Meta implements WorkflowEntity.
func (a *Application) Meta() *WorkflowMeta {
	return &a.WorkflowMeta
}

// IsComplete reports whether the application carries everything submission
// requires.
func (a *Application) IsComplete() bool {
	return a.BorrowerName != "" && a.LoanAmountCents > 0 && a.ProductCode != ""
}

// HasRecordedDecision reports whether an underwriting decision has been
// captured. Approval and denial both require one.
func (a *Application) HasRecordedDecision() bool {
	return a.Decision != nil && a.Decision.Outcome != ""
}
