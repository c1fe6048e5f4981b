package entity

import (
	"time"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// Signer is one required signature on a document package.
type Signer struct {
	Name     string     `json:"name"`
	Email    string     `json:"email,omitempty"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
}

// DocumentPackage is the closing document set for an application.
type DocumentPackage struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"application_id"`
	Signers       []Signer   `json:"signers"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`

	WorkflowMeta

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref implements WorkflowEntity.
func (d *DocumentPackage) Ref() Ref {
	return Ref{Kind: workflow.TypeDocument, ID: d.ID}
}

// WorkflowType implements WorkflowEntity.
func (d *DocumentPackage) WorkflowType() workflow.Type {
	return workflow.TypeDocument
}

// Meta implements WorkflowEntity.
func (d *DocumentPackage) Meta() *WorkflowMeta {
	return &d.WorkflowMeta
}

// AllSignaturesCollected reports whether every signer has signed. A package
// with no signers is never considered executed.
func (d *DocumentPackage) AllSignaturesCollected() bool {
	if len(d.Signers) == 0 {
		return false
	}
	for _, s := range d.Signers {
		if s.SignedAt == nil {
			return false
		}
	}
	return true
}

// AnySignatureCollected reports whether at least one signer has signed.
func (d *DocumentPackage) AnySignatureCollected() bool {
	for _, s := range d.Signers {
		if s.SignedAt != nil {
			return true
		}
	}
	return false
}
