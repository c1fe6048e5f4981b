package workflow

// Type identifies which workflow graph an entity moves through.
type Type string

const (
	TypeApplication Type = "application"
	TypeDocument    Type = "document"
	TypeFunding     Type = "funding"
)

// String returns the string representation of the workflow type.
func (t Type) String() string {
	return string(t)
}

// State represents a lifecycle state within a workflow.
type State string

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Actor is the principal requesting a transition. A nil *Actor means the
// system itself initiated the transition (scheduled or cascaded).
type Actor struct {
	ID   string
	Role string
}

// Application workflow states.
const (
	AppDraft              State = "draft"
	AppSubmitted          State = "submitted"
	AppIncomplete         State = "incomplete"
	AppInReview           State = "in_review"
	AppRevisionRequested  State = "revision_requested"
	AppApproved           State = "approved"
	AppDenied             State = "denied"
	AppAbandoned          State = "abandoned"
	AppCommitmentSent     State = "commitment_sent"
	AppCommitmentAccepted State = "commitment_accepted"
	AppCommitmentDeclined State = "commitment_declined"
	AppCounterOfferMade   State = "counter_offer_made"
	AppDocumentsSent      State = "documents_sent"
	AppPartiallyExecuted  State = "partially_executed"
	AppFullyExecuted      State = "fully_executed"
	AppDocumentsExpired   State = "documents_expired"
	AppQCReview           State = "qc_review"
	AppQCApproved         State = "qc_approved"
	AppQCRejected         State = "qc_rejected"
	AppReadyToFund        State = "ready_to_fund"
	AppFunded             State = "funded"
)

// Document package workflow states.
const (
	DocDraft           State = "draft"
	DocSent            State = "sent"
	DocPartiallySigned State = "partially_signed"
	DocCompleted       State = "completed"
	DocExpired         State = "expired"
	DocCancelled       State = "cancelled"
)

// Funding request workflow states.
const (
	FundingPending   State = "pending"
	FundingApproved  State = "approved"
	FundingRejected  State = "rejected"
	FundingCancelled State = "cancelled"
	FundingDisbursed State = "disbursed"
)

// Actor roles referenced by state tables.
const (
	RoleUnderwriter    = "underwriter"
	RoleQCAnalyst      = "qc_analyst"
	RoleFundingManager = "funding_manager"
)
