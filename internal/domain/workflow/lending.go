package workflow

import "time"

// Task kinds created by required actions.
const (
	TaskReviewRequired     = "review_required"
	TaskUnderwritingReview = "underwriting_review"
	TaskQCCheck            = "qc_check"
	TaskFundingPreparation = "funding_preparation"
	TaskSignatureFollowup  = "signature_followup"
	TaskFundingReview      = "funding_review"
)

// Named transition events.
const (
	EventApplicationSubmitted    = "application_submitted"
	EventApplicationApproved     = "application_approved"
	EventApplicationDenied       = "application_denied"
	EventCommitmentSent          = "commitment_sent"
	EventDocumentsFullyExecuted  = "documents_fully_executed"
	EventApplicationFunded       = "application_funded"
	EventDocumentsCompleted      = "documents_completed"
	EventFundingDisbursed        = "funding_disbursed"
)

// SignatureWindow is how long a dispatched document package may wait for
// signatures before it expires.
const SignatureWindow = 720 * time.Hour

// LendingTables builds the state tables for the three lending workflows.
func LendingTables() Tables {
	return Tables{
		TypeApplication: applicationTable(),
		TypeDocument:    documentTable(),
		TypeFunding:     fundingTable(),
	}
}

func applicationTable() *Table {
	return NewTableBuilder(TypeApplication, AppDraft).
		Permit(AppDraft, AppSubmitted, AppAbandoned).
		Permit(AppSubmitted, AppInReview, AppIncomplete, AppAbandoned).
		Permit(AppIncomplete, AppSubmitted, AppAbandoned).
		Permit(AppInReview, AppApproved, AppDenied, AppRevisionRequested).
		Permit(AppRevisionRequested, AppSubmitted, AppAbandoned).
		Permit(AppApproved, AppCommitmentSent).
		Permit(AppCommitmentSent, AppCommitmentAccepted, AppCommitmentDeclined, AppCounterOfferMade).
		Permit(AppCounterOfferMade, AppCommitmentAccepted, AppCommitmentDeclined, AppAbandoned).
		Permit(AppCommitmentAccepted, AppDocumentsSent).
		Permit(AppDocumentsSent, AppPartiallyExecuted, AppDocumentsExpired).
		Permit(AppPartiallyExecuted, AppFullyExecuted, AppDocumentsExpired).
		Permit(AppFullyExecuted, AppQCReview).
		Permit(AppQCReview, AppQCApproved, AppQCRejected).
		Permit(AppQCRejected, AppQCReview).
		Permit(AppQCApproved, AppReadyToFund).
		Permit(AppReadyToFund, AppFunded).
		Terminal(AppFunded, AppDenied, AppAbandoned, AppCommitmentDeclined, AppDocumentsExpired).
		RequireRole(AppApproved, RoleUnderwriter).
		RequireRole(AppDenied, RoleUnderwriter).
		RequireRole(AppQCApproved, RoleQCAnalyst).
		RequireRole(AppQCRejected, RoleQCAnalyst).
		SLA(AppSubmitted, 24, "initial completeness review").
		SLA(AppInReview, 72, "underwriting decision").
		SLA(AppQCReview, 48, "quality control review").
		SLA(AppReadyToFund, 24, "funding execution").
		OnEntry(AppSubmitted, TaskReviewRequired, "Review application for completeness").
		OnEntry(AppInReview, TaskUnderwritingReview, "Underwrite the application").
		OnEntry(AppQCReview, TaskQCCheck, "Run quality control checks on executed documents").
		OnEntry(AppReadyToFund, TaskFundingPreparation, "Prepare disbursement").
		AutoAdvance(AppApproved, AppCommitmentSent, time.Hour, "commitment letter dispatch").
		AutoAdvance(AppCommitmentAccepted, AppDocumentsSent, time.Hour, "document package dispatch").
		AutoAdvance(AppQCApproved, AppReadyToFund, time.Hour, "funding queue").
		Event(EventApplicationSubmitted, AppSubmitted, AppDraft, AppIncomplete, AppRevisionRequested).
		Event(EventApplicationApproved, AppApproved, AppInReview).
		Event(EventApplicationDenied, AppDenied, AppInReview).
		Event(EventCommitmentSent, AppCommitmentSent, AppApproved).
		Event(EventDocumentsFullyExecuted, AppFullyExecuted, AppPartiallyExecuted).
		Event(EventApplicationFunded, AppFunded, AppReadyToFund).
		Build()
}

func documentTable() *Table {
	return NewTableBuilder(TypeDocument, DocDraft).
		Permit(DocDraft, DocSent, DocCancelled).
		Permit(DocSent, DocPartiallySigned, DocCompleted, DocExpired, DocCancelled).
		Permit(DocPartiallySigned, DocCompleted, DocExpired).
		Terminal(DocCompleted, DocExpired, DocCancelled).
		SLA(DocSent, 120, "collect first signature").
		SLA(DocPartiallySigned, 120, "collect remaining signatures").
		OnEntry(DocSent, TaskSignatureFollowup, "Follow up on outstanding signatures").
		AutoAdvance(DocSent, DocExpired, SignatureWindow, "signature window elapsed").
		Event(EventDocumentsCompleted, DocCompleted, DocSent, DocPartiallySigned).
		Build()
}

func fundingTable() *Table {
	return NewTableBuilder(TypeFunding, FundingPending).
		Permit(FundingPending, FundingApproved, FundingRejected, FundingCancelled).
		Permit(FundingApproved, FundingDisbursed, FundingCancelled).
		Terminal(FundingDisbursed, FundingRejected, FundingCancelled).
		RequireRole(FundingApproved, RoleFundingManager).
		RequireRole(FundingDisbursed, RoleFundingManager).
		SLA(FundingPending, 24, "funding approval decision").
		SLA(FundingApproved, 48, "disbursement").
		OnEntry(FundingPending, TaskFundingReview, "Review funding request and stipulations").
		Event(EventFundingDisbursed, FundingDisbursed, FundingApproved).
		Build()
}
