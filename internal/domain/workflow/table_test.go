package workflow

import (
	"testing"
	"time"
)

func TestTableBuilder_Build(t *testing.T) {
	table := NewTableBuilder(TypeFunding, FundingPending).
		Permit(FundingPending, FundingApproved, FundingRejected).
		Permit(FundingApproved, FundingDisbursed).
		Terminal(FundingDisbursed, FundingRejected).
		RequireRole(FundingApproved, RoleFundingManager).
		SLA(FundingPending, 24, "decision").
		OnEntry(FundingPending, TaskFundingReview, "review").
		AutoAdvance(FundingPending, FundingApproved, time.Hour, "auto").
		Event("funding_disbursed", FundingDisbursed, FundingApproved).
		Build()

	if !table.CanTransition(FundingPending, FundingApproved) {
		t.Error("expected pending -> approved to be legal")
	}
	if table.CanTransition(FundingPending, FundingDisbursed) {
		t.Error("expected pending -> disbursed to be illegal")
	}
	if !table.IsTerminal(FundingDisbursed) {
		t.Error("expected disbursed to be terminal")
	}
	if table.IsTerminal(FundingPending) {
		t.Error("expected pending to be non-terminal")
	}

	roles, restricted := table.PermittedRoles(FundingApproved)
	if !restricted || !roles[RoleFundingManager] {
		t.Error("expected approved to require funding_manager")
	}
	if _, restricted := table.PermittedRoles(FundingRejected); restricted {
		t.Error("expected rejected to carry no role restriction")
	}

	def, ok := table.SLA(FundingPending)
	if !ok || def.Hours != 24 {
		t.Errorf("SLA(pending) = %+v, %v, want 24h", def, ok)
	}

	if actions := table.RequiredActions(FundingPending); len(actions) != 1 || actions[0].Kind != TaskFundingReview {
		t.Errorf("RequiredActions(pending) = %+v", actions)
	}

	rule, ok := table.AutoRule(FundingPending)
	if !ok || rule.To != FundingApproved || rule.Delay != time.Hour {
		t.Errorf("AutoRule(pending) = %+v, %v", rule, ok)
	}

	name, ok := table.ResolveEvent(FundingApproved, FundingDisbursed)
	if !ok || name != "funding_disbursed" {
		t.Errorf("ResolveEvent(approved, disbursed) = %q, %v", name, ok)
	}
	if _, ok := table.ResolveEvent(FundingPending, FundingDisbursed); ok {
		t.Error("expected no event for pending -> disbursed")
	}
}

func TestTableBuilder_PanicsOnTerminalInitial(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for terminal initial state")
		}
	}()
	NewTableBuilder(TypeFunding, FundingPending).
		Terminal(FundingPending).
		Build()
}

func TestTableBuilder_PanicsOnTerminalOutgoing(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for terminal state with outgoing edges")
		}
	}()
	NewTableBuilder(TypeFunding, FundingPending).
		Permit(FundingDisbursed, FundingPending).
		Terminal(FundingDisbursed).
		Build()
}

func TestTableBuilder_PanicsOnIllegalAutoRule(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for auto rule over a missing edge")
		}
	}()
	NewTableBuilder(TypeFunding, FundingPending).
		Permit(FundingPending, FundingApproved).
		AutoAdvance(FundingPending, FundingDisbursed, time.Hour, "bad").
		Build()
}

func TestTables_Get(t *testing.T) {
	tables := LendingTables()

	for _, workflowType := range []Type{TypeApplication, TypeDocument, TypeFunding} {
		table, err := tables.Get(workflowType)
		if err != nil {
			t.Fatalf("Get(%s) error: %v", workflowType, err)
		}
		if table.WorkflowType() != workflowType {
			t.Errorf("Get(%s).WorkflowType() = %s", workflowType, table.WorkflowType())
		}
	}

	if _, err := tables.Get(Type("invoice")); err == nil {
		t.Error("expected error for unknown workflow type")
	}
}
