package workflow

import (
	"fmt"
	"time"
)

// SLADefinition is the maximum allowed dwell time in a state.
type SLADefinition struct {
	Hours       int
	Description string
}

// RequiredAction is a task template consulted on entry to a state.
type RequiredAction struct {
	Kind        string
	Description string
}

// AutoRule schedules an unconditional follow-up transition on entry to a state.
type AutoRule struct {
	To     State
	Delay  time.Duration
	Reason string
}

// event labels a transition for history records and notifications. It matches
// on to-state plus membership of the from-state set.
type event struct {
	name string
	from map[State]bool
	to   State
}

// Table is the immutable transition graph for one workflow type. Construct it
// once at process start through a TableBuilder and share it by reference.
type Table struct {
	workflowType Type
	initial      State
	transitions  map[State]map[State]bool
	terminal     map[State]bool
	permissions  map[State]map[string]bool
	slas         map[State]SLADefinition
	actions      map[State][]RequiredAction
	auto         map[State]AutoRule
	events       []event
}

// TableBuilder assembles a Table. Configuration mistakes panic at build time.
type TableBuilder struct {
	table *Table
}

// NewTableBuilder starts a table for the given workflow type and initial state.
func NewTableBuilder(workflowType Type, initial State) *TableBuilder {
	return &TableBuilder{
		table: &Table{
			workflowType: workflowType,
			initial:      initial,
			transitions:  make(map[State]map[State]bool),
			terminal:     make(map[State]bool),
			permissions:  make(map[State]map[string]bool),
			slas:         make(map[State]SLADefinition),
			actions:      make(map[State][]RequiredAction),
			auto:         make(map[State]AutoRule),
		},
	}
}

// Permit declares legal transitions from a state.
func (b *TableBuilder) Permit(from State, to ...State) *TableBuilder {
	targets, ok := b.table.transitions[from]
	if !ok {
		targets = make(map[State]bool)
		b.table.transitions[from] = targets
	}
	for _, t := range to {
		targets[t] = true
	}
	return b
}

// Terminal marks states as workflow-complete.
func (b *TableBuilder) Terminal(states ...State) *TableBuilder {
	for _, s := range states {
		b.table.terminal[s] = true
	}
	return b
}

// RequireRole restricts who may move an entity into the given state.
func (b *TableBuilder) RequireRole(to State, roles ...string) *TableBuilder {
	allowed, ok := b.table.permissions[to]
	if !ok {
		allowed = make(map[string]bool)
		b.table.permissions[to] = allowed
	}
	for _, r := range roles {
		allowed[r] = true
	}
	return b
}

// SLA attaches a dwell-time window to a state.
func (b *TableBuilder) SLA(state State, hours int, description string) *TableBuilder {
	b.table.slas[state] = SLADefinition{Hours: hours, Description: description}
	return b
}

// OnEntry registers a task template created when an entity enters the state.
func (b *TableBuilder) OnEntry(state State, kind, description string) *TableBuilder {
	b.table.actions[state] = append(b.table.actions[state], RequiredAction{Kind: kind, Description: description})
	return b
}

// AutoAdvance schedules an automatic transition on entry to the state.
func (b *TableBuilder) AutoAdvance(state, to State, delay time.Duration, reason string) *TableBuilder {
	b.table.auto[state] = AutoRule{To: to, Delay: delay, Reason: reason}
	return b
}

// Event names a transition for history and notification purposes.
func (b *TableBuilder) Event(name string, to State, from ...State) *TableBuilder {
	fromSet := make(map[State]bool, len(from))
	for _, f := range from {
		fromSet[f] = true
	}
	b.table.events = append(b.table.events, event{name: name, from: fromSet, to: to})
	return b
}

// Build validates and returns the immutable table.
func (b *TableBuilder) Build() *Table {
	t := b.table
	if t.terminal[t.initial] {
		panic(fmt.Sprintf("workflow %s: initial state %s is terminal", t.workflowType, t.initial))
	}
	for s := range t.terminal {
		if len(t.transitions[s]) > 0 {
			panic(fmt.Sprintf("workflow %s: terminal state %s has outgoing transitions", t.workflowType, s))
		}
	}
	for s, rule := range t.auto {
		if !t.transitions[s][rule.To] {
			panic(fmt.Sprintf("workflow %s: automatic transition %s -> %s is not a legal edge", t.workflowType, s, rule.To))
		}
	}
	b.table = nil
	return t
}

// WorkflowType returns the workflow type the table describes.
func (t *Table) WorkflowType() Type {
	return t.workflowType
}

// InitialState returns the state new entities start in.
func (t *Table) InitialState() State {
	return t.initial
}

// AllowedTransitions returns the legal target states from the given state.
// Unknown and terminal states yield an empty slice.
func (t *Table) AllowedTransitions(from State) []State {
	targets := t.transitions[from]
	out := make([]State, 0, len(targets))
	for s := range targets {
		out = append(out, s)
	}
	return out
}

// CanTransition reports whether from -> to is a legal edge.
func (t *Table) CanTransition(from, to State) bool {
	return t.transitions[from][to]
}

// IsTerminal reports whether the state is workflow-complete.
func (t *Table) IsTerminal(s State) bool {
	return t.terminal[s]
}

// PermittedRoles returns the roles allowed to move an entity into the state.
// The second return is false when the state carries no role restriction.
func (t *Table) PermittedRoles(to State) (map[string]bool, bool) {
	roles, ok := t.permissions[to]
	return roles, ok
}

// SLA returns the dwell-time window for the state, if one is defined.
func (t *Table) SLA(s State) (SLADefinition, bool) {
	def, ok := t.slas[s]
	return def, ok
}

// RequiredActions returns the task templates for entry to the state.
func (t *Table) RequiredActions(s State) []RequiredAction {
	return t.actions[s]
}

// AutoRule returns the automatic transition rule for the state, if any.
func (t *Table) AutoRule(s State) (AutoRule, bool) {
	rule, ok := t.auto[s]
	return rule, ok
}

// ResolveEvent returns the named event matching the transition, best-effort.
func (t *Table) ResolveEvent(from, to State) (string, bool) {
	for _, e := range t.events {
		if e.to == to && e.from[from] {
			return e.name, true
		}
	}
	return "", false
}

// Tables maps workflow types to their transition graphs.
type Tables map[Type]*Table

// Get returns the table for the workflow type.
func (ts Tables) Get(workflowType Type) (*Table, error) {
	t, ok := ts[workflowType]
	if !ok {
		return nil, fmt.Errorf("%w: no state table for workflow type %q", ErrNotFound, workflowType)
	}
	return t, nil
}
