package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when the target state is not reachable
	// from the current state per the state table.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrPermissionDenied is returned when the actor's role is not authorized
	// for the target state.
	ErrPermissionDenied = errors.New("actor not permitted for target state")

	// ErrPreconditionFailed is returned when an entity-specific business rule
	// rejected the transition.
	ErrPreconditionFailed = errors.New("transition precondition failed")

	// ErrConcurrentModification is returned when the entity's state changed
	// between validation and commit.
	ErrConcurrentModification = errors.New("entity state changed concurrently")

	// ErrAlreadyTerminal is returned for transitions on entities in a terminal
	// state, and for mutations of tasks in a terminal status.
	ErrAlreadyTerminal = errors.New("already in terminal state")

	// ErrNotFound is returned when a referenced entity, task or schedule does
	// not exist.
	ErrNotFound = errors.New("not found")
)
