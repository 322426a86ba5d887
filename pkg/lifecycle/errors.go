package lifecycle

import (
	"errors"
	"fmt"
)

// Configuration errors, returned from registration APIs only. They indicate
// a wiring mistake and are appropriate to treat as fatal at startup; they
// are never produced while handling a transition request.
var (
	ErrInvalidRule   = errors.New("invalid rule: kind, states and action must be non-empty")
	ErrNilGuard      = errors.New("guard cannot be nil")
	ErrNilChain      = errors.New("chain cannot be nil")
	ErrNilEntity     = errors.New("entity cannot be nil")
	ErrInvalidEntity = errors.New("invalid entity: kind and initial state must be non-empty")
	ErrInvalidConfig = errors.New("invalid config: conflict retries must be non-negative")
)

// DuplicateRuleError indicates a second registration for an already-mapped
// (from state, action) pair. The transition table is a partial function and
// must never be ambiguous.
type DuplicateRuleError struct {
	Kind   Kind
	From   State
	Action Action
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("duplicate transition rule for kind '%s': state '%s' already maps action '%s'", e.Kind, e.From, e.Action)
}

// StructuralError indicates the requested action has no rule from the
// entity's current state. It is distinguishable from a guard denial: no
// semantic validation ran at all.
type StructuralError struct {
	Kind   Kind
	From   State
	Action Action
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("no transition from state '%s' for action '%s' (kind '%s')", e.From, e.Action, e.Kind)
}

// GuardDeniedError indicates a specific, named guard vetoed the transition.
// Reason is opaque text for the host to surface; the caller may correct
// input and retry.
type GuardDeniedError struct {
	Guard  string
	Reason string
}

func (e *GuardDeniedError) Error() string {
	return fmt.Sprintf("transition denied by guard '%s': %s", e.Guard, e.Reason)
}

// ConflictError indicates a concurrent request committed first and the
// retry budget ran out. The caller should re-read the entity state and
// retry a bounded number of times.
type ConflictError struct {
	Kind     Kind
	Action   Action
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent transition conflict for kind '%s' action '%s' after %d attempt(s)", e.Kind, e.Action, e.Attempts)
}

// GuardPositionError indicates an explicit guard index outside the chain bounds.
type GuardPositionError struct {
	Position int
	Length   int
}

func (e *GuardPositionError) Error() string {
	return fmt.Sprintf("guard position %d out of range [0, %d]", e.Position, e.Length)
}

func IsDuplicateRuleError(err error) bool {
	var e *DuplicateRuleError
	return errors.As(err, &e)
}

func IsStructuralError(err error) bool {
	var e *StructuralError
	return errors.As(err, &e)
}

func IsGuardDeniedError(err error) bool {
	var e *GuardDeniedError
	return errors.As(err, &e)
}

func IsConflictError(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}
