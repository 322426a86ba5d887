package lifecycle

import "sync"

// Rule defines one legal transition: requesting Action while in From moves
// the entity to To. Pure data, no behavior.
type Rule struct {
	Kind   Kind
	From   State
	Action Action
	To     State
}

// Table is the transition table for one entity kind: a partial function
// (from state, action) -> to state. A pair absent from the table means the
// action is structurally illegal from that state.
//
// Uses a nested map for O(1) lookups: [fromState][action]toState.
type Table struct {
	mu    sync.RWMutex
	rules map[State]map[Action]State
}

// NewTable creates an empty transition table.
func NewTable() *Table {
	return &Table{rules: make(map[State]map[Action]State)}
}

// Add registers a transition rule. Registering a second rule for an
// already-mapped (from, action) pair is a configuration error reported
// here, at build time, never at request time.
func (t *Table) Add(kind Kind, from State, action Action, to State) error {
	if kind == "" || from == "" || action == "" || to == "" {
		return ErrInvalidRule
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	actions, ok := t.rules[from]
	if !ok {
		actions = make(map[Action]State)
		t.rules[from] = actions
	}
	if _, exists := actions[action]; exists {
		return &DuplicateRuleError{Kind: kind, From: from, Action: action}
	}

	actions[action] = to
	return nil
}

// Lookup reports the resulting state for (from, action), or false when no
// rule exists. Deterministic and side-effect free; absence is not an error.
func (t *Table) Lookup(from State, action Action) (State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	to, ok := t.rules[from][action]
	return to, ok
}

// Terminal reports whether a state has no outgoing rules for any action.
// Every request from a terminal state is structurally illegal.
func (t *Table) Terminal(state State) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.rules[state]) == 0
}

// Len returns the number of registered rules.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, actions := range t.rules {
		n += len(actions)
	}
	return n
}
