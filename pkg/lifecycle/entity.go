package lifecycle

import (
	"sync"

	"github.com/google/uuid"
)

// Entity holds exactly one current state at a time. State is mutated only
// by a successful engine commit; there is no public setter. Every entity is
// created with an explicit initial state.
//
// The version counter implements the per-entity compare-and-set the engine
// uses to serialize read-validate-commit sequences: a request that loses a
// race observes the other commit's version and is re-evaluated or rejected,
// never silently overwritten.
type Entity struct {
	id   uuid.UUID
	kind Kind

	mu      sync.Mutex
	state   State
	version uint64
}

// NewEntity creates an entity of the given kind in an explicit initial state.
func NewEntity(kind Kind, initial State) (*Entity, error) {
	if kind == "" || initial == "" {
		return nil, ErrInvalidEntity
	}
	return &Entity{
		id:    uuid.New(),
		kind:  kind,
		state: initial,
	}, nil
}

// MustNewEntity is like NewEntity but panics on invalid arguments.
func MustNewEntity(kind Kind, initial State) *Entity {
	e, err := NewEntity(kind, initial)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Entity) ID() uuid.UUID {
	return e.id
}

func (e *Entity) Kind() Kind {
	return e.kind
}

// CurrentState returns the entity's current state.
func (e *Entity) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// snapshot returns the current state together with the version it was read
// at, for a later compare-and-set commit.
func (e *Entity) snapshot() (State, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.version
}

// commit atomically sets the state if no other commit happened since the
// snapshot was taken. Reports whether the commit won.
func (e *Entity) commit(expected uint64, to State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.version != expected {
		return false
	}
	e.state = to
	e.version++
	return true
}
