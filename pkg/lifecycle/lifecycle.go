package lifecycle

import (
	"context"

	"github.com/google/uuid"
)

// Kind identifies an entity kind. Each kind owns its own closed set of
// states, actions and transition rules.
type Kind string

func (k Kind) String() string {
	return string(k)
}

// State represents one lifecycle stage of an entity.
type State string

func (s State) String() string {
	return string(s)
}

// Action names a request to move an entity from its current state to another.
type Action string

func (a Action) String() string {
	return string(a)
}

// Decision is the outcome of a single guard evaluation.
type Decision struct {
	approved bool
	reason   string
}

// Approve allows the pending transition.
func Approve() Decision {
	return Decision{approved: true}
}

// Deny vetoes the pending transition with a human-readable reason. The
// reason is carried as opaque data; translating it into user-facing copy
// is the host's responsibility.
func Deny(reason string) Decision {
	return Decision{reason: reason}
}

func (d Decision) Approved() bool {
	return d.approved
}

func (d Decision) Reason() string {
	return d.reason
}

// Guard is a single-responsibility predicate over a pending transition.
// Guards must not mutate the Context or shared state during evaluation, and
// must not rely on evaluation order relative to other guards except through
// Context values they read themselves.
type Guard interface {
	Name() string
	Evaluate(ctx context.Context, tc Context) Decision
}

type guardFunc struct {
	name string
	fn   func(ctx context.Context, tc Context) Decision
}

func (g guardFunc) Name() string {
	return g.name
}

func (g guardFunc) Evaluate(ctx context.Context, tc Context) Decision {
	return g.fn(ctx, tc)
}

// GuardFunc adapts a plain function into a named Guard.
func GuardFunc(name string, fn func(ctx context.Context, tc Context) Decision) Guard {
	return guardFunc{name: name, fn: fn}
}

// Context is the read-only bundle describing one pending transition: the
// entity's identity, the requested action, and caller-supplied payload
// values. It is owned by the caller for the duration of one evaluation and
// never mutated by guards or the engine.
type Context struct {
	entityID uuid.UUID
	kind     Kind
	action   Action
	values   map[string]any
}

// NewContext assembles a transition context. The values map is copied so
// later caller mutations cannot leak into an in-flight evaluation.
func NewContext(entityID uuid.UUID, kind Kind, action Action, values map[string]any) Context {
	var copied map[string]any
	if len(values) > 0 {
		copied = make(map[string]any, len(values))
		for k, v := range values {
			copied[k] = v
		}
	}
	return Context{
		entityID: entityID,
		kind:     kind,
		action:   action,
		values:   copied,
	}
}

func (c Context) EntityID() uuid.UUID {
	return c.entityID
}

func (c Context) Kind() Kind {
	return c.kind
}

func (c Context) Action() Action {
	return c.action
}

// Value returns a payload value by key.
func (c Context) Value(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// StringValue returns a payload value as a string, or "" when the key is
// absent or holds a non-string value.
func (c Context) StringValue(key string) string {
	if v, ok := c.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
