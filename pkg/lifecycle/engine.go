package lifecycle

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Hook observes a committed transition. Hooks run after the state change in
// registration order; a hook failure or panic is logged and can never roll
// back the commit.
type Hook func(ctx context.Context, tc Context, from, to State)

// Engine validates and commits lifecycle transitions. It owns the
// per-kind transition tables and guard chains as shared, read-only request
// time configuration; it holds no per-entity state, so one engine serves
// any number of entities concurrently.
type Engine struct {
	mu     sync.RWMutex
	tables map[Kind]*Table
	chains map[Kind]map[Action]*Chain
	global map[Kind]*Chain
	hooks  []Hook

	log            *slog.Logger
	retries        int
	hookPanicStack bool
}

// New creates an engine configured by the given options.
func New(opts ...Option) (*Engine, error) {
	en := &Engine{
		tables: make(map[Kind]*Table),
		chains: make(map[Kind]map[Action]*Chain),
		global: make(map[Kind]*Chain),
		log:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(en); err != nil {
			return nil, err
		}
	}

	return en, nil
}

// MustNew is like New but panics if any option fails, following the
// fail-fast pattern for startup wiring.
func MustNew(opts ...Option) *Engine {
	en, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return en
}

// RegisterTransition adds a transition rule for an entity kind. A duplicate
// (from, action) pair for the same kind is a configuration error.
func (en *Engine) RegisterTransition(kind Kind, from State, action Action, to State) error {
	if kind == "" || from == "" || action == "" || to == "" {
		return ErrInvalidRule
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	table, ok := en.tables[kind]
	if !ok {
		table = NewTable()
		en.tables[kind] = table
	}
	return table.Add(kind, from, action, to)
}

// RegisterGuard appends a guard to the chain bound to (kind, action),
// creating the chain if needed.
func (en *Engine) RegisterGuard(kind Kind, action Action, g Guard) error {
	chain, err := en.chainFor(kind, action)
	if err != nil {
		return err
	}
	return chain.Append(g)
}

// RegisterGuardAt inserts a guard at an explicit position in the chain
// bound to (kind, action).
func (en *Engine) RegisterGuardAt(kind Kind, action Action, g Guard, position int) error {
	chain, err := en.chainFor(kind, action)
	if err != nil {
		return err
	}
	return chain.InsertAt(position, g)
}

// RegisterGlobalGuard appends a guard to the kind-wide chain evaluated
// before any per-action chain, for validators shared by every action of a
// kind (always check auth first, for example).
func (en *Engine) RegisterGlobalGuard(kind Kind, g Guard) error {
	if kind == "" {
		return ErrInvalidRule
	}

	en.mu.Lock()
	chain, ok := en.global[kind]
	if !ok {
		chain = MustNewChain()
		en.global[kind] = chain
	}
	en.mu.Unlock()

	return chain.Append(g)
}

// RegisterHook adds a post-commit hook.
func (en *Engine) RegisterHook(h Hook) {
	if h == nil {
		return
	}
	en.mu.Lock()
	defer en.mu.Unlock()
	en.hooks = append(en.hooks, h)
}

func (en *Engine) chainFor(kind Kind, action Action) (*Chain, error) {
	if kind == "" || action == "" {
		return nil, ErrInvalidRule
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	actions, ok := en.chains[kind]
	if !ok {
		actions = make(map[Action]*Chain)
		en.chains[kind] = actions
	}
	chain, ok := actions[action]
	if !ok {
		chain = MustNewChain()
		actions[action] = chain
	}
	return chain, nil
}

// Request validates and, if approved, commits a transition on the entity.
//
// Structural legality is checked first against the transition table; a move
// absent from the table is rejected before any guard runs, with an error
// kind distinguishable from a guard denial. The kind-wide chain runs next,
// then the (kind, action) chain; an unregistered chain is empty and
// approves vacuously. On approval the state change is committed with a
// version-checked compare-and-set; a request that loses a commit race is
// re-evaluated against the observed new state up to the configured retry
// budget, then rejected with a ConflictError.
//
// On success Request returns the new state and runs post-commit hooks.
// Rejections are first-class return values; the engine never panics for
// a domain rejection, and the entity state is left unchanged.
func (en *Engine) Request(ctx context.Context, e *Entity, action Action, tc Context) (State, error) {
	if e == nil {
		return "", ErrNilEntity
	}

	en.mu.RLock()
	table := en.tables[e.kind]
	global := en.global[e.kind]
	chain := en.chains[e.kind][action]
	retries := en.retries
	en.mu.RUnlock()

	for attempt := 0; ; attempt++ {
		from, version := e.snapshot()

		var to State
		var ok bool
		if table != nil {
			to, ok = table.Lookup(from, action)
		}
		if !ok {
			return "", &StructuralError{Kind: e.kind, From: from, Action: action}
		}

		if global != nil {
			if denied := global.Evaluate(ctx, tc); denied != nil {
				return "", denied
			}
		}
		if chain != nil {
			if denied := chain.Evaluate(ctx, tc); denied != nil {
				return "", denied
			}
		}

		if e.commit(version, to) {
			en.runHooks(ctx, tc, from, to)
			return to, nil
		}

		if attempt >= retries {
			return "", &ConflictError{Kind: e.kind, Action: action, Attempts: attempt + 1}
		}
	}
}

// CanRequest reports whether a transition would currently be committed,
// without committing it. Like the commit path it is a fresh, independent
// evaluation; a later Request may still lose a race or be denied.
func (en *Engine) CanRequest(ctx context.Context, e *Entity, action Action, tc Context) bool {
	if e == nil {
		return false
	}

	en.mu.RLock()
	table := en.tables[e.kind]
	global := en.global[e.kind]
	chain := en.chains[e.kind][action]
	en.mu.RUnlock()

	if table == nil {
		return false
	}
	if _, ok := table.Lookup(e.CurrentState(), action); !ok {
		return false
	}
	if global != nil && global.Evaluate(ctx, tc) != nil {
		return false
	}
	if chain != nil && chain.Evaluate(ctx, tc) != nil {
		return false
	}
	return true
}

func (en *Engine) runHooks(ctx context.Context, tc Context, from, to State) {
	en.mu.RLock()
	hooks := en.hooks
	en.mu.RUnlock()

	for _, h := range hooks {
		en.runHook(ctx, h, tc, from, to)
	}
}

func (en *Engine) runHook(ctx context.Context, h Hook, tc Context, from, to State) {
	defer func() {
		if r := recover(); r != nil {
			attrs := []any{
				slog.String("kind", tc.Kind().String()),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
				slog.Any("panic", r),
			}
			if en.hookPanicStack {
				attrs = append(attrs, slog.String("stack", string(debug.Stack())))
			}
			en.log.ErrorContext(ctx, "post-commit hook panicked", attrs...)
		}
	}()
	h(ctx, tc, from, to)
}
