package lifecycle

import (
	"context"
	"sync"
)

// Chain is an ordered, short-circuiting sequence of guards. Order is
// significant and caller-controlled.
//
// Mutators replace the underlying slice wholesale (copy-on-write), so an
// in-flight Evaluate always iterates the snapshot it started with even if
// guards are added, removed or reordered concurrently.
type Chain struct {
	mu     sync.RWMutex
	guards []Guard
}

// NewChain creates a chain evaluating the given guards in order.
func NewChain(guards ...Guard) (*Chain, error) {
	c := &Chain{}
	for _, g := range guards {
		if g == nil {
			return nil, ErrNilGuard
		}
	}
	c.guards = append([]Guard(nil), guards...)
	return c, nil
}

// MustNewChain is like NewChain but panics on a nil guard, following the
// fail-fast pattern for configuration-time wiring.
func MustNewChain(guards ...Guard) *Chain {
	c, err := NewChain(guards...)
	if err != nil {
		panic(err)
	}
	return c
}

// Evaluate runs the guards in registration order against the pending
// transition. It stops at the first denial and returns it; later guards are
// never evaluated and must not be relied upon for side effects. A nil
// return means every guard approved. An empty chain always approves.
func (c *Chain) Evaluate(ctx context.Context, tc Context) *GuardDeniedError {
	c.mu.RLock()
	snapshot := c.guards
	c.mu.RUnlock()

	for _, g := range snapshot {
		if d := g.Evaluate(ctx, tc); !d.Approved() {
			return &GuardDeniedError{Guard: g.Name(), Reason: d.Reason()}
		}
	}
	return nil
}

// Append adds a guard to the end of the chain.
func (c *Chain) Append(g Guard) error {
	if g == nil {
		return ErrNilGuard
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Guard, len(c.guards), len(c.guards)+1)
	copy(next, c.guards)
	c.guards = append(next, g)
	return nil
}

// InsertAt adds a guard at an explicit position; position len(chain) is
// equivalent to Append.
func (c *Chain) InsertAt(position int, g Guard) error {
	if g == nil {
		return ErrNilGuard
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if position < 0 || position > len(c.guards) {
		return &GuardPositionError{Position: position, Length: len(c.guards)}
	}

	next := make([]Guard, 0, len(c.guards)+1)
	next = append(next, c.guards[:position]...)
	next = append(next, g)
	next = append(next, c.guards[position:]...)
	c.guards = next
	return nil
}

// Remove deletes the first guard with the given name and reports whether
// one was found.
func (c *Chain) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, g := range c.guards {
		if g.Name() == name {
			next := make([]Guard, 0, len(c.guards)-1)
			next = append(next, c.guards[:i]...)
			next = append(next, c.guards[i+1:]...)
			c.guards = next
			return true
		}
	}
	return false
}

// Guards returns a copy of the current guard sequence.
func (c *Chain) Guards() []Guard {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]Guard(nil), c.guards...)
}

// Len returns the number of guards in the chain.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.guards)
}
