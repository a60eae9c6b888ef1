package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/storepulse/internal/domain"
)

// Collection is an insertion-ordered set of entities keyed by ID.
type Collection[T any] struct {
	name   string
	clock  clockwork.Clock
	idOf   func(T) string
	assign func(T, time.Time) T

	mu    sync.RWMutex
	items []T
}

// NewCollection creates an empty collection.
// idOf extracts the identity of an entity.
// assign fills server-assigned fields (generated ID, timestamps) before the entity is stored.
func NewCollection[T any](name string, clock clockwork.Clock, idOf func(T) string, assign func(T, time.Time) T) *Collection[T] {
	return &Collection[T]{
		name:   name,
		clock:  clock,
		idOf:   idOf,
		assign: assign,
	}
}

// Upsert replaces the entity with the same ID or appends it, and returns the stored value.
func (c *Collection[T]) Upsert(entity T) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := c.assign(entity, c.clock.Now())
	id := c.idOf(stored)

	if i := c.indexOf(id); i >= 0 {
		c.items[i] = stored
		return stored
	}
	c.items = append(c.items, stored)
	return stored
}

// Remove deletes the entity with the given ID and returns it.
func (c *Collection[T]) Remove(id string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", c.name, id, domain.ErrNotFound)
	}

	removed := c.items[i]
	c.items = append(c.items[:i], c.items[i+1:]...)
	return removed, nil
}

func (c *Collection[T]) Get(id string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexOf(id)
	if i < 0 {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", c.name, id, domain.ErrNotFound)
	}
	return c.items[i], nil
}

// List returns the entities matching match, or all of them when match is nil.
func (c *Collection[T]) List(match func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]T, 0, len(c.items))
	for _, item := range c.items {
		if match == nil || match(item) {
			result = append(result, item)
		}
	}
	return result
}

// Clear empties the collection and returns how many entities were removed.
func (c *Collection[T]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	c.items = nil
	return n
}

func (c *Collection[T]) Snapshot() []T {
	return c.List(nil)
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// indexOf must be called with mu held.
func (c *Collection[T]) indexOf(id string) int {
	for i, item := range c.items {
		if c.idOf(item) == id {
			return i
		}
	}
	return -1
}
