// Package refcache memoizes one metadata-only reference per model name.
// A reference answers Model, Table and KeyField without linking or running
// initialization, so building one never recurses into other models.
package refcache

import (
	"sync"
	"sync/atomic"
)

// Ref is the metadata surface of a model reference
type Ref interface {
	Model() string
	Table() string
	KeyField() string
}

// Builder constructs the reference for a model
type Builder func(model string) (Ref, error)

// Cache maps model names to their reference. Entries are never evicted.
type Cache struct {
	mu    sync.RWMutex
	refs  map[string]Ref
	built atomic.Int64
}

// New creates an empty cache
func New() *Cache {
	return &Cache{refs: make(map[string]Ref)}
}

var shared = New()

// Shared returns the process-wide cache
func Shared() *Cache {
	return shared
}

// Get returns the cached reference for model, building it on first use.
// Concurrent first uses may each build a candidate; the first stored one
// wins and every caller gets that same value.
func (c *Cache) Get(model string, build Builder) (Ref, error) {
	c.mu.RLock()
	ref, ok := c.refs[model]
	c.mu.RUnlock()
	if ok {
		return ref, nil
	}

	candidate, err := build(model)
	if err != nil {
		return nil, err
	}
	c.built.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ref, ok := c.refs[model]; ok {
		return ref, nil
	}
	c.refs[model] = candidate
	return candidate, nil
}

// Has reports whether a reference for model is cached
func (c *Cache) Has(model string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.refs[model]
	return ok
}

// Len returns the number of cached references
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.refs)
}

// Constructed returns how many candidates were built, including ones
// discarded after losing a race
func (c *Cache) Constructed() int64 {
	return c.built.Load()
}
