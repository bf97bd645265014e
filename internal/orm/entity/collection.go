package entity

import (
	"context"
	"fmt"

	"github.com/conduit-lang/activerow/internal/orm/executor"
)

// Collection is a lazy, filtered set of entities of one model. Nothing is
// fetched until All, First, Rows or Count is called.
type Collection struct {
	mgr    *Manager
	model  string
	table  string
	filter map[string]interface{}
	limit  int
	cfg    entityConfig
	empty  bool
}

func newCollection(m *Manager, model, table string, filter map[string]interface{}, cfg entityConfig) *Collection {
	return &Collection{
		mgr:    m,
		model:  model,
		table:  table,
		filter: executor.CopyRow(filter),
		cfg:    cfg,
	}
}

// emptyCollection matches nothing without asking the executor
func emptyCollection(m *Manager, model, table string, cfg entityConfig) *Collection {
	c := newCollection(m, model, table, nil, cfg)
	c.empty = true
	return c
}

// Model returns the target model name
func (c *Collection) Model() string { return c.model }

// Table returns the target table
func (c *Collection) Table() string { return c.table }

// Limit returns the row limit, zero for unbounded
func (c *Collection) Limit() int { return c.limit }

// Filter returns a copy of the filter
func (c *Collection) Filter() map[string]interface{} {
	return executor.CopyRow(c.filter)
}

// IsEmpty reports whether the collection is known to match nothing
// without querying
func (c *Collection) IsEmpty() bool { return c.empty }

// Where returns a collection further filtered by field == value
func (c *Collection) Where(field string, value interface{}) *Collection {
	out := *c
	out.filter = executor.CopyRow(c.filter)
	if out.filter == nil {
		out.filter = make(map[string]interface{})
	}
	out.filter[field] = value
	return &out
}

// Take returns a collection limited to n rows
func (c *Collection) Take(n int) *Collection {
	out := *c
	out.filter = executor.CopyRow(c.filter)
	out.limit = n
	return &out
}

// Rows fetches the matching rows without building entities
func (c *Collection) Rows(ctx context.Context) ([]map[string]interface{}, error) {
	if c.empty {
		return nil, nil
	}
	if c.mgr.exec == nil {
		return nil, &ConfigurationError{Model: c.model, Err: ErrNoExecutor}
	}
	rows, err := c.mgr.exec.Select(ctx, c.table, c.filter, c.limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.model, err)
	}
	return rows, nil
}

// All fetches the matching entities
func (c *Collection) All(ctx context.Context) ([]*Entity, error) {
	rows, err := c.Rows(ctx)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	sm, err := c.mgr.registry.Lookup(c.model)
	if err != nil {
		return nil, err
	}

	out := make([]*Entity, 0, len(rows))
	for _, row := range rows {
		e, err := c.mgr.load(sm, row, c.cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// First fetches the first matching entity or an error wrapping
// executor.ErrNotFound
func (c *Collection) First(ctx context.Context) (*Entity, error) {
	all, err := c.Take(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: %w", c.model, executor.ErrNotFound)
	}
	return all[0], nil
}

// Count returns the number of matching rows
func (c *Collection) Count(ctx context.Context) (int, error) {
	rows, err := c.Rows(ctx)
	return len(rows), err
}
