package hooks

import (
	"context"

	"github.com/conduit-lang/activerow/internal/orm/tracking"
)

// Context wraps the standard context with the entity a lifecycle hook
// runs for
type Context struct {
	context.Context
	model   string
	table   string
	key     interface{}
	changes []tracking.FieldChange
}

// NewContext creates a new hook context
func NewContext(ctx context.Context, model, table string, key interface{}) *Context {
	return &Context{
		Context: ctx,
		model:   model,
		table:   table,
		key:     key,
	}
}

// WithChanges returns a copy of the context carrying the pending changes
func (c *Context) WithChanges(changes []tracking.FieldChange) *Context {
	cp := *c
	cp.changes = changes
	return &cp
}

// Model returns the entity type name
func (c *Context) Model() string {
	return c.model
}

// Table returns the storage table name
func (c *Context) Table() string {
	return c.table
}

// Key returns the identity value; nil for entities not yet inserted
func (c *Context) Key() interface{} {
	return c.key
}

// Changes returns the pending field changes the flush is writing
func (c *Context) Changes() []tracking.FieldChange {
	return c.changes
}

// Changed reports whether field is among the pending changes
func (c *Context) Changed(field string) bool {
	for _, ch := range c.changes {
		if ch.Field == field {
			return true
		}
	}
	return false
}
