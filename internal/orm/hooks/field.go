package hooks

import (
	"context"
	"sort"
)

// Record is the read surface a computed-field getter sees
type Record interface {
	Get(ctx context.Context, field string) (interface{}, error)
	Raw(field string) (interface{}, bool)
	GetModel() string
}

// ValidateFunc checks a candidate value before it is written. Returning a
// *validation.Error records a user-facing failure for the field; any other
// error aborts the write and is returned to the caller.
type ValidateFunc func(value interface{}) error

// GetFunc computes a field value on first read
type GetFunc func(ctx context.Context, r Record) (interface{}, error)

// SetFunc transforms a value before it is stored
type SetFunc func(value interface{}) (interface{}, error)

// Field is the strategy entry for one field. Nil members fall back to the
// default read/write behavior.
type Field struct {
	Validate ValidateFunc
	Get      GetFunc
	Set      SetFunc
}

// Table maps field names to their hooks. It is populated when a model is
// declared and only read afterwards.
type Table struct {
	fields map[string]*Field
}

// NewTable creates an empty hook table
func NewTable() *Table {
	return &Table{fields: make(map[string]*Field)}
}

func (t *Table) entry(field string) *Field {
	f, ok := t.fields[field]
	if !ok {
		f = &Field{}
		t.fields[field] = f
	}
	return f
}

// Validate adds a validate hook for field. Multiple validators run in
// registration order and the first failure wins.
func (t *Table) Validate(field string, fn ValidateFunc) *Table {
	f := t.entry(field)
	prev := f.Validate
	if prev == nil {
		f.Validate = fn
		return t
	}
	f.Validate = func(value interface{}) error {
		if err := prev(value); err != nil {
			return err
		}
		return fn(value)
	}
	return t
}

// Transform adds a set hook for field. Transforms compose in registration
// order, each receiving the previous one's output.
func (t *Table) Transform(field string, fn SetFunc) *Table {
	f := t.entry(field)
	prev := f.Set
	if prev == nil {
		f.Set = fn
		return t
	}
	f.Set = func(value interface{}) (interface{}, error) {
		v, err := prev(value)
		if err != nil {
			return nil, err
		}
		return fn(v)
	}
	return t
}

// Compute sets the get hook for field, replacing any earlier one
func (t *Table) Compute(field string, fn GetFunc) *Table {
	t.entry(field).Get = fn
	return t
}

// Lookup returns the hooks registered for field
func (t *Table) Lookup(field string) (*Field, bool) {
	if t == nil {
		return nil, false
	}
	f, ok := t.fields[field]
	return f, ok
}

// Validator returns the validate hook for field, or nil
func (t *Table) Validator(field string) ValidateFunc {
	if f, ok := t.Lookup(field); ok {
		return f.Validate
	}
	return nil
}

// Getter returns the get hook for field, or nil
func (t *Table) Getter(field string) GetFunc {
	if f, ok := t.Lookup(field); ok {
		return f.Get
	}
	return nil
}

// Setter returns the set hook for field, or nil
func (t *Table) Setter(field string) SetFunc {
	if f, ok := t.Lookup(field); ok {
		return f.Set
	}
	return nil
}

// Fields returns the names of fields with hooks, sorted
func (t *Table) Fields() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.fields))
	for name := range t.fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
