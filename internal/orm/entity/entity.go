package entity

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/orm/access"
	"github.com/conduit-lang/activerow/internal/orm/relationships"
	"github.com/conduit-lang/activerow/internal/orm/schema"
	"github.com/conduit-lang/activerow/internal/orm/tracking"
	"github.com/conduit-lang/activerow/internal/orm/validation"
)

// Entity is one record in memory. It is not safe for concurrent use; the
// unit of work that owns it serializes access.
type Entity struct {
	mgr    *Manager
	model  *schema.Model
	cfg    entityConfig
	policy access.Policy
	store  *tracking.Store
	errors validation.Errors
	links  *relationships.Set

	// resolved caches computed fields and found links by name
	resolved map[string]interface{}

	isNew   bool
	deleted bool
}

var (
	_ schema.Linker        = (*Entity)(nil)
	_ relationships.Source = (*Entity)(nil)
)

func (e *Entity) initialize() error {
	for _, l := range e.model.Links {
		var err error
		if l.Many {
			err = e.DeclareMany(l.Target, l.Key, l.ForeignKey, l.ReferenceKey)
		} else {
			err = e.DeclareOne(l.Target, l.Key, l.ForeignKey, l.ReferenceKey)
		}
		if err != nil {
			return err
		}
	}
	if e.model.Init != nil {
		if err := e.model.Init(e); err != nil {
			return err
		}
	}
	if e.cfg.tracker != nil {
		e.cfg.tracker(e)
	}
	return nil
}

// Lookup reads field. Fields the caller may not view report not found.
// Computed fields and found links are cached after their first read.
func (e *Entity) Lookup(ctx context.Context, field string) (interface{}, bool, error) {
	if !e.policy.CanView(field) {
		return nil, false, nil
	}
	if v, ok := e.resolved[field]; ok {
		return v, true, nil
	}
	if get := e.model.Hooks.Getter(field); get != nil {
		v, err := get(ctx, e)
		if err != nil {
			return nil, false, err
		}
		e.resolved[field] = v
		return v, true, nil
	}
	if d, ok := e.links.Get(field); ok {
		v, found, err := e.resolve(ctx, d)
		if err != nil || !found {
			return nil, false, err
		}
		e.resolved[field] = v
		return v, true, nil
	}
	v, ok := e.store.Read(field)
	return v, ok, nil
}

// Get reads field, returning nil when it is unknown or hidden
func (e *Entity) Get(ctx context.Context, field string) (interface{}, error) {
	v, _, err := e.Lookup(ctx, field)
	return v, err
}

// Raw returns the stored value of field, pending changes first, bypassing
// access checks and hooks
func (e *Entity) Raw(field string) (interface{}, bool) {
	return e.store.Read(field)
}

// Set writes field. It reports false without error when the value fails
// validation, which is recorded in GetErrors, or when the caller may not
// edit the field. Writes to undeclared fields or the identity field fail
// with a *schema.SchemaError.
func (e *Entity) Set(field string, value interface{}) (bool, error) {
	if validate := e.model.Hooks.Validator(field); validate != nil {
		if err := validate(value); err != nil {
			return false, e.reject(field, err)
		}
		e.errors.Clear(field)
	}

	if !e.policy.CanEdit(field) {
		e.mgr.logger.Debug("edit denied",
			zap.String("model", e.model.Name),
			zap.String("field", field))
		return false, nil
	}

	if set := e.model.Hooks.Setter(field); set != nil {
		v, err := set(value)
		if err != nil {
			return false, e.reject(field, err)
		}
		value = v
	}

	if !e.store.Accepts(field) {
		return false, &schema.SchemaError{Model: e.model.Name, Field: field, Err: schema.ErrUnknownField}
	}

	e.store.Write(field, value)
	e.invalidate(field)
	return true, nil
}

// reject records user-facing validation failures and passes any other
// error through
func (e *Entity) reject(field string, err error) error {
	ve, ok := validation.As(err)
	if !ok {
		return err
	}
	e.errors.Set(field, ve.Message)
	e.mgr.observer.ValidationFailed(e.model.Name, field)
	return nil
}

// SetAll writes every entry of data, declared fields first. It stops at
// the first hard error.
func (e *Entity) SetAll(data map[string]interface{}) error {
	for _, field := range orderedKeys(e.model, data) {
		if _, err := e.Set(field, data[field]); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops pending changes and validation errors, leaving the stored
// values. A discarded entity has nothing to flush when its unit of work
// closes.
func (e *Entity) Discard() {
	e.store.Discard()
	e.errors = make(validation.Errors)
	e.resolved = make(map[string]interface{})
}

func (e *Entity) invalidate(field string) {
	delete(e.resolved, field)
	for _, key := range e.links.DependsOn(field) {
		delete(e.resolved, key)
	}
}

// ToArray returns every field the caller may view, including computed
// fields, keyed by name
func (e *Entity) ToArray(ctx context.Context) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	fields := e.store.Fields()
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f] = struct{}{}
	}
	for _, f := range e.model.Hooks.Fields() {
		if _, ok := known[f]; !ok && e.model.Hooks.Getter(f) != nil {
			fields = append(fields, f)
		}
	}

	for _, f := range fields {
		if _, isLink := e.links.Get(f); isLink {
			continue
		}
		v, ok, err := e.Lookup(ctx, f)
		if err != nil {
			return nil, err
		}
		if ok {
			out[f] = v
		}
	}
	return out, nil
}

// GetArray returns the stored values with pending changes applied. It is
// not access checked.
func (e *Entity) GetArray() map[string]interface{} {
	snap := e.store.Snapshot()
	if snap == nil {
		return map[string]interface{}{}
	}
	return snap
}

// GetErrors returns the recorded validation failures by field
func (e *Entity) GetErrors() validation.Errors {
	return e.errors.Copy()
}

// Changes returns the pending changes sorted by field
func (e *Entity) Changes() []tracking.FieldChange {
	changes := e.store.Changes()
	out := make([]tracking.FieldChange, 0, len(changes))
	for _, c := range changes {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// IsNew reports whether the entity has not been inserted yet
func (e *Entity) IsNew() bool { return e.isNew }

// IsDirty reports whether there are pending changes
func (e *Entity) IsDirty() bool { return e.store.IsDirty() }

// IsDeleted reports whether Delete succeeded
func (e *Entity) IsDeleted() bool { return e.deleted }

// GetKey returns the identity value, nil for keyless models
func (e *Entity) GetKey() interface{} {
	if e.model.KeyField == "" {
		return nil
	}
	v, _ := e.store.Read(e.model.KeyField)
	return v
}

// GetKeyField returns the identity field name, empty for keyless models
func (e *Entity) GetKeyField() string { return e.model.KeyField }

// GetTable returns the storage table
func (e *Entity) GetTable() string { return e.model.Table }

// GetModel returns the model name
func (e *Entity) GetModel() string { return e.model.Name }

// Model returns the entity's model declaration
func (e *Entity) Model() *schema.Model { return e.model }

// Policy returns the access policy in effect for the entity
func (e *Entity) Policy() access.Policy { return e.policy }
