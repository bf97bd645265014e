package entity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/orm/access"
	"github.com/conduit-lang/activerow/internal/orm/executor"
	"github.com/conduit-lang/activerow/internal/orm/hooks"
	"github.com/conduit-lang/activerow/internal/orm/schema"
	"github.com/conduit-lang/activerow/internal/orm/tracking"
)

// Flush writes pending changes: an insert for new entities, an update
// keyed by the identity for stored ones. It reports false without error
// when nothing was written because there are no changes, a validation
// failure is outstanding, the entity was deleted or the model is keyless
// and already stored. A stored keyless entity drops its pending changes.
// Pending changes are only folded into the stored values after the
// executor succeeds.
func (e *Entity) Flush(ctx context.Context) (bool, error) {
	if e.deleted || !e.store.IsDirty() || e.errors.HasErrors() {
		e.mgr.observer.Flushed(e.model.Name, OutcomeNoop)
		return false, nil
	}
	if e.isNew {
		return e.insert(ctx)
	}
	return e.update(ctx)
}

func (e *Entity) insert(ctx context.Context) (bool, error) {
	if !e.policy.CanCreate() {
		return false, e.mgr.denied(e.model.Name, access.OpCreate)
	}
	if e.mgr.exec == nil {
		return false, &ConfigurationError{Model: e.model.Name, Err: ErrNoExecutor}
	}

	hookCtx := hooks.NewContext(ctx, e.model.Name, e.model.Table, nil).WithChanges(e.Changes())
	fields, proceed, err := e.before(hookCtx, hooks.BeforeCreate)
	if err != nil || !proceed {
		return false, err
	}

	id, err := e.mgr.exec.Insert(ctx, e.model.Table, fields)
	if err != nil {
		e.mgr.observer.Flushed(e.model.Name, OutcomeError)
		return false, fmt.Errorf("insert %s: %w", e.model.Name, err)
	}

	e.isNew = false
	if key := e.model.KeyField; key != "" && id != nil {
		if current, _ := e.store.Raw(key); current == nil {
			e.store.LoadRaw(map[string]interface{}{key: id})
			e.invalidate(key)
		}
	}
	e.store.Fold()

	e.mgr.logger.Debug("inserted",
		zap.String("model", e.model.Name),
		zap.Any("key", e.GetKey()),
		zap.Int("fields", len(fields)))
	e.mgr.observer.Flushed(e.model.Name, OutcomeInsert)

	after := hooks.NewContext(ctx, e.model.Name, e.model.Table, e.GetKey()).WithChanges(hookCtx.Changes())
	return true, e.after(after, hooks.AfterCreate)
}

func (e *Entity) update(ctx context.Context) (bool, error) {
	key := e.model.KeyField
	if key == "" {
		e.mgr.logger.Warn("keyless entity cannot be updated, dropping changes",
			zap.String("model", e.model.Name),
			zap.Strings("fields", e.store.ChangedFields()))
		e.Discard()
		e.mgr.observer.Flushed(e.model.Name, OutcomeNoop)
		return false, nil
	}
	if e.mgr.exec == nil {
		return false, &ConfigurationError{Model: e.model.Name, Err: ErrNoExecutor}
	}

	keyValue, _ := e.store.Raw(key)
	hookCtx := hooks.NewContext(ctx, e.model.Name, e.model.Table, keyValue).WithChanges(e.Changes())
	fields, proceed, err := e.before(hookCtx, hooks.BeforeUpdate)
	if err != nil || !proceed {
		return false, err
	}

	if err := e.mgr.exec.Update(ctx, e.model.Table, fields, map[string]interface{}{key: keyValue}); err != nil {
		e.mgr.observer.Flushed(e.model.Name, OutcomeError)
		return false, fmt.Errorf("update %s %v: %w", e.model.Name, keyValue, err)
	}
	e.store.Fold()

	e.mgr.logger.Debug("updated",
		zap.String("model", e.model.Name),
		zap.Any("key", keyValue),
		zap.Int("fields", len(fields)))
	e.mgr.observer.Flushed(e.model.Name, OutcomeUpdate)

	return true, e.after(hookCtx, hooks.AfterUpdate)
}

// before runs the before hooks on a copy of the pending fields and writes
// back whatever they changed through Set. It returns the fields to store
// and whether the write should go ahead.
func (e *Entity) before(hookCtx *hooks.Context, hookType hooks.HookType) (map[string]interface{}, bool, error) {
	fields := e.store.Modified()
	if !e.model.Lifecycle.HasHooks(hookType) {
		return fields, true, nil
	}

	record := e.GetArray()
	for k, v := range fields {
		record[k] = v
	}
	if err := e.mgr.lifecycle.Execute(hookCtx, e.model.Lifecycle, hookType, record); err != nil {
		e.mgr.observer.Flushed(e.model.Name, OutcomeError)
		return nil, false, err
	}

	current := e.GetArray()
	for _, field := range orderedKeys(e.model, record) {
		v := record[field]
		if old, ok := current[field]; ok && tracking.StrictEqual(old, v) {
			continue
		}
		if _, err := e.Set(field, v); err != nil {
			return nil, false, err
		}
	}
	if e.errors.HasErrors() || !e.store.IsDirty() {
		e.mgr.observer.Flushed(e.model.Name, OutcomeNoop)
		return nil, false, nil
	}
	return e.store.Modified(), true, nil
}

func (e *Entity) after(hookCtx *hooks.Context, hookType hooks.HookType) error {
	if !e.model.Lifecycle.HasHooks(hookType) {
		return nil
	}
	return e.mgr.lifecycle.Execute(hookCtx, e.model.Lifecycle, hookType, e.GetArray())
}

// Delete removes the entity from storage. An entity that was never
// inserted is only marked deleted and its pending changes dropped.
// Deleting twice is a no-op.
func (e *Entity) Delete(ctx context.Context) error {
	if !e.policy.CanDelete() {
		return e.mgr.denied(e.model.Name, access.OpDelete)
	}
	if e.deleted {
		return nil
	}
	if e.isNew {
		e.store.Discard()
		e.deleted = true
		return nil
	}

	key := e.model.KeyField
	if key == "" {
		return &schema.SchemaError{Model: e.model.Name, Err: schema.ErrNoIdentity}
	}
	if e.mgr.exec == nil {
		return &ConfigurationError{Model: e.model.Name, Err: ErrNoExecutor}
	}

	keyValue, _ := e.store.Raw(key)
	hookCtx := hooks.NewContext(ctx, e.model.Name, e.model.Table, keyValue)
	if err := e.mgr.lifecycle.Execute(hookCtx, e.model.Lifecycle, hooks.BeforeDelete, e.GetArray()); err != nil {
		return err
	}

	if err := e.mgr.exec.Delete(ctx, e.model.Table, map[string]interface{}{key: keyValue}); err != nil {
		return fmt.Errorf("delete %s %v: %w", e.model.Name, keyValue, err)
	}

	e.deleted = true
	e.store.Discard()
	e.resolved = make(map[string]interface{})

	e.mgr.logger.Debug("deleted", zap.String("model", e.model.Name), zap.Any("key", keyValue))
	e.mgr.observer.Deleted(e.model.Name)

	return e.mgr.lifecycle.Execute(hookCtx, e.model.Lifecycle, hooks.AfterDelete, e.GetArray())
}

// Close ends the entity's unit of work: it flushes when the model has
// autosave enabled
func (e *Entity) Close(ctx context.Context) error {
	if !e.model.Autosave() {
		return nil
	}
	_, err := e.Flush(ctx)
	return err
}

// IsNotFound reports whether err means the targeted row does not exist
func IsNotFound(err error) bool {
	return executor.IsNotFound(err)
}
