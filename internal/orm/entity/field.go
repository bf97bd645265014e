package entity

import (
	"context"
	"fmt"
)

// Field is a typed accessor for one field of an entity
//
//	var Email = entity.Field[string]{Name: "email"}
//	addr, ok, err := Email.Get(ctx, user)
type Field[T any] struct {
	Name string
}

// Get reads the field through the entity's read path. ok is false when
// the field is unset, hidden or nil.
func (f Field[T]) Get(ctx context.Context, e *Entity) (value T, ok bool, err error) {
	v, found, err := e.Lookup(ctx, f.Name)
	if err != nil || !found || v == nil {
		return value, false, err
	}
	typed, isT := v.(T)
	if !isT {
		return value, false, fmt.Errorf("%s.%s holds %T, not %T", e.GetModel(), f.Name, v, value)
	}
	return typed, true, nil
}

// Set writes the field through the entity's write path
func (f Field[T]) Set(e *Entity, value T) (bool, error) {
	return e.Set(f.Name, value)
}
