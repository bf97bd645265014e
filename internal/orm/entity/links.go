package entity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/orm/relationships"
)

// DeclareOne links key to a single target entity found through this
// entity's foreignKey field. Empty arguments take their defaults.
func (e *Entity) DeclareOne(target, key, foreignKey, referenceKey string) error {
	ref, err := e.mgr.Reference(target)
	if err != nil {
		return err
	}
	d, err := relationships.NewOne(e, target, ref, key, foreignKey, referenceKey)
	if err != nil {
		return err
	}
	e.declare(d)
	return nil
}

// DeclareMany links key to the target entities whose foreignKey holds
// this entity's referenceKey value. Empty arguments take their defaults.
func (e *Entity) DeclareMany(target, key, foreignKey, referenceKey string) error {
	ref, err := e.mgr.Reference(target)
	if err != nil {
		return err
	}
	d, err := relationships.NewMany(e, target, ref, key, foreignKey, referenceKey)
	if err != nil {
		return err
	}
	e.declare(d)
	return nil
}

func (e *Entity) declare(d relationships.Descriptor) {
	e.links.Declare(d)
	delete(e.resolved, d.Key)
}

// Links returns the declared link keys
func (e *Entity) Links() []string {
	return e.links.Keys()
}

// Descriptor returns the descriptor declared under key
func (e *Entity) Descriptor(key string) (relationships.Descriptor, error) {
	return e.links.MustGet(e.model.Name, key)
}

// One resolves a to-one link. It returns nil when the link's foreign key
// is unset or no target row matches.
func (e *Entity) One(ctx context.Context, key string) (*Entity, error) {
	d, err := e.links.MustGet(e.model.Name, key)
	if err != nil {
		return nil, err
	}
	if d.Cardinality != relationships.One {
		return nil, fmt.Errorf("%s.%s is a to-many link", e.model.Name, key)
	}
	v, ok, err := e.Lookup(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	target, _ := v.(*Entity)
	return target, nil
}

// Many resolves a to-many link to a lazy collection
func (e *Entity) Many(ctx context.Context, key string) (*Collection, error) {
	d, err := e.links.MustGet(e.model.Name, key)
	if err != nil {
		return nil, err
	}
	if d.Cardinality != relationships.Many {
		return nil, fmt.Errorf("%s.%s is a to-one link", e.model.Name, key)
	}
	v, ok, err := e.Lookup(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	coll, _ := v.(*Collection)
	return coll, nil
}

// resolve turns a descriptor into a target entity or collection. The
// source field is read now, so links declared before their key was set
// resolve once it is.
func (e *Entity) resolve(ctx context.Context, d relationships.Descriptor) (interface{}, bool, error) {
	q, ok := d.Query(e)

	if d.Cardinality == relationships.Many {
		if !ok {
			return emptyCollection(e.mgr, d.Target, d.TargetTable, e.cfg), true, nil
		}
		return newCollection(e.mgr, q.Model, q.Table, q.Filter, e.cfg), true, nil
	}

	if !ok {
		return nil, false, nil
	}
	if e.mgr.exec == nil {
		return nil, false, &ConfigurationError{Model: e.model.Name, Err: ErrNoExecutor}
	}

	e.mgr.logger.Debug("resolving link",
		zap.String("model", e.model.Name),
		zap.String("link", d.Key),
		zap.Stringer("descriptor", d))

	rows, err := e.mgr.exec.Select(ctx, q.Table, q.Filter, q.Limit)
	if err != nil {
		return nil, false, fmt.Errorf("resolve %s.%s: %w", e.model.Name, d.Key, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	sm, err := e.mgr.registry.Lookup(d.Target)
	if err != nil {
		return nil, false, err
	}
	target, err := e.mgr.load(sm, rows[0], e.cfg)
	if err != nil {
		return nil, false, err
	}
	return target, true, nil
}
