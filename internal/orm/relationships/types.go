// Package relationships declares associations between entities and turns
// them into executor queries
package relationships

import (
	"fmt"
	"sort"
	"sync"

	"github.com/conduit-lang/activerow/internal/orm/refcache"
)

// Cardinality is the number of entities a link resolves to
type Cardinality int

const (
	One Cardinality = iota
	Many
)

// String returns the string representation of the cardinality
func (c Cardinality) String() string {
	if c == Many {
		return "many"
	}
	return "one"
}

// Descriptor is a resolved link declaration. It is immutable once built.
type Descriptor struct {
	Key          string
	Target       string
	TargetTable  string
	ForeignKey   string
	ReferenceKey string
	Cardinality  Cardinality
}

// SourceField is the field on the declaring entity whose value selects the
// linked rows
func (d Descriptor) SourceField() string {
	if d.Cardinality == Many {
		return d.ReferenceKey
	}
	return d.ForeignKey
}

// TargetField is the column on the target table that is filtered
func (d Descriptor) TargetField() string {
	if d.Cardinality == Many {
		return d.ForeignKey
	}
	return d.ReferenceKey
}

// Query is a lookup an executor can run
type Query struct {
	Model  string
	Table  string
	Filter map[string]interface{}
	Limit  int
}

// Source is the declaring entity as seen by link resolution
type Source interface {
	GetModel() string
	GetKeyField() string
	Raw(field string) (interface{}, bool)
}

// NewOne declares a to-one link: the source's foreign key field holds the
// target's reference key. Empty arguments take their defaults: key is the
// target name, foreignKey is "<target>_id" and referenceKey is the
// target's identity field.
func NewOne(src Source, target string, ref refcache.Ref, key, foreignKey, referenceKey string) (Descriptor, error) {
	if key == "" {
		key = target
	}
	if foreignKey == "" {
		foreignKey = target + "_id"
	}
	if referenceKey == "" {
		referenceKey = ref.KeyField()
	}
	if referenceKey == "" {
		return Descriptor{}, &LinkError{Model: src.GetModel(), Link: key, Err: ErrNoReferenceKey}
	}
	return Descriptor{
		Key:          key,
		Target:       target,
		TargetTable:  ref.Table(),
		ForeignKey:   foreignKey,
		ReferenceKey: referenceKey,
		Cardinality:  One,
	}, nil
}

// NewMany declares a to-many link: target rows carry the source's
// reference key in their foreign key column. Empty arguments take their
// defaults: key is the target name, foreignKey is "<source>_id" and
// referenceKey is the source's identity field.
func NewMany(src Source, target string, ref refcache.Ref, key, foreignKey, referenceKey string) (Descriptor, error) {
	if key == "" {
		key = target
	}
	if foreignKey == "" {
		foreignKey = src.GetModel() + "_id"
	}
	if referenceKey == "" {
		referenceKey = src.GetKeyField()
	}
	if referenceKey == "" {
		return Descriptor{}, &LinkError{Model: src.GetModel(), Link: key, Err: ErrNoReferenceKey}
	}
	return Descriptor{
		Key:          key,
		Target:       target,
		TargetTable:  ref.Table(),
		ForeignKey:   foreignKey,
		ReferenceKey: referenceKey,
		Cardinality:  Many,
	}, nil
}

// Query builds the lookup for src. It reports false when the source
// field is unset or zero, in which case the link resolves to nothing.
// The check runs on every call so a link declared before its key was
// assigned starts resolving once it is.
func (d Descriptor) Query(src Source) (Query, bool) {
	value, _ := src.Raw(d.SourceField())
	if IsZero(value) {
		return Query{}, false
	}
	q := Query{
		Model:  d.Target,
		Table:  d.TargetTable,
		Filter: map[string]interface{}{d.TargetField(): value},
	}
	if d.Cardinality == One {
		q.Limit = 1
	}
	return q, true
}

// IsZero reports whether v counts as an unset link key: nil, numeric
// zero, the empty string or "0"
func IsZero(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == "" || val == "0"
	case int:
		return val == 0
	case int8:
		return val == 0
	case int16:
		return val == 0
	case int32:
		return val == 0
	case int64:
		return val == 0
	case uint:
		return val == 0
	case uint8:
		return val == 0
	case uint16:
		return val == 0
	case uint32:
		return val == 0
	case uint64:
		return val == 0
	case float32:
		return val == 0
	case float64:
		return val == 0
	case []byte:
		return len(val) == 0 || string(val) == "0"
	default:
		return false
	}
}

// Set holds the links declared on one entity. Redeclaring a key replaces
// the earlier descriptor.
type Set struct {
	mu    sync.RWMutex
	links map[string]Descriptor
}

// NewSet creates an empty link set
func NewSet() *Set {
	return &Set{links: make(map[string]Descriptor)}
}

// Declare stores d under its key
func (s *Set) Declare(d Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[d.Key] = d
}

// Get returns the descriptor stored under key
func (s *Set) Get(key string) (Descriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.links[key]
	return d, ok
}

// MustGet returns the descriptor stored under key or a *LinkError
func (s *Set) MustGet(model, key string) (Descriptor, error) {
	if d, ok := s.Get(key); ok {
		return d, nil
	}
	return Descriptor{}, &LinkError{Model: model, Link: key, Err: ErrUnknownLink}
}

// Keys returns the declared link keys, sorted
func (s *Set) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.links))
	for k := range s.links {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DependsOn returns the keys of links whose resolution reads field
func (s *Set) DependsOn(field string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k, d := range s.links {
		if d.SourceField() == field {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of declared links
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s(%s -> %s.%s)", d.Cardinality, d.SourceField(), d.TargetTable, d.TargetField())
}
