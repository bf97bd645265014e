// Package tracking holds the values of a single record: the raw values last
// known to match the backing store, and an overlay of pending writes that
// have not been flushed yet.
package tracking

import (
	"reflect"
	"sort"
	"sync"
)

// FieldChange represents a pending change to a single field
type FieldChange struct {
	Field    string
	OldValue interface{}
	NewValue interface{}
}

// Store keeps raw values and the modified overlay for one record.
// A field name present in modified always shadows the same name in raw.
type Store struct {
	mu       sync.RWMutex
	fields   []string
	declared map[string]struct{}
	raw      map[string]interface{}
	modified map[string]interface{}
}

// NewStore creates a store for the given declared field set. Every declared
// field starts with a nil raw value. An empty field list means the record
// accepts any field name.
func NewStore(fields []string) *Store {
	s := &Store{
		fields:   make([]string, 0, len(fields)),
		declared: make(map[string]struct{}, len(fields)),
		raw:      make(map[string]interface{}, len(fields)),
		modified: make(map[string]interface{}),
	}
	for _, f := range fields {
		if _, dup := s.declared[f]; dup {
			continue
		}
		s.fields = append(s.fields, f)
		s.declared[f] = struct{}{}
		s.raw[f] = nil
	}
	return s
}

// Declared reports whether the store was built with a non-empty field set
func (s *Store) Declared() bool {
	return len(s.fields) > 0
}

// Accepts reports whether field may be written. Stores without a declared
// field set accept any name.
func (s *Store) Accepts(field string) bool {
	if !s.Declared() {
		return true
	}
	_, ok := s.declared[field]
	return ok
}

// Read returns the pending value for field if there is one, otherwise the
// raw value. The boolean is false when the store knows nothing about field.
func (s *Store) Read(field string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.modified[field]; ok {
		return v, true
	}
	v, ok := s.raw[field]
	return v, ok
}

// Raw returns the last persisted value for field, ignoring the overlay
func (s *Store) Raw(field string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.raw[field]
	return v, ok
}

// Write records value as pending for field when it differs from the raw
// value. Writing the raw value back drops any pending entry for field.
// It returns true when field is pending after the call.
func (s *Store) Write(field string, value interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if StrictEqual(s.raw[field], value) {
		delete(s.modified, field)
		return false
	}
	s.modified[field] = value
	return true
}

// LoadRaw merges data into the raw values verbatim. Pending values are left
// untouched.
func (s *Store) LoadRaw(data map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range data {
		s.raw[k] = v
	}
}

// Fold drains every pending value into raw and clears the overlay.
// Call it only after the pending values were written successfully.
func (s *Store) Fold() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range s.modified {
		s.raw[k] = v
	}
	s.modified = make(map[string]interface{})
}

// Discard drops all pending values
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modified = make(map[string]interface{})
}

// IsDirty returns true if any field has a pending value
func (s *Store) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.modified) > 0
}

// Changed returns true if field has a pending value
func (s *Store) Changed(field string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.modified[field]
	return ok
}

// ChangedFields returns the names of all pending fields, sorted
func (s *Store) ChangedFields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields := make([]string, 0, len(s.modified))
	for field := range s.modified {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Modified returns a copy of the pending values
func (s *Store) Modified() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]interface{}, len(s.modified))
	for k, v := range s.modified {
		result[k] = v
	}
	return result
}

// Changes returns the pending changes with their previous raw values
func (s *Store) Changes() map[string]*FieldChange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*FieldChange, len(s.modified))
	for field, v := range s.modified {
		result[field] = &FieldChange{
			Field:    field,
			OldValue: s.raw[field],
			NewValue: v,
		}
	}
	return result
}

// Snapshot returns the current value of every known field, pending values
// taking precedence over raw ones. It returns nil when no field is known.
func (s *Store) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.raw) == 0 && len(s.modified) == 0 {
		return nil
	}
	result := make(map[string]interface{}, len(s.raw)+len(s.modified))
	for k, v := range s.raw {
		result[k] = v
	}
	for k, v := range s.modified {
		result[k] = v
	}
	return result
}

// Fields returns the known field names: declared fields in declaration
// order, followed by any other loaded or pending fields sorted by name.
func (s *Store) Fields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, len(s.fields), len(s.raw)+len(s.modified))
	copy(result, s.fields)

	seen := make(map[string]struct{}, len(s.raw)+len(s.modified))
	var extra []string
	for _, m := range []map[string]interface{}{s.raw, s.modified} {
		for k := range m {
			if _, ok := s.declared[k]; ok {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(result, extra...)
}

// StrictEqual compares two values by dynamic type and value. Values of
// different types are never equal, so int64(1) and int(1) differ.
func StrictEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
