// Package memory is an in-process executor. Tables are created on first
// write and keys are auto-incremented int64 values.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/conduit-lang/activerow/internal/orm/executor"
)

type table struct {
	rows []map[string]interface{}
	seq  int64
}

// Option configures a Store
type Option func(*Store)

// WithKeyColumn sets the generated key column for table; empty disables
// key generation
func WithKeyColumn(table, column string) Option {
	return func(s *Store) {
		s.keyColumns[table] = column
	}
}

// Store holds tables in memory. Rows are copied on the way in and out.
type Store struct {
	mu         sync.RWMutex
	tables     map[string]*table
	keyColumns map[string]string
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		tables:     make(map[string]*table),
		keyColumns: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ executor.Executor = (*Store)(nil)

func (s *Store) keyColumn(name string) string {
	if col, ok := s.keyColumns[name]; ok {
		return col
	}
	return "id"
}

func (s *Store) table(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = &table{}
		s.tables[name] = t
	}
	return t
}

// Insert stores a copy of fields and returns the generated key. A key
// supplied in fields is kept and advances the sequence past it.
func (s *Store) Insert(_ context.Context, name string, fields map[string]interface{}) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(name)
	row := executor.CopyRow(fields)
	if row == nil {
		row = make(map[string]interface{})
	}

	key := s.keyColumn(name)
	if key == "" {
		t.rows = append(t.rows, row)
		return nil, nil
	}

	if existing, ok := row[key]; ok && existing != nil {
		for _, r := range t.rows {
			if executor.Equal(r[key], existing) {
				return nil, fmt.Errorf("%w: %s.%s = %v", executor.ErrUniqueViolation, name, key, existing)
			}
		}
		if n, ok := existing.(int64); ok && n > t.seq {
			t.seq = n
		}
		t.rows = append(t.rows, row)
		return existing, nil
	}

	t.seq++
	row[key] = t.seq
	t.rows = append(t.rows, row)
	return t.seq, nil
}

// Update merges fields into every row matching keyedBy
func (s *Store) Update(_ context.Context, name string, fields, keyedBy map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, executor.ErrNotFound)
	}

	matched := 0
	for _, row := range t.rows {
		if executor.Matches(row, keyedBy) {
			for k, v := range fields {
				row[k] = v
			}
			matched++
		}
	}
	if matched == 0 {
		return fmt.Errorf("%s: %w", name, executor.ErrNotFound)
	}
	return nil
}

// Delete removes every row matching keyedBy
func (s *Store) Delete(_ context.Context, name string, keyedBy map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, executor.ErrNotFound)
	}

	kept := t.rows[:0]
	for _, row := range t.rows {
		if !executor.Matches(row, keyedBy) {
			kept = append(kept, row)
		}
	}
	removed := len(t.rows) - len(kept)
	for i := len(kept); i < len(t.rows); i++ {
		t.rows[i] = nil
	}
	t.rows = kept
	if removed == 0 {
		return fmt.Errorf("%s: %w", name, executor.ErrNotFound)
	}
	return nil
}

// Select returns copies of the rows matching filter in insertion order
func (s *Store) Select(_ context.Context, name string, filter map[string]interface{}, limit int) ([]map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	if !ok {
		return nil, nil
	}

	var out []map[string]interface{}
	for _, row := range t.rows {
		if !executor.Matches(row, filter) {
			continue
		}
		out = append(out, executor.CopyRow(row))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of rows in table
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[name]; ok {
		return len(t.rows)
	}
	return 0
}

// Seed inserts rows verbatim, for fixtures
func (s *Store) Seed(name string, rows ...map[string]interface{}) {
	for _, row := range rows {
		_, _ = s.Insert(context.Background(), name, row)
	}
}
