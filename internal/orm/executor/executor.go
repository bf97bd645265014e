// Package executor defines the storage contract entities flush through.
// Backends live in subpackages: sqlexec for database/sql drivers, memory
// for an in-process store and redisexec for Redis.
package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// Common executor errors
var (
	// ErrNotFound is returned when an update or delete matched no row
	ErrNotFound = errors.New("record not found")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
)

// Executor performs the storage side effects of flushes, deletes and
// link resolution
type Executor interface {
	// Insert stores fields as a new row and returns its generated key.
	// Backends that generate no key return nil.
	Insert(ctx context.Context, table string, fields map[string]interface{}) (interface{}, error)

	// Update writes fields to the rows matching keyedBy
	Update(ctx context.Context, table string, fields, keyedBy map[string]interface{}) error

	// Delete removes the rows matching keyedBy
	Delete(ctx context.Context, table string, keyedBy map[string]interface{}) error

	// Select returns rows matching every filter entry. A limit of zero or
	// less means unbounded.
	Select(ctx context.Context, table string, filter map[string]interface{}, limit int) ([]map[string]interface{}, error)
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUniqueViolation returns true if the error is ErrUniqueViolation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsForeignKeyViolation returns true if the error is ErrForeignKeyViolation
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

// SortedKeys returns the keys of m in order, for deterministic statements
func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matches reports whether row satisfies every filter entry
func Matches(row, filter map[string]interface{}) bool {
	for k, want := range filter {
		if !Equal(row[k], want) {
			return false
		}
	}
	return true
}

// Equal compares stored and filter values loosely: numbers compare by
// value across types, and other mismatched types compare by their
// printed form so "7" matches 7. Byte slices compare as strings.
func Equal(a, b interface{}) bool {
	if bs, ok := a.([]byte); ok {
		a = string(bs)
	}
	if bs, ok := b.([]byte); ok {
		b = string(bs)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
	}
	if reflect.TypeOf(a) == reflect.TypeOf(b) && reflect.TypeOf(a).Comparable() {
		return a == b
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// CopyRow returns a shallow copy of row
func CopyRow(row map[string]interface{}) map[string]interface{} {
	if row == nil {
		return nil
	}
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// Transactor is implemented by executors that can group writes so they
// commit or roll back together
type Transactor interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
}
