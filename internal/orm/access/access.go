// Package access implements the capability checks consulted before a record
// is viewed, edited, created or deleted.
package access

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied is wrapped by every PermissionError
var ErrPermissionDenied = errors.New("permission denied")

// Operation names a guarded operation
type Operation string

const (
	OpView   Operation = "view"
	OpEdit   Operation = "edit"
	OpCreate Operation = "create"
	OpDelete Operation = "delete"
)

// PermissionError is returned when a create or delete is attempted without
// the matching capability.
type PermissionError struct {
	Model     string
	Operation Operation
}

// Error implements the error interface
func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: cannot %s %s", ErrPermissionDenied, e.Operation, e.Model)
}

// Unwrap returns ErrPermissionDenied
func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// IsPermissionDenied returns true if err is a permission failure
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// Policy answers the four capability questions for one record
type Policy interface {
	CanView(field string) bool
	CanEdit(field string) bool
	CanCreate() bool
	CanDelete() bool
}

// AllowAll permits everything
type AllowAll struct{}

func (AllowAll) CanView(string) bool { return true }
func (AllowAll) CanEdit(string) bool { return true }
func (AllowAll) CanCreate() bool     { return true }
func (AllowAll) CanDelete() bool     { return true }

// Funcs builds a Policy from optional functions. A nil function allows.
type Funcs struct {
	View   func(field string) bool
	Edit   func(field string) bool
	Create func() bool
	Delete func() bool
}

func (f Funcs) CanView(field string) bool {
	return f.View == nil || f.View(field)
}

func (f Funcs) CanEdit(field string) bool {
	return f.Edit == nil || f.Edit(field)
}

func (f Funcs) CanCreate() bool {
	return f.Create == nil || f.Create()
}

func (f Funcs) CanDelete() bool {
	return f.Delete == nil || f.Delete()
}

type all []Policy

// All combines policies; an operation is allowed only if every policy
// allows it. Nil policies are skipped.
func All(policies ...Policy) Policy {
	out := make(all, 0, len(policies))
	for _, p := range policies {
		if p != nil {
			out = append(out, p)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (a all) CanView(field string) bool {
	for _, p := range a {
		if !p.CanView(field) {
			return false
		}
	}
	return true
}

func (a all) CanEdit(field string) bool {
	for _, p := range a {
		if !p.CanEdit(field) {
			return false
		}
	}
	return true
}

func (a all) CanCreate() bool {
	for _, p := range a {
		if !p.CanCreate() {
			return false
		}
	}
	return true
}

func (a all) CanDelete() bool {
	for _, p := range a {
		if !p.CanDelete() {
			return false
		}
	}
	return true
}
