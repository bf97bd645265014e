// Package validation provides user-facing field validation errors and
// reusable validators that plug into an entity's validate hooks.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error is a validation failure caused by user-supplied data. It is recorded
// on the entity instead of being returned to the caller of a write.
type Error struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// New creates a validation error with the given message
func New(message string) *Error {
	return &Error{Message: message}
}

// Errorf creates a validation error with a formatted message
func Errorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// As reports whether err is, or wraps, a validation error
func As(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Errors maps a field name to the last validation message recorded for it
type Errors map[string]string

// Set records message for field, replacing any earlier message
func (e Errors) Set(field, message string) {
	e[field] = message
}

// Clear removes the message recorded for field
func (e Errors) Clear(field string) {
	delete(e, field)
}

// HasErrors returns true if any field has a recorded message
func (e Errors) HasErrors() bool {
	return len(e) > 0
}

// Fields returns the names of fields with errors, sorted
func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Copy returns an independent copy of the map
func (e Errors) Copy() Errors {
	out := make(Errors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Error implements the error interface so the map can be returned as one
func (e Errors) Error() string {
	if !e.HasErrors() {
		return "validation failed"
	}

	fields := e.Fields()
	if len(fields) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", fields[0], e[fields[0]])
	}

	messages := make([]string, 0, len(fields))
	for _, f := range fields {
		messages = append(messages, fmt.Sprintf("  - %s: %s", f, e[f]))
	}
	return fmt.Sprintf("validation failed:\n%s", strings.Join(messages, "\n"))
}

// MarshalJSON implements json.Marshaler for custom JSON serialization
func (e Errors) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}{
		Error:  "validation_failed",
		Fields: map[string]string(e),
	})
}
