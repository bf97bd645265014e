package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownField is returned when writing a field the model does not declare
	ErrUnknownField = errors.New("unknown field")
	// ErrIdentityChange is returned when writing the identity field
	ErrIdentityChange = errors.New("identity field is immutable")
	// ErrNoIdentity is returned for keyed operations on a keyless model
	ErrNoIdentity = errors.New("model has no identity field")
	// ErrUnknownModel is returned when a model name is not registered
	ErrUnknownModel = errors.New("unknown model")
)

// SchemaError reports a write or lookup that conflicts with a model's
// declared shape
type SchemaError struct {
	Model string
	Field string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Model, e.Field, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsSchemaError reports whether err wraps a *SchemaError
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
