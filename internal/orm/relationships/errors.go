package relationships

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownLink is returned when a link key is not declared
	ErrUnknownLink = errors.New("unknown link")

	// ErrNoReferenceKey is returned when a link has no reference key and
	// the model it would default from has no identity field
	ErrNoReferenceKey = errors.New("link has no reference key")
)

// LinkError reports a failed link declaration or lookup
type LinkError struct {
	Model string
	Link  string
	Err   error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Model, e.Link, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}
