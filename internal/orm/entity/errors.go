package entity

import (
	"errors"
	"fmt"
)

// ErrNoExecutor is wrapped by ConfigurationError when a write needs an
// executor and none was configured
var ErrNoExecutor = errors.New("no executor configured")

// ConfigurationError reports a missing collaborator
type ConfigurationError struct {
	Model string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Model, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err wraps a *ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
