package unitofwork

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conduit-lang/activerow/internal/orm/entity"
)

const (
	// DefaultMaxRetries is the default number of attempts for RunWithRetry
	DefaultMaxRetries = 3
	// DefaultBaseBackoff is the default base backoff duration
	DefaultBaseBackoff = 100 * time.Millisecond
)

var (
	// ErrTimeout is returned when the work of a scope outlives its timeout
	ErrTimeout = errors.New("unit of work timeout")
	// ErrRetriesExhausted is returned when every attempt hit a retryable error
	ErrRetriesExhausted = errors.New("unit of work retries exhausted")
)

// RetryConfig configures retry behavior for units of work
type RetryConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:  DefaultMaxRetries,
		BaseBackoff: DefaultBaseBackoff,
	}
}

// RunWithRetry runs fn in an atomic scope and starts over in a fresh one
// when it fails with a deadlock or serialization error. Each attempt
// rolls back completely, so fn must not keep entities between attempts.
func RunWithRetry(
	ctx context.Context,
	mgr *entity.Manager,
	config *RetryConfig,
	fn func(ctx context.Context, s *Scope) error,
	opts ...Option,
) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	opts = append(opts, Atomic())

	var lastErr error
	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("unit of work cancelled before attempt %d: %w", attempt, ctx.Err())
		}

		err := Run(ctx, mgr, fn, opts...)
		if err == nil || !IsRetryableError(err) {
			return err
		}
		lastErr = err

		// exponential backoff: baseBackoff * 2^attempt
		backoff := config.BaseBackoff * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return fmt.Errorf("unit of work cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, config.MaxRetries, lastErr)
}

// IsRetryableError reports whether err is a deadlock or serialization
// failure, which succeed when the whole unit of work is run again
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	// PostgreSQL deadlock_detected and serialization_failure
	if strings.Contains(msg, "40p01") || strings.Contains(msg, "40001") {
		return true
	}
	for _, s := range []string{
		"deadlock detected",
		"deadlock found",
		"lock wait timeout exceeded",
		"could not serialize access",
		"database is locked",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
