// Package unitofwork scopes entities to one unit of work, typically a
// request, and flushes them when it ends on every exit path.
package unitofwork

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/orm/entity"
	"github.com/conduit-lang/activerow/internal/orm/executor"
)

// ErrClosed is returned when a closed scope is used
var ErrClosed = errors.New("unit of work is closed")

// Option configures a Scope
type Option func(*Scope)

// WithEntityOptions applies opts to every entity the scope creates or loads
func WithEntityOptions(opts ...entity.EntityOption) Option {
	return func(s *Scope) {
		s.entityOpts = append(s.entityOpts, opts...)
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scope) {
		s.logger = logger
	}
}

// Atomic makes Run execute the work and the closing flush in one executor
// transaction when the executor supports them
func Atomic() Option {
	return func(s *Scope) {
		s.atomic = true
	}
}

// WithTimeout bounds the work done by Run. The closing flush is not
// bounded.
func WithTimeout(d time.Duration) Option {
	return func(s *Scope) {
		s.timeout = d
	}
}

// Scope tracks the entities of one unit of work. Every entity created or
// loaded through it, and every entity reached through their links, is
// flushed once when the scope closes.
type Scope struct {
	id         ulid.ULID
	mgr        *entity.Manager
	entityOpts []entity.EntityOption
	logger     *zap.Logger
	atomic     bool
	timeout    time.Duration

	mu       sync.Mutex
	entities []*entity.Entity
	seen     map[*entity.Entity]struct{}
	closed   bool
}

// Begin starts a unit of work
func Begin(mgr *entity.Manager, opts ...Option) *Scope {
	s := &Scope{
		id:     ulid.Make(),
		mgr:    mgr,
		logger: mgr.Logger(),
		seen:   make(map[*entity.Entity]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("unit_of_work", s.id.String()))
	return s
}

// ID returns the scope's unique, time-ordered identifier
func (s *Scope) ID() string {
	return s.id.String()
}

// Manager returns the entity manager
func (s *Scope) Manager() *entity.Manager {
	return s.mgr
}

func (s *Scope) options() []entity.EntityOption {
	opts := make([]entity.EntityOption, 0, len(s.entityOpts)+1)
	opts = append(opts, s.entityOpts...)
	return append(opts, entity.WithTracker(s.track))
}

// New creates a tracked entity that has not been stored yet
func (s *Scope) New(model string, data map[string]interface{}) (*entity.Entity, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	return s.mgr.New(model, data, s.options()...)
}

// Load creates a tracked entity for an existing row
func (s *Scope) Load(model string, row map[string]interface{}) (*entity.Entity, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	return s.mgr.Load(model, row, s.options()...)
}

// Find loads a tracked entity by identity
func (s *Scope) Find(ctx context.Context, model string, key interface{}) (*entity.Entity, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	return s.mgr.Find(ctx, model, key, s.options()...)
}

// Query returns a collection whose entities are tracked when fetched
func (s *Scope) Query(model string, filter map[string]interface{}) (*entity.Collection, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	return s.mgr.Query(model, filter, s.options()...)
}

// Track adds an entity built elsewhere to the scope
func (s *Scope) Track(e *entity.Entity) {
	s.track(e)
}

func (s *Scope) track(e *entity.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[e]; ok {
		return
	}
	s.seen[e] = struct{}{}
	s.entities = append(s.entities, e)
}

// Entities returns the tracked entities in the order they were tracked
func (s *Scope) Entities() []*entity.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.Entity(nil), s.entities...)
}

func (s *Scope) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes every tracked entity, which flushes those whose model has
// autosave enabled. It runs even when ctx is already cancelled, keeps
// going past failures and returns them joined. Closing twice is a no-op.
func (s *Scope) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	entities := s.entities
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	var errs []error
	for _, e := range entities {
		if err := e.Close(ctx); err != nil {
			s.logger.Error("flush on close failed",
				zap.String("model", e.GetModel()),
				zap.Any("key", e.GetKey()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s %v: %w", e.GetModel(), e.GetKey(), err))
		}
	}

	s.logger.Debug("unit of work closed", zap.Int("entities", len(entities)), zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// Run executes fn in a new scope and closes the scope when fn returns,
// fails or panics. A panic is re-raised after the scope is closed. Errors
// from fn and from closing are joined.
func Run(ctx context.Context, mgr *entity.Manager, fn func(ctx context.Context, s *Scope) error, opts ...Option) error {
	s := Begin(mgr, opts...)

	if s.atomic {
		if tx, ok := mgr.Executor().(executor.Transactor); ok {
			return tx.Transact(ctx, func(ctx context.Context) error {
				return s.run(ctx, fn)
			})
		}
		s.logger.Warn("executor does not support transactions, running without one")
	}
	return s.run(ctx, fn)
}

func (s *Scope) run(ctx context.Context, fn func(ctx context.Context, s *Scope) error) (err error) {
	work := WithContext(ctx, s)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		work, cancel = context.WithTimeout(work, s.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			if closeErr := s.Close(ctx); closeErr != nil {
				s.logger.Error("close after panic failed", zap.Error(closeErr))
			}
			panic(p)
		}
	}()

	fnErr := fn(work, s)
	if fnErr != nil && s.timeout > 0 && errors.Is(work.Err(), context.DeadlineExceeded) {
		fnErr = fmt.Errorf("%w: unit of work exceeded %v: %v", ErrTimeout, s.timeout, fnErr)
	}
	return errors.Join(fnErr, s.Close(ctx))
}
