// Package entity implements the in-memory record: gated field reads and
// writes, lazily resolved links and flushing pending changes through an
// executor.
package entity

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/orm/access"
	"github.com/conduit-lang/activerow/internal/orm/executor"
	"github.com/conduit-lang/activerow/internal/orm/hooks"
	"github.com/conduit-lang/activerow/internal/orm/refcache"
	"github.com/conduit-lang/activerow/internal/orm/relationships"
	"github.com/conduit-lang/activerow/internal/orm/schema"
	"github.com/conduit-lang/activerow/internal/orm/tracking"
	"github.com/conduit-lang/activerow/internal/orm/validation"
)

// Flush outcomes reported to observers
const (
	OutcomeInsert = "insert"
	OutcomeUpdate = "update"
	OutcomeNoop   = "noop"
	OutcomeError  = "error"
)

// Observer is notified of entity events, typically to record metrics
type Observer interface {
	Flushed(model, outcome string)
	Deleted(model string)
	ValidationFailed(model, field string)
	PermissionDenied(model, operation string)
}

type nopObserver struct{}

func (nopObserver) Flushed(string, string)          {}
func (nopObserver) Deleted(string)                  {}
func (nopObserver) ValidationFailed(string, string) {}
func (nopObserver) PermissionDenied(string, string) {}

// Option configures a Manager
type Option func(*Manager)

// WithExecutor sets the storage executor
func WithExecutor(exec executor.Executor) Option {
	return func(m *Manager) {
		m.exec = exec
	}
}

// WithReferences sets the reference cache; the process-wide cache is used
// by default. The cache is keyed by model name only, so managers over
// registries that define the same model differently need their own
// refcache.New().
func WithReferences(refs *refcache.Cache) Option {
	return func(m *Manager) {
		m.refs = refs
	}
}

// WithLifecycle sets the executor for lifecycle hooks
func WithLifecycle(lifecycle *hooks.Executor) Option {
	return func(m *Manager) {
		m.lifecycle = lifecycle
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithObserver sets the event observer
func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		m.observer = observer
	}
}

// Manager holds what every entity shares: the model registry, the
// executor, the reference cache and lifecycle hook execution
type Manager struct {
	registry  *schema.Registry
	exec      executor.Executor
	refs      *refcache.Cache
	lifecycle *hooks.Executor
	logger    *zap.Logger
	observer  Observer
}

// NewManager creates a manager for the models in registry. Unless
// WithReferences is given it shares refcache.Shared() with every other
// manager in the process, and the first registry to reference a model
// name fixes that model's table and key for all of them.
func NewManager(registry *schema.Registry, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		refs:     refcache.Shared(),
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.lifecycle == nil {
		m.lifecycle = hooks.NewExecutor(nil, m.logger)
	}
	return m
}

// Registry returns the model registry
func (m *Manager) Registry() *schema.Registry {
	return m.registry
}

// Executor returns the configured executor, possibly nil
func (m *Manager) Executor() executor.Executor {
	return m.exec
}

// Logger returns the manager's logger
func (m *Manager) Logger() *zap.Logger {
	return m.logger
}

// EntityOption configures one entity
type EntityOption func(*entityConfig)

type entityConfig struct {
	policy  access.Policy
	roles   []string
	tracker func(*Entity)
}

// WithPolicy adds a policy every operation on the entity must also pass
func WithPolicy(p access.Policy) EntityOption {
	return func(c *entityConfig) {
		c.policy = p
	}
}

// WithRoles sets the caller's roles, evaluated against the model's rules
func WithRoles(roles ...string) EntityOption {
	return func(c *entityConfig) {
		c.roles = roles
	}
}

// WithTracker registers fn to receive the entity once it is built and
// every entity later materialized through its links
func WithTracker(fn func(*Entity)) EntityOption {
	return func(c *entityConfig) {
		c.tracker = fn
	}
}

// New creates an entity that has not been stored yet. When data is
// non-nil the caller needs the create capability and each entry is
// written through Set, so validation failures are recorded rather than
// returned.
func (m *Manager) New(model string, data map[string]interface{}, opts ...EntityOption) (*Entity, error) {
	sm, err := m.registry.Lookup(model)
	if err != nil {
		return nil, err
	}

	e := m.build(sm, newConfig(opts), true)
	if data != nil {
		if !e.policy.CanCreate() {
			return nil, m.denied(sm.Name, access.OpCreate)
		}
		for _, field := range orderedKeys(sm, data) {
			if _, err := e.Set(field, data[field]); err != nil {
				return nil, err
			}
		}
	}
	if err := e.initialize(); err != nil {
		return nil, err
	}
	return e, nil
}

// Load creates an entity for a row that already exists in storage
func (m *Manager) Load(model string, row map[string]interface{}, opts ...EntityOption) (*Entity, error) {
	sm, err := m.registry.Lookup(model)
	if err != nil {
		return nil, err
	}
	return m.load(sm, row, newConfig(opts))
}

func (m *Manager) load(sm *schema.Model, row map[string]interface{}, cfg entityConfig) (*Entity, error) {
	e := m.build(sm, cfg, false)
	e.store.LoadRaw(row)
	if err := e.initialize(); err != nil {
		return nil, err
	}
	return e, nil
}

// Find loads the entity of model whose identity is key
func (m *Manager) Find(ctx context.Context, model string, key interface{}, opts ...EntityOption) (*Entity, error) {
	sm, err := m.registry.Lookup(model)
	if err != nil {
		return nil, err
	}
	if sm.KeyField == "" {
		return nil, &schema.SchemaError{Model: sm.Name, Err: schema.ErrNoIdentity}
	}
	if m.exec == nil {
		return nil, &ConfigurationError{Model: sm.Name, Err: ErrNoExecutor}
	}

	rows, err := m.exec.Select(ctx, sm.Table, map[string]interface{}{sm.KeyField: key}, 1)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", sm.Name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %v: %w", sm.Name, key, executor.ErrNotFound)
	}
	return m.load(sm, rows[0], newConfig(opts))
}

// Query returns a lazy collection of model entities matching filter
func (m *Manager) Query(model string, filter map[string]interface{}, opts ...EntityOption) (*Collection, error) {
	sm, err := m.registry.Lookup(model)
	if err != nil {
		return nil, err
	}
	return newCollection(m, sm.Name, sm.Table, filter, newConfig(opts)), nil
}

// Reference returns the metadata-only reference for model from the
// reference cache
func (m *Manager) Reference(model string) (refcache.Ref, error) {
	return m.refs.Get(model, m.buildReference)
}

func (m *Manager) buildReference(model string) (refcache.Ref, error) {
	sm, err := m.registry.Lookup(model)
	if err != nil {
		return nil, err
	}
	return newReference(sm), nil
}

func (m *Manager) build(sm *schema.Model, cfg entityConfig, isNew bool) *Entity {
	return &Entity{
		mgr:      m,
		model:    sm,
		cfg:      cfg,
		policy:   policyFor(sm, cfg),
		store:    tracking.NewStore(sm.Fields),
		errors:   make(validation.Errors),
		resolved: make(map[string]interface{}),
		links:    relationships.NewSet(),
		isNew:    isNew,
	}
}

func (m *Manager) denied(model string, op access.Operation) error {
	m.observer.PermissionDenied(model, string(op))
	m.logger.Warn("permission denied",
		zap.String("model", model),
		zap.String("operation", string(op)))
	return &access.PermissionError{Model: model, Operation: op}
}

func newConfig(opts []EntityOption) entityConfig {
	var cfg entityConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// options rebuilds the options an entity was created with, for entities
// materialized through its links
func (c entityConfig) options() []EntityOption {
	return []EntityOption{
		WithPolicy(c.policy),
		WithRoles(c.roles...),
		WithTracker(c.tracker),
	}
}

// policyFor combines the model's policy, its role rules evaluated for the
// caller's roles and any policy passed for this entity
func policyFor(sm *schema.Model, cfg entityConfig) access.Policy {
	var policies []access.Policy
	if sm.Policy != nil {
		policies = append(policies, sm.Policy)
	}
	if sm.Rules != nil {
		policies = append(policies, access.NewRolePolicy(*sm.Rules, cfg.roles...))
	}
	if cfg.policy != nil {
		policies = append(policies, cfg.policy)
	}
	if len(policies) == 0 {
		return access.AllowAll{}
	}
	return access.All(policies...)
}

// orderedKeys returns the keys of data with declared fields first, in
// declaration order, then the rest sorted
func orderedKeys(sm *schema.Model, data map[string]interface{}) []string {
	keys := make([]string, 0, len(data))
	seen := make(map[string]struct{}, len(data))
	for _, f := range sm.Fields {
		if _, ok := data[f]; ok {
			keys = append(keys, f)
			seen[f] = struct{}{}
		}
	}
	var rest []string
	for k := range data {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
