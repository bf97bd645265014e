// Package schema declares entity types: their fields, identity, hooks,
// access rules and associations.
package schema

import (
	"fmt"

	"github.com/conduit-lang/activerow/internal/orm/access"
	"github.com/conduit-lang/activerow/internal/orm/hooks"
)

// DefaultKeyField is the identity field used when a model names none
const DefaultKeyField = "id"

// Link declares an association installed on every entity of a model
type Link struct {
	Key          string `yaml:"key"`
	Target       string `yaml:"-"`
	ForeignKey   string `yaml:"foreign_key"`
	ReferenceKey string `yaml:"reference_key"`
	Many         bool   `yaml:"-"`
}

// Name returns the accessor name, defaulting to the target model
func (l Link) Name() string {
	if l.Key != "" {
		return l.Key
	}
	return l.Target
}

// Linker is what a model's Init function receives. It can read the
// entity being built and declare further associations on it.
type Linker interface {
	hooks.Record
	DeclareOne(target, key, foreignKey, referenceKey string) error
	DeclareMany(target, key, foreignKey, referenceKey string) error
}

// Model describes one entity type
type Model struct {
	Name     string
	Table    string
	KeyField string
	// NoKey marks a keyless model: updates are skipped and deletes fail
	NoKey  bool
	Fields []string

	DisableAutosave bool

	Hooks     *hooks.Table
	Lifecycle *hooks.Registry
	// Policy gates field and record access. When nil, Rules are turned
	// into a role policy per entity, and without either everything is allowed.
	Policy access.Policy
	Rules  *access.Rules
	Links  []Link
	Init   func(Linker) error

	fieldSet  map[string]struct{}
	finalized bool
}

// NewModel creates a model with the given declared fields
func NewModel(name string, fields ...string) *Model {
	return &Model{
		Name:      name,
		Fields:    fields,
		Hooks:     hooks.NewTable(),
		Lifecycle: hooks.NewRegistry(),
	}
}

// Finalize fills defaults and installs the identity guard. It is called
// by Registry.Register and is a no-op on later calls.
func (m *Model) Finalize() error {
	if m.finalized {
		return nil
	}
	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if m.Table == "" {
		m.Table = m.Name
	}
	if m.NoKey {
		m.KeyField = ""
	} else if m.KeyField == "" {
		m.KeyField = DefaultKeyField
	}
	if m.Hooks == nil {
		m.Hooks = hooks.NewTable()
	}
	if m.Lifecycle == nil {
		m.Lifecycle = hooks.NewRegistry()
	}

	m.fieldSet = make(map[string]struct{}, len(m.Fields))
	for _, f := range m.Fields {
		if _, dup := m.fieldSet[f]; dup {
			return fmt.Errorf("model %s: duplicate field %s", m.Name, f)
		}
		m.fieldSet[f] = struct{}{}
	}
	if m.KeyField != "" && len(m.Fields) > 0 && !m.HasField(m.KeyField) {
		return fmt.Errorf("model %s: key field %s is not declared", m.Name, m.KeyField)
	}

	seen := make(map[string]struct{}, len(m.Links))
	for _, l := range m.Links {
		if l.Target == "" {
			return fmt.Errorf("model %s: link without target", m.Name)
		}
		if _, dup := seen[l.Name()]; dup {
			return fmt.Errorf("model %s: duplicate link %s", m.Name, l.Name())
		}
		seen[l.Name()] = struct{}{}
	}

	if m.KeyField != "" {
		m.Hooks.Transform(m.KeyField, identityGuard(m.Name, m.KeyField))
	}

	m.finalized = true
	return nil
}

// identityGuard rejects every public write to the identity field. The
// executor-assigned key reaches the entity through the raw path instead.
func identityGuard(model, field string) hooks.SetFunc {
	return func(interface{}) (interface{}, error) {
		return nil, &SchemaError{Model: model, Field: field, Err: ErrIdentityChange}
	}
}

// HasFields reports whether the model declares a field list. Models
// without one accept any field name.
func (m *Model) HasFields() bool {
	return len(m.Fields) > 0
}

// HasField reports whether field is declared
func (m *Model) HasField(field string) bool {
	if m.fieldSet == nil {
		for _, f := range m.Fields {
			if f == field {
				return true
			}
		}
		return false
	}
	_, ok := m.fieldSet[field]
	return ok
}

// Accepts reports whether a write to field passes the declared-field check
func (m *Model) Accepts(field string) bool {
	return !m.HasFields() || m.HasField(field)
}

// Autosave reports whether entities flush when their scope closes
func (m *Model) Autosave() bool {
	return !m.DisableAutosave
}

// Link returns the statically declared link named name
func (m *Model) Link(name string) (Link, bool) {
	for _, l := range m.Links {
		if l.Name() == name {
			return l, true
		}
	}
	return Link{}, false
}

// HasOne declares a to-one link
func (m *Model) HasOne(target string, l Link) *Model {
	l.Target, l.Many = target, false
	m.Links = append(m.Links, l)
	return m
}

// HasMany declares a to-many link
func (m *Model) HasMany(target string, l Link) *Model {
	l.Target, l.Many = target, true
	m.Links = append(m.Links, l)
	return m
}
