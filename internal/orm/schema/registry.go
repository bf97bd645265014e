package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry manages all models known to the application
type Registry struct {
	models map[string]*Model
	mu     sync.RWMutex
}

// NewRegistry creates a new model registry
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*Model),
	}
}

// Register finalizes and registers a model
func (r *Registry) Register(model *Model) error {
	if err := model.Finalize(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[model.Name]; exists {
		return fmt.Errorf("model %s is already registered", model.Name)
	}
	r.models[model.Name] = model
	return nil
}

// MustRegister registers models and panics on the first failure
func (r *Registry) MustRegister(models ...*Model) {
	for _, m := range models {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Get retrieves a model by name
func (r *Registry) Get(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	model, exists := r.models[name]
	return model, exists
}

// Lookup retrieves a model by name or returns a *SchemaError wrapping
// ErrUnknownModel
func (r *Registry) Lookup(name string) (*Model, error) {
	if model, ok := r.Get(name); ok {
		return model, nil
	}
	return nil, &SchemaError{Model: name, Err: ErrUnknownModel}
}

// All returns a copy of all registered models
func (r *Registry) All() map[string]*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Model, len(r.models))
	for k, v := range r.models {
		result[k] = v
	}
	return result
}

// List returns the registered model names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedNames(r.models)
}

// ValidateAll checks that every statically declared link targets a
// registered model. Links may point forward, so this runs after all
// models are registered.
func (r *Registry) ValidateAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range sortedNames(r.models) {
		m := r.models[name]
		for _, l := range m.Links {
			target, ok := r.models[l.Target]
			if !ok {
				errs = append(errs, fmt.Errorf("model %s: link %s targets unknown model %s", m.Name, l.Name(), l.Target))
				continue
			}
			if !l.Many && l.ReferenceKey == "" && target.KeyField == "" {
				errs = append(errs, fmt.Errorf("model %s: link %s needs a reference key, %s has no identity", m.Name, l.Name(), target.Name))
			}
			if l.Many && l.ReferenceKey == "" && m.KeyField == "" {
				errs = append(errs, fmt.Errorf("model %s: link %s needs a reference key, model has no identity", m.Name, l.Name()))
			}
		}
	}
	return errors.Join(errs...)
}

// Clear removes all registered models (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models = make(map[string]*Model)
}

// Count returns the number of registered models
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.models)
}

// Exists checks if a model is registered
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.models[name]
	return exists
}

func sortedNames(models map[string]*Model) []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
