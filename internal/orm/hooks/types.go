// Package hooks holds the per-field hook table an entity type uses to
// customize reads and writes, and the lifecycle hooks run around flushes.
package hooks

// HookType represents the type of lifecycle hook
type HookType int

const (
	BeforeCreate HookType = iota
	BeforeUpdate
	BeforeDelete
	AfterCreate
	AfterUpdate
	AfterDelete
)

// String returns the string representation of the hook type
func (h HookType) String() string {
	switch h {
	case BeforeCreate:
		return "before_create"
	case BeforeUpdate:
		return "before_update"
	case BeforeDelete:
		return "before_delete"
	case AfterCreate:
		return "after_create"
	case AfterUpdate:
		return "after_update"
	case AfterDelete:
		return "after_delete"
	default:
		return "unknown"
	}
}

// IsBefore reports whether hooks of this type run before the write
func (h HookType) IsBefore() bool {
	return h == BeforeCreate || h == BeforeUpdate || h == BeforeDelete
}

// HookFunc is a lifecycle hook. Before hooks receive the pending field map
// and may change it; after hooks receive the flushed record.
type HookFunc func(ctx *Context, record map[string]interface{}) error

// Hook represents a registered lifecycle hook
type Hook struct {
	Type  HookType
	Fn    HookFunc
	Async bool // Execute on the async queue; only honored for after hooks
}

// Registry manages the lifecycle hooks registered for one model
type Registry struct {
	hooks map[HookType][]*Hook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[HookType][]*Hook),
	}
}

// Register adds a hook to the registry
func (r *Registry) Register(hookType HookType, hook *Hook) {
	hook.Type = hookType
	r.hooks[hookType] = append(r.hooks[hookType], hook)
}

// On registers a synchronous hook function
func (r *Registry) On(hookType HookType, fn HookFunc) {
	r.Register(hookType, &Hook{Fn: fn})
}

// GetHooks returns all hooks for a given type
func (r *Registry) GetHooks(hookType HookType) []*Hook {
	if r == nil {
		return nil
	}
	return r.hooks[hookType]
}

// HasHooks returns true if there are any hooks registered for the given type
func (r *Registry) HasHooks(hookType HookType) bool {
	return len(r.GetHooks(hookType)) > 0
}
