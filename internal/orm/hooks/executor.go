package hooks

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Executor executes lifecycle hooks for entities
type Executor struct {
	asyncQueue *AsyncQueue
	logger     *zap.Logger
}

// NewExecutor creates a new hook executor. A nil queue makes async hooks
// run inline.
func NewExecutor(asyncQueue *AsyncQueue, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		asyncQueue: asyncQueue,
		logger:     logger,
	}
}

// Execute runs the hooks of registry registered for hookType. Synchronous
// hooks run in order and the first error aborts. Async after hooks get a
// deep copy of the record and their errors are only logged.
func (e *Executor) Execute(
	hookCtx *Context,
	registry *Registry,
	hookType HookType,
	record map[string]interface{},
) error {
	hooks := registry.GetHooks(hookType)
	if len(hooks) == 0 {
		return nil
	}

	for _, hook := range hooks {
		if hook.Async && !hookType.IsBefore() {
			if err := e.enqueueAsyncHook(hookCtx, hook, record); err != nil {
				e.logger.Warn("failed to enqueue async hook",
					zap.String("hook", hookType.String()),
					zap.String("model", hookCtx.Model()),
					zap.Error(err))
			}
			continue
		}
		if err := hook.Fn(hookCtx, record); err != nil {
			return fmt.Errorf("hook %s failed: %w", hookType.String(), err)
		}
	}

	return nil
}

// deepCopyRecord creates a deep copy of a record map to ensure
// async hooks have fully isolated data
func deepCopyRecord(record map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyRecord(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []int64:
		return append([]int64(nil), val...)
	case []float64:
		return append([]float64(nil), val...)
	case []byte:
		return append([]byte(nil), val...)
	default:
		return v
	}
}

func (e *Executor) enqueueAsyncHook(hookCtx *Context, hook *Hook, record map[string]interface{}) error {
	recordCopy := deepCopyRecord(record)
	model, table, key := hookCtx.Model(), hookCtx.Table(), hookCtx.Key()
	changes := hookCtx.Changes()

	run := func(ctx context.Context) error {
		asyncCtx := NewContext(ctx, model, table, key).WithChanges(changes)
		return hook.Fn(asyncCtx, recordCopy)
	}

	if e.asyncQueue == nil {
		if err := run(context.WithoutCancel(hookCtx)); err != nil {
			e.logger.Warn("async hook failed",
				zap.String("hook", hook.Type.String()),
				zap.String("model", model),
				zap.Error(err))
		}
		return nil
	}

	return e.asyncQueue.Enqueue(AsyncTask{
		Name: fmt.Sprintf("%s.%s", model, hook.Type.String()),
		Fn:   run,
	})
}
