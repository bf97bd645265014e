package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/activerow/internal/orm/tracking"
)

func TestHookType_String(t *testing.T) {
	tests := []struct {
		hookType HookType
		want     string
	}{
		{BeforeCreate, "before_create"},
		{BeforeUpdate, "before_update"},
		{BeforeDelete, "before_delete"},
		{AfterCreate, "after_create"},
		{AfterUpdate, "after_update"},
		{AfterDelete, "after_delete"},
		{HookType(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.hookType.String(); got != tt.want {
			t.Errorf("HookType(%d).String() = %q, want %q", tt.hookType, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.HasHooks(BeforeCreate))

	r.On(BeforeCreate, func(*Context, map[string]interface{}) error { return nil })
	r.Register(AfterCreate, &Hook{Fn: func(*Context, map[string]interface{}) error { return nil }, Async: true})

	assert.True(t, r.HasHooks(BeforeCreate))
	require.Len(t, r.GetHooks(AfterCreate), 1)
	assert.Equal(t, AfterCreate, r.GetHooks(AfterCreate)[0].Type)

	var nilRegistry *Registry
	assert.Nil(t, nilRegistry.GetHooks(BeforeCreate))
}

func TestExecutor_SyncHooksRunInOrderAndMutate(t *testing.T) {
	r := NewRegistry()
	var order []int
	r.On(BeforeCreate, func(ctx *Context, rec map[string]interface{}) error {
		order = append(order, 1)
		rec["slug"] = "hello"
		return nil
	})
	r.On(BeforeCreate, func(ctx *Context, rec map[string]interface{}) error {
		order = append(order, 2)
		assert.Equal(t, "post", ctx.Model())
		assert.True(t, ctx.Changed("title"))
		return nil
	})

	exec := NewExecutor(nil, nil)
	ctx := NewContext(context.Background(), "post", "posts", nil).
		WithChanges([]tracking.FieldChange{{Field: "title", NewValue: "Hello"}})
	rec := map[string]interface{}{"title": "Hello"}

	require.NoError(t, exec.Execute(ctx, r, BeforeCreate, rec))
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, "hello", rec["slug"])
}

func TestExecutor_SyncErrorAborts(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	called := false
	r.On(BeforeUpdate, func(*Context, map[string]interface{}) error { return boom })
	r.On(BeforeUpdate, func(*Context, map[string]interface{}) error { called = true; return nil })

	err := NewExecutor(nil, nil).Execute(NewContext(context.Background(), "m", "m", 1), r, BeforeUpdate, nil)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "before_update")
	assert.False(t, called)
}

func TestExecutor_AsyncHookGetsCopy(t *testing.T) {
	queue := NewAsyncQueue(1, nil)
	queue.Start()

	var mu sync.Mutex
	var seen map[string]interface{}
	done := make(chan struct{})

	r := NewRegistry()
	r.Register(AfterCreate, &Hook{Async: true, Fn: func(ctx *Context, rec map[string]interface{}) error {
		mu.Lock()
		seen = rec
		mu.Unlock()
		assert.Equal(t, int64(7), ctx.Key())
		close(done)
		return nil
	}})

	rec := map[string]interface{}{"tags": []string{"a"}}
	require.NoError(t, NewExecutor(queue, nil).Execute(NewContext(context.Background(), "m", "m", int64(7)), r, AfterCreate, rec))
	rec["tags"].([]string)[0] = "mutated"

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async hook did not run")
	}
	queue.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a"}, seen["tags"])
}

func TestExecutor_AsyncErrorsDoNotPropagate(t *testing.T) {
	r := NewRegistry()
	r.Register(AfterDelete, &Hook{Async: true, Fn: func(*Context, map[string]interface{}) error {
		return errors.New("ignored")
	}})

	assert.NoError(t, NewExecutor(nil, nil).Execute(NewContext(context.Background(), "m", "m", 1), r, AfterDelete, map[string]interface{}{}))
}

func TestExecutor_AsyncFlagIgnoredForBeforeHooks(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.Register(BeforeDelete, &Hook{Async: true, Fn: func(*Context, map[string]interface{}) error { return boom }})

	err := NewExecutor(nil, nil).Execute(NewContext(context.Background(), "m", "m", 1), r, BeforeDelete, nil)
	assert.ErrorIs(t, err, boom)
}

func TestDeepCopyRecord(t *testing.T) {
	orig := map[string]interface{}{
		"nested": map[string]interface{}{"list": []interface{}{"x"}},
		"ids":    []int64{1, 2},
	}
	cp := deepCopyRecord(orig)

	cp["nested"].(map[string]interface{})["list"].([]interface{})[0] = "y"
	cp["ids"].([]int64)[0] = 9

	assert.Equal(t, "x", orig["nested"].(map[string]interface{})["list"].([]interface{})[0])
	assert.Equal(t, int64(1), orig["ids"].([]int64)[0])
}
