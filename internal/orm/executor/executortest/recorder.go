// Package executortest provides an executor that records calls, for tests
// of code that flushes entities
package executortest

import (
	"context"
	"sync"

	"github.com/conduit-lang/activerow/internal/orm/executor"
	"github.com/conduit-lang/activerow/internal/orm/executor/memory"
)

// Op names an executor method
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpSelect Op = "select"
)

// Call is one recorded executor invocation
type Call struct {
	Op      Op
	Table   string
	Fields  map[string]interface{}
	KeyedBy map[string]interface{}
	Filter  map[string]interface{}
	Limit   int
}

// Recorder records every call and delegates to an in-memory store
type Recorder struct {
	*memory.Store

	mu    sync.Mutex
	calls []Call
	fail  map[Op]error
}

// New creates a recorder over a fresh memory store
func New(opts ...memory.Option) *Recorder {
	return &Recorder{
		Store: memory.New(opts...),
		fail:  make(map[Op]error),
	}
}

var _ executor.Executor = (*Recorder)(nil)

// Fail makes every later call of op return err until cleared with a nil err
func (r *Recorder) Fail(op Op, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

// Calls returns the recorded calls
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded calls of op
func (r *Recorder) CallsTo(op Op) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the recorded calls
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.fail[c.Op]
}

func (r *Recorder) Insert(ctx context.Context, table string, fields map[string]interface{}) (interface{}, error) {
	if err := r.record(Call{Op: OpInsert, Table: table, Fields: executor.CopyRow(fields)}); err != nil {
		return nil, err
	}
	return r.Store.Insert(ctx, table, fields)
}

func (r *Recorder) Update(ctx context.Context, table string, fields, keyedBy map[string]interface{}) error {
	if err := r.record(Call{Op: OpUpdate, Table: table, Fields: executor.CopyRow(fields), KeyedBy: executor.CopyRow(keyedBy)}); err != nil {
		return err
	}
	return r.Store.Update(ctx, table, fields, keyedBy)
}

func (r *Recorder) Delete(ctx context.Context, table string, keyedBy map[string]interface{}) error {
	if err := r.record(Call{Op: OpDelete, Table: table, KeyedBy: executor.CopyRow(keyedBy)}); err != nil {
		return err
	}
	return r.Store.Delete(ctx, table, keyedBy)
}

func (r *Recorder) Select(ctx context.Context, table string, filter map[string]interface{}, limit int) ([]map[string]interface{}, error) {
	if err := r.record(Call{Op: OpSelect, Table: table, Filter: executor.CopyRow(filter), Limit: limit}); err != nil {
		return nil, err
	}
	return r.Store.Select(ctx, table, filter, limit)
}
