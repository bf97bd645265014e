// Package redisexec stores entity rows in Redis. Each row is a JSON
// document under "<prefix>:<table>:row:<id>", the ids of a table live in
// the set "<prefix>:<table>:ids" and generated keys come from INCR on
// "<prefix>:<table>:seq". Filters are evaluated client side.
package redisexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/conduit-lang/activerow/internal/orm/executor"
)

// Option configures an Executor
type Option func(*Executor)

// WithPrefix sets the key prefix, "activerow" by default
func WithPrefix(prefix string) Option {
	return func(e *Executor) {
		e.prefix = prefix
	}
}

// WithKeyColumn sets the key column for table; empty stores rows under
// internal ids without exposing them
func WithKeyColumn(table, column string) Option {
	return func(e *Executor) {
		e.keyColumns[table] = column
	}
}

// Executor implements the executor contract on a Redis client
type Executor struct {
	client     *redis.Client
	prefix     string
	keyColumns map[string]string
}

// New creates an executor over client
func New(client *redis.Client, opts ...Option) *Executor {
	e := &Executor{
		client:     client,
		prefix:     "activerow",
		keyColumns: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ executor.Executor = (*Executor)(nil)

func (e *Executor) keyColumn(table string) string {
	if col, ok := e.keyColumns[table]; ok {
		return col
	}
	return "id"
}

func (e *Executor) rowKey(table, id string) string {
	return fmt.Sprintf("%s:%s:row:%s", e.prefix, table, id)
}

func (e *Executor) idsKey(table string) string {
	return fmt.Sprintf("%s:%s:ids", e.prefix, table)
}

func (e *Executor) seqKey(table string) string {
	return fmt.Sprintf("%s:%s:seq", e.prefix, table)
}

// Insert stores fields as a new row
func (e *Executor) Insert(ctx context.Context, table string, fields map[string]interface{}) (interface{}, error) {
	row := executor.CopyRow(fields)
	if row == nil {
		row = make(map[string]interface{})
	}

	key := e.keyColumn(table)
	var id string
	var generated interface{}

	if supplied, ok := row[key]; key != "" && ok && supplied != nil {
		id = fmt.Sprint(supplied)
		n, err := e.client.Exists(ctx, e.rowKey(table, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: %s.%s = %s", executor.ErrUniqueViolation, table, key, id)
		}
		generated = supplied
	} else {
		seq, err := e.client.Incr(ctx, e.seqKey(table)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
		}
		id = strconv.FormatInt(seq, 10)
		if key != "" {
			row[key] = seq
			generated = seq
		}
	}

	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}

	_, err = e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, e.rowKey(table, id), data, 0)
		pipe.SAdd(ctx, e.idsKey(table), id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return generated, nil
}

// Update merges fields into the rows matching keyedBy
func (e *Executor) Update(ctx context.Context, table string, fields, keyedBy map[string]interface{}) error {
	matches, err := e.scan(ctx, table, keyedBy, 0)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("%s: %w", table, executor.ErrNotFound)
	}

	_, err = e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range matches {
			for k, v := range fields {
				m.row[k] = v
			}
			data, err := json.Marshal(m.row)
			if err != nil {
				return fmt.Errorf("failed to encode row: %w", err)
			}
			pipe.Set(ctx, e.rowKey(table, m.id), data, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	return nil
}

// Delete removes the rows matching keyedBy
func (e *Executor) Delete(ctx context.Context, table string, keyedBy map[string]interface{}) error {
	matches, err := e.scan(ctx, table, keyedBy, 0)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("%s: %w", table, executor.ErrNotFound)
	}

	_, err = e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range matches {
			pipe.Del(ctx, e.rowKey(table, m.id))
			pipe.SRem(ctx, e.idsKey(table), m.id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// Select returns rows matching filter ordered by id
func (e *Executor) Select(ctx context.Context, table string, filter map[string]interface{}, limit int) ([]map[string]interface{}, error) {
	matches, err := e.scan(ctx, table, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", table, err)
	}
	out := make([]map[string]interface{}, len(matches))
	for i, m := range matches {
		out[i] = m.row
	}
	return out, nil
}

type match struct {
	id  string
	row map[string]interface{}
}

func (e *Executor) scan(ctx context.Context, table string, filter map[string]interface{}, limit int) ([]match, error) {
	ids, err := e.client.SMembers(ctx, e.idsKey(table)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sortIDs(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = e.rowKey(table, id)
	}
	values, err := e.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var out []match
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		row, err := decodeRow(s)
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", ids[i], err)
		}
		if !executor.Matches(row, filter) {
			continue
		}
		out = append(out, match{id: ids[i], row: row})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// sortIDs orders numeric ids numerically and the rest lexically after them
func sortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, errA := strconv.ParseInt(ids[i], 10, 64)
		b, errB := strconv.ParseInt(ids[j], 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}

func decodeRow(s string) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var row map[string]interface{}
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	for k, v := range row {
		row[k] = fromJSON(v)
	}
	return row, nil
}

// fromJSON turns json.Number into int64 or float64
func fromJSON(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]interface{}:
		for k, inner := range val {
			val[k] = fromJSON(inner)
		}
		return val
	case []interface{}:
		for i, inner := range val {
			val[i] = fromJSON(inner)
		}
		return val
	default:
		return v
	}
}
