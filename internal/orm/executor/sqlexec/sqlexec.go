// Package sqlexec implements the executor contract over database/sql
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/orm/executor"
)

// Dialect selects placeholder style and how generated keys are returned
type Dialect int

const (
	// Postgres uses $n placeholders and INSERT ... RETURNING
	Postgres Dialect = iota
	// SQLite uses ? placeholders and LastInsertId
	SQLite
)

// DialectFor returns the dialect for a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres":
		return Postgres, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// DB is the subset of *sql.DB and *sql.Tx the executor needs
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Beginner is implemented by *sql.DB
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Option configures an Executor
type Option func(*Executor)

// WithKeyColumn sets the generated key column for table
func WithKeyColumn(table, column string) Option {
	return func(e *Executor) {
		e.keyColumns[table] = column
	}
}

// WithDefaultKeyColumn sets the generated key column for tables without
// their own; empty disables RETURNING
func WithDefaultKeyColumn(column string) Option {
	return func(e *Executor) {
		e.defaultKey = column
	}
}

// WithLogger sets the statement logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// Executor runs entity writes and link lookups as SQL statements
type Executor struct {
	db         DB
	dialect    Dialect
	keyColumns map[string]string
	defaultKey string
	logger     *zap.Logger
}

// New creates an executor over db
func New(db DB, dialect Dialect, opts ...Option) *Executor {
	e := &Executor{
		db:         db,
		dialect:    dialect,
		keyColumns: make(map[string]string),
		defaultKey: "id",
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ executor.Executor = (*Executor)(nil)
var _ executor.Transactor = (*Executor)(nil)

func (e *Executor) conn(ctx context.Context) DB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return e.db
}

func (e *Executor) keyColumn(table string) string {
	if col, ok := e.keyColumns[table]; ok {
		return col
	}
	return e.defaultKey
}

func (e *Executor) placeholder(n int) string {
	if e.dialect == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// quoteIdent double-quotes an identifier, escaping embedded quotes
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (e *Executor) log(query string, args []interface{}) {
	e.logger.Debug("sql", zap.String("query", query), zap.Int("args", len(args)))
}

// Insert stores fields as a new row and returns the generated key
func (e *Executor) Insert(ctx context.Context, table string, fields map[string]interface{}) (interface{}, error) {
	var query strings.Builder
	fmt.Fprintf(&query, "INSERT INTO %s", quoteIdent(table))

	columns := executor.SortedKeys(fields)
	args := make([]interface{}, 0, len(columns))
	if len(columns) == 0 {
		query.WriteString(" DEFAULT VALUES")
	} else {
		quoted := make([]string, len(columns))
		placeholders := make([]string, len(columns))
		for i, col := range columns {
			quoted[i] = quoteIdent(col)
			placeholders[i] = e.placeholder(i + 1)
			args = append(args, fields[col])
		}
		fmt.Fprintf(&query, " (%s) VALUES (%s)", strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	}

	key := e.keyColumn(table)
	if e.dialect == Postgres && key != "" {
		fmt.Fprintf(&query, " RETURNING %s", quoteIdent(key))
		q := query.String()
		e.log(q, args)

		var id interface{}
		if err := e.conn(ctx).QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to insert into %s: %w", table, ConvertDBError(err))
		}
		return normalize(id), nil
	}

	q := query.String()
	e.log(q, args)
	res, err := e.conn(ctx).ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, ConvertDBError(err))
	}
	if key == "" {
		return nil, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, nil
	}
	return id, nil
}

// Update writes fields to the rows matching keyedBy
func (e *Executor) Update(ctx context.Context, table string, fields, keyedBy map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if len(keyedBy) == 0 {
		return fmt.Errorf("refusing to update %s without a key", table)
	}

	columns := executor.SortedKeys(fields)
	sets := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+len(keyedBy))
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = %s", quoteIdent(col), e.placeholder(i+1))
		args = append(args, fields[col])
	}

	where, args := e.where(keyedBy, args)
	q := fmt.Sprintf("UPDATE %s SET %s%s", quoteIdent(table), strings.Join(sets, ", "), where)
	e.log(q, args)

	res, err := e.conn(ctx).ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, ConvertDBError(err))
	}
	return checkAffected(res, table)
}

// Delete removes the rows matching keyedBy
func (e *Executor) Delete(ctx context.Context, table string, keyedBy map[string]interface{}) error {
	if len(keyedBy) == 0 {
		return fmt.Errorf("refusing to delete from %s without a key", table)
	}

	where, args := e.where(keyedBy, nil)
	q := fmt.Sprintf("DELETE FROM %s%s", quoteIdent(table), where)
	e.log(q, args)

	res, err := e.conn(ctx).ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, ConvertDBError(err))
	}
	return checkAffected(res, table)
}

// Select returns rows matching filter
func (e *Executor) Select(ctx context.Context, table string, filter map[string]interface{}, limit int) ([]map[string]interface{}, error) {
	where, args := e.where(filter, nil)
	q := fmt.Sprintf("SELECT * FROM %s%s", quoteIdent(table), where)
	if key := e.keyColumn(table); key != "" {
		q += " ORDER BY " + quoteIdent(key)
	}
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	e.log(q, args)

	rows, err := e.conn(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", table, ConvertDBError(err))
	}
	defer rows.Close()

	return scanRows(rows)
}

// where renders filter as a WHERE clause, numbering placeholders after
// the args already bound. Nil values match with IS NULL.
func (e *Executor) where(filter map[string]interface{}, args []interface{}) (string, []interface{}) {
	if len(filter) == 0 {
		return "", args
	}
	conds := make([]string, 0, len(filter))
	for _, col := range executor.SortedKeys(filter) {
		v := filter[col]
		if v == nil {
			conds = append(conds, quoteIdent(col)+" IS NULL")
			continue
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = %s", quoteIdent(col), e.placeholder(len(args))))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func checkAffected(res sql.Result, table string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", table, executor.ErrNotFound)
	}
	return nil
}

// scanRows scans all rows into maps keyed by column name
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			record[col] = normalize(values[i])
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// normalize turns driver byte slices into strings
func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
