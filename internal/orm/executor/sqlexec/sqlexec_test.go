package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/activerow/internal/orm/executor"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestInsert_PostgresReturning(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, Postgres)

	mock.ExpectQuery(`INSERT INTO "users" ("email", "name") VALUES ($1, $2) RETURNING "id"`).
		WithArgs("ada@example.com", "Ada").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := exec.Insert(context.Background(), "users", map[string]interface{}{
		"name":  "Ada",
		"email": "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_DefaultValuesAndCustomKey(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, Postgres, WithKeyColumn("events", "uuid"))

	mock.ExpectQuery(`INSERT INTO "events" DEFAULT VALUES RETURNING "uuid"`).
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}).AddRow([]byte("e-1")))

	id, err := exec.Insert(context.Background(), "events", nil)
	require.NoError(t, err)
	assert.Equal(t, "e-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_KeylessTable(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, Postgres, WithKeyColumn("audit", ""))

	mock.ExpectExec(`INSERT INTO "audit" ("message") VALUES ($1)`).
		WithArgs("hi").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := exec.Insert(context.Background(), "audit", map[string]interface{}{"message": "hi"})
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_SQLiteLastInsertID(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, SQLite)

	mock.ExpectExec(`INSERT INTO "users" ("name") VALUES (?)`).
		WithArgs("Ada").
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := exec.Insert(context.Background(), "users", map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestInsert_UniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, Postgres)

	mock.ExpectQuery(`INSERT INTO "users" ("email") VALUES ($1) RETURNING "id"`).
		WithArgs("dup@example.com").
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (email) already exists."})

	_, err := exec.Insert(context.Background(), "users", map[string]interface{}{"email": "dup@example.com"})
	require.Error(t, err)
	assert.True(t, executor.IsUniqueViolation(err))
	assert.Contains(t, err.Error(), "failed to insert into users")
}

func TestUpdate(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, Postgres)

	mock.ExpectExec(`UPDATE "users" SET "email" = $1, "name" = $2 WHERE "id" = $3`).
		WithArgs("b@example.com", "Bob", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := exec.Update(context.Background(), "users",
		map[string]interface{}{"name": "Bob", "email": "b@example.com"},
		map[string]interface{}{"id": int64(1)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NoRowsIsNotFound(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, Postgres)

	mock.ExpectExec(`UPDATE "users" SET "name" = $1 WHERE "id" = $2`).
		WithArgs("Bob", int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := exec.Update(context.Background(), "users",
		map[string]interface{}{"name": "Bob"},
		map[string]interface{}{"id": int64(9)})
	assert.True(t, executor.IsNotFound(err))
}

func TestUpdate_Guards(t *testing.T) {
	db, _ := newMock(t)
	exec := New(db, Postgres)

	assert.NoError(t, exec.Update(context.Background(), "users", nil, map[string]interface{}{"id": 1}))
	assert.EqualError(t,
		exec.Update(context.Background(), "users", map[string]interface{}{"a": 1}, nil),
		"refusing to update users without a key")
	assert.EqualError(t,
		exec.Delete(context.Background(), "users", nil),
		"refusing to delete from users without a key")
}

func TestDelete(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, SQLite)

	mock.ExpectExec(`DELETE FROM "users" WHERE "id" = ?`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, exec.Delete(context.Background(), "users", map[string]interface{}{"id": int64(3)}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelect(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, Postgres)

	mock.ExpectQuery(`SELECT * FROM "posts" WHERE "archived_at" IS NULL AND "user_id" = $1 ORDER BY "id" LIMIT 1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(int64(1), []byte("hello")))

	rows, err := exec.Select(context.Background(), "posts",
		map[string]interface{}{"user_id": int64(5), "archived_at": nil}, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]interface{}{"id": int64(1), "title": "hello"}, rows[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelect_Unfiltered(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, Postgres, WithDefaultKeyColumn(""))

	mock.ExpectQuery(`SELECT * FROM "tags"`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	rows, err := exec.Select(context.Background(), "tags", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTransact(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, Postgres)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "users" WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := exec.Transact(context.Background(), func(ctx context.Context) error {
		_, inTx := TxFromContext(ctx)
		assert.True(t, inTx)
		return exec.Delete(ctx, "users", map[string]interface{}{"id": int64(1)})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransact_RollbackOnError(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, Postgres)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := exec.Transact(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransact_RollbackOnPanic(t *testing.T) {
	db, mock := newMock(t)
	exec := New(db, Postgres)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = exec.Transact(context.Background(), func(context.Context) error { panic("boom") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, executor.ErrNotFound},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, executor.ErrUniqueViolation},
		{"pgx foreign key", &pgconn.PgError{Code: "23503"}, executor.ErrForeignKeyViolation},
		{"pq unique", &pq.Error{Code: "23505"}, executor.ErrUniqueViolation},
		{"pq foreign key", &pq.Error{Code: "23503"}, executor.ErrForeignKeyViolation},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, executor.ErrUniqueViolation},
		{"sqlite foreign key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, executor.ErrForeignKeyViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ConvertDBError(tt.err), tt.want)
		})
	}

	assert.Nil(t, ConvertDBError(nil))
	other := errors.New("other")
	assert.Same(t, other, ConvertDBError(other))
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("pgx")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = DialectFor("mysql")
	assert.EqualError(t, err, "unsupported driver: mysql")
}
