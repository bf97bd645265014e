package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type contextKey string

const contextKeyTx contextKey = "activerow:sqltx"

// TxFromContext retrieves the transaction statements should run in
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(contextKeyTx).(*sql.Tx)
	return tx, ok
}

// WithTx returns a context whose statements run in tx
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, contextKeyTx, tx)
}

// Transact runs fn in a transaction. It commits when fn succeeds, rolls
// back when it fails and rolls back then re-panics on panic. When ctx
// already carries a transaction fn joins it.
func (e *Executor) Transact(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	b, ok := e.db.(Beginner)
	if !ok {
		return errors.New("database handle cannot begin transactions")
	}

	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
