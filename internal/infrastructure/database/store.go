package database

import (
	"context"
	"database/sql"

	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/domain"
)

// TxStore exposes a *sql.DB both as a plain Querier and as a transactional
// scope. InTx hands the callback a transaction-bound Querier and retries the
// whole unit on retryable store errors.
type TxStore struct {
	DB *sql.DB
}

func (s TxStore) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.DB.ExecContext(ctx, query, args...)
}

func (s TxStore) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.DB.QueryContext(ctx, query, args...)
}

func (s TxStore) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.DB.QueryRowContext(ctx, query, args...)
}

func (s TxStore) InTx(ctx context.Context, fn func(q domain.Querier) error) error {
	return WithRetry(ctx, s.DB, DefaultTxOptions(), func(tx *sql.Tx) error {
		return fn(tx)
	})
}
