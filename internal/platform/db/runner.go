package db

import (
	"context"
	"database/sql"
)

// Runner is satisfied by both *sql.DB and *sql.Tx, letting query code run
// inside or outside a transaction unchanged.
type Runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
