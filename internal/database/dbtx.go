// Package database provides the PostgreSQL connection pool, the embedded
// migration runner, and pool-level Prometheus metrics.
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the query surface repositories depend on. Both *pgxpool.Pool and
// the pgxmock pool used in tests satisfy it, so repositories never need to
// know whether they are talking to a real database.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}
