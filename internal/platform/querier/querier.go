// Package querier is the small database surface the stores are written
// against. Statements use Postgres-style $N placeholders; the SQLite
// adapter rewrites them to ?N.
package querier

import (
	"context"
	"errors"
)

var ErrNoRows = errors.New("no rows in result set")

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

type Row interface {
	Scan(dest ...any) error
}

type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// DB is a Querier that can also run a function inside a transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type DB interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
	Ping(ctx context.Context) error
	Close()
}
