package querier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind turns $N into SQLite's numbered ?N form so the same statement
// binds the same arguments on both drivers.
func rebind(query string) string {
	return placeholder.ReplaceAllString(query, "?$1")
}

type sqlRunner interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlQuerier struct {
	run sqlRunner
}

func (q sqlQuerier) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := q.run.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (q sqlQuerier) QueryRow(ctx context.Context, query string, args ...any) Row {
	return sqlRow{row: q.run.QueryRowContext(ctx, rebind(query), args...)}
}

func (q sqlQuerier) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.run.ExecContext(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	_ = r.Rows.Close()
}

type sqlRow struct {
	row *sql.Row
}

func (r sqlRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoRows
		}
		return err
	}
	return nil
}

// SQL adapts a database/sql handle. It is used with the SQLite driver.
type SQL struct {
	sqlQuerier
	DB *sql.DB
}

func NewSQL(db *sql.DB) *SQL {
	return &SQL{sqlQuerier: sqlQuerier{run: db}, DB: db}
}

func (s *SQL) InTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(sqlQuerier{run: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQL) Close() {
	_ = s.DB.Close()
}
