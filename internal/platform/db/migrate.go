package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"paycalc/internal/platform/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies the embedded migrations for driver to sqlDB.
func Migrate(ctx context.Context, sqlDB *sql.DB, driver string) error {
	dialect := goose.DialectPostgres
	if driver == config.DriverSQLite {
		dialect = goose.DialectSQLite3
	}

	sub, err := fs.Sub(migrationsFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("migrations for %s: %w", driver, err)
	}
	provider, err := goose.NewProvider(dialect, sqlDB, sub)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}
	for _, res := range results {
		slog.Info("migration applied", "driver", driver, "source", res.Source.Path, "duration", res.Duration)
	}
	return nil
}

// MigratePool runs the Postgres migrations through a database/sql handle
// borrowed from the pool.
func MigratePool(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	return Migrate(ctx, sqlDB, config.DriverPostgres)
}
