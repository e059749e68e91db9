package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"paycalc/internal/platform/config"
	"paycalc/internal/platform/querier"
)

// Open connects to the configured database and, when RUN_MIGRATIONS is
// set, brings its schema up to date.
func Open(ctx context.Context, cfg config.Config) (querier.DB, error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		sqlDB, err := OpenSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			if err := Migrate(ctx, sqlDB, config.DriverSQLite); err != nil {
				sqlDB.Close()
				return nil, err
			}
		}
		return querier.NewSQL(sqlDB), nil
	default:
		pool, err := Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			if err := MigratePool(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return querier.NewPGX(pool), nil
	}
}

func Connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = int32(max(cfg.PayrollWorkers+2, 4))
	poolCfg.MinConns = 1
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// OpenSQLite opens a SQLite database with a single connection so the
// pragmas below hold for every statement.
func OpenSQLite(dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA foreign_keys = ON;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("set sqlite pragmas: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return sqlDB, nil
}
