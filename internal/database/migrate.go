package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"

	"github.com/BradenHooton/ipthrottle/migrations"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MigratePostgres applies the embedded postgres migrations through a stdlib handle on the pool
func MigratePostgres(ctx context.Context, db *DB) error {
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	return runMigrations(ctx, sqlDB, "postgres", "postgres")
}

// MigrateSQLite applies the embedded sqlite migrations
func MigrateSQLite(ctx context.Context, sqlDB *sql.DB) error {
	return runMigrations(ctx, sqlDB, "sqlite3", "sqlite")
}

func runMigrations(ctx context.Context, sqlDB *sql.DB, dialect, dir string) error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	// Suppress goose logs
	goose.SetLogger(log.New(io.Discard, "", 0))

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}
