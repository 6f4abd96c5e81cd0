package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/ipthrottle/internal/config"
	_ "modernc.org/sqlite"
)

const driverSQLite = "sqlite"

// OpenSQLite opens the SQLite database at cfg.Path and verifies the connection
func OpenSQLite(cfg *config.SQLiteConfig, logger *slog.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.Path)

	db, err := sql.Open(driverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}

	logger.Info("sqlite store opened", slog.String("path", cfg.Path))
	return db, nil
}
