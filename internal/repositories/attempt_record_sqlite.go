package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/ipthrottle/internal/models"
)

// SQLiteAttemptRecordRepository stores attempt records in a SQLite database.
// Timestamps are stored as unix nanoseconds.
type SQLiteAttemptRecordRepository struct {
	db *sql.DB
}

// NewSQLiteAttemptRecordRepository creates a new SQLiteAttemptRecordRepository
func NewSQLiteAttemptRecordRepository(db *sql.DB) *SQLiteAttemptRecordRepository {
	return &SQLiteAttemptRecordRepository{db: db}
}

func (r *SQLiteAttemptRecordRepository) Get(ctx context.Context, address string) (*models.AttemptRecord, error) {
	var (
		record        models.AttemptRecord
		lastAttemptAt int64
		blockedUntil  sql.NullInt64
	)

	row := r.db.QueryRowContext(ctx, `
		SELECT address, failure_count, last_attempt_at, blocked_until
		FROM attempt_records
		WHERE address = ?
	`, address)

	if err := row.Scan(&record.Address, &record.FailureCount, &lastAttemptAt, &blockedUntil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch attempt record: %w", err)
	}

	record.LastAttemptAt = time.Unix(0, lastAttemptAt).UTC()
	if blockedUntil.Valid {
		value := time.Unix(0, blockedUntil.Int64).UTC()
		record.BlockedUntil = &value
	}

	return &record, nil
}

func (r *SQLiteAttemptRecordRepository) Save(ctx context.Context, record *models.AttemptRecord) error {
	var blockedUntil sql.NullInt64
	if record.BlockedUntil != nil {
		blockedUntil = sql.NullInt64{Int64: record.BlockedUntil.UnixNano(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attempt_records (address, failure_count, last_attempt_at, blocked_until)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			failure_count = excluded.failure_count,
			last_attempt_at = excluded.last_attempt_at,
			blocked_until = excluded.blocked_until
	`, record.Address, record.FailureCount, record.LastAttemptAt.UnixNano(), blockedUntil)
	if err != nil {
		return fmt.Errorf("store attempt record: %w", err)
	}

	return nil
}
