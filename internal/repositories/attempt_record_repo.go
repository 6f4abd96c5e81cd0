package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/ipthrottle/internal/database"
	"github.com/BradenHooton/ipthrottle/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptRecordRepository handles PostgreSQL operations for attempt records
type AttemptRecordRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRecordRepository creates a new AttemptRecordRepository
func NewAttemptRecordRepository(db *database.DB) *AttemptRecordRepository {
	return &AttemptRecordRepository{pool: db.Pool}
}

// Get returns the record for an address, or nil if none exists
func (r *AttemptRecordRepository) Get(ctx context.Context, address string) (*models.AttemptRecord, error) {
	query := `
		SELECT address, failure_count, last_attempt_at, blocked_until
		FROM attempt_records
		WHERE address = $1
	`

	var record models.AttemptRecord
	err := r.pool.QueryRow(ctx, query, address).Scan(
		&record.Address,
		&record.FailureCount,
		&record.LastAttemptAt,
		&record.BlockedUntil,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt record: %w", database.MapPostgresError(err))
	}

	return &record, nil
}

// Save upserts the record by address
func (r *AttemptRecordRepository) Save(ctx context.Context, record *models.AttemptRecord) error {
	query := `
		INSERT INTO attempt_records (address, failure_count, last_attempt_at, blocked_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE SET
			failure_count = EXCLUDED.failure_count,
			last_attempt_at = EXCLUDED.last_attempt_at,
			blocked_until = EXCLUDED.blocked_until
	`

	_, err := r.pool.Exec(ctx, query,
		record.Address,
		record.FailureCount,
		record.LastAttemptAt,
		record.BlockedUntil,
	)
	if err != nil {
		return fmt.Errorf("failed to save attempt record: %w", database.MapPostgresError(err))
	}

	return nil
}
