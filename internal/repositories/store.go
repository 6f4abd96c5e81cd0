package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/ipthrottle/internal/config"
	"github.com/BradenHooton/ipthrottle/internal/database"
	"github.com/BradenHooton/ipthrottle/internal/models"
)

// AttemptRecords is the contract shared by every attempt record backend
type AttemptRecords interface {
	Get(ctx context.Context, address string) (*models.AttemptRecord, error)
	Save(ctx context.Context, record *models.AttemptRecord) error
}

// AttemptRecordStore bundles the configured backend with its health check and teardown
type AttemptRecordStore struct {
	Records AttemptRecords
	Driver  string
	ping    func(ctx context.Context) error
	close   func() error
}

// HealthCheck verifies the backing store is reachable
func (s *AttemptRecordStore) HealthCheck(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend's connections
func (s *AttemptRecordStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenAttemptRecordStore connects the backend selected by cfg.Store.Driver and
// applies migrations where the backend has a schema.
func OpenAttemptRecordStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*AttemptRecordStore, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory, "":
		logger.Info("using in-memory attempt record store")
		return &AttemptRecordStore{
			Records: NewMemoryAttemptRecordRepository(),
			Driver:  config.StoreMemory,
		}, nil

	case config.StorePostgres:
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.MigratePostgres(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &AttemptRecordStore{
			Records: NewAttemptRecordRepository(db),
			Driver:  config.StorePostgres,
			ping:    db.HealthCheck,
			close: func() error {
				db.Close()
				return nil
			},
		}, nil

	case config.StoreSQLite:
		sqlDB, err := database.OpenSQLite(&cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		if err := database.MigrateSQLite(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return &AttemptRecordStore{
			Records: NewSQLiteAttemptRecordRepository(sqlDB),
			Driver:  config.StoreSQLite,
			ping:    sqlDB.PingContext,
			close:   sqlDB.Close,
		}, nil

	case config.StoreRedis:
		client, err := database.NewRedisClient(&cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return &AttemptRecordStore{
			Records: NewRedisAttemptRecordRepository(client, cfg.Redis.KeyPrefix),
			Driver:  config.StoreRedis,
			ping: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
			close: client.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
