package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BradenHooton/ipthrottle/internal/models"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisKeyPrefix = "ipthrottle:attempt:"

// RedisAttemptRecordRepository stores each attempt record as a JSON string under prefix+address.
// Keys carry no TTL; idle records persist like in every other backend.
type RedisAttemptRecordRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisAttemptRecordRepository creates a new RedisAttemptRecordRepository
func NewRedisAttemptRecordRepository(client *redis.Client, prefix string) *RedisAttemptRecordRepository {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisAttemptRecordRepository{client: client, prefix: prefix}
}

func (r *RedisAttemptRecordRepository) key(address string) string {
	return r.prefix + address
}

func (r *RedisAttemptRecordRepository) Get(ctx context.Context, address string) (*models.AttemptRecord, error) {
	val, err := r.client.Get(ctx, r.key(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get attempt record: %w", err)
	}

	var record models.AttemptRecord
	if err := json.Unmarshal(val, &record); err != nil {
		return nil, fmt.Errorf("decode attempt record: %w", err)
	}
	return &record, nil
}

func (r *RedisAttemptRecordRepository) Save(ctx context.Context, record *models.AttemptRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode attempt record: %w", err)
	}

	if err := r.client.Set(ctx, r.key(record.Address), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set attempt record: %w", err)
	}
	return nil
}
