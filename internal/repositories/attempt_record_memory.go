package repositories

import (
	"context"
	"sync"

	"github.com/BradenHooton/ipthrottle/internal/models"
)

// MemoryAttemptRecordRepository keeps attempt records in a process-local map.
// Records are copied on the way in and out so callers never share state with the map.
type MemoryAttemptRecordRepository struct {
	mu      sync.RWMutex
	records map[string]models.AttemptRecord
}

// NewMemoryAttemptRecordRepository creates an empty in-memory repository
func NewMemoryAttemptRecordRepository() *MemoryAttemptRecordRepository {
	return &MemoryAttemptRecordRepository{
		records: make(map[string]models.AttemptRecord),
	}
}

func (r *MemoryAttemptRecordRepository) Get(ctx context.Context, address string) (*models.AttemptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	record, ok := r.records[address]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	return copyRecord(record), nil
}

func (r *MemoryAttemptRecordRepository) Save(ctx context.Context, record *models.AttemptRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.records[record.Address] = *copyRecord(*record)
	r.mu.Unlock()
	return nil
}

// Len returns the number of stored records
func (r *MemoryAttemptRecordRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func copyRecord(record models.AttemptRecord) *models.AttemptRecord {
	if record.BlockedUntil != nil {
		blockedUntil := *record.BlockedUntil
		record.BlockedUntil = &blockedUntil
	}
	return &record
}
