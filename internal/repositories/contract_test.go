package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/ipthrottle/internal/models"
	"github.com/BradenHooton/ipthrottle/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAttemptRecordContract exercises the behaviour every backend must share
func testAttemptRecordContract(t *testing.T, repo repositories.AttemptRecords) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("missing address returns nil", func(t *testing.T) {
		record, err := repo.Get(ctx, "198.51.100.1")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("save then get round trips", func(t *testing.T) {
		err := repo.Save(ctx, &models.AttemptRecord{
			Address:       "198.51.100.2",
			FailureCount:  2,
			LastAttemptAt: now,
		})
		require.NoError(t, err)

		record, err := repo.Get(ctx, "198.51.100.2")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "198.51.100.2", record.Address)
		assert.Equal(t, 2, record.FailureCount)
		assert.True(t, now.Equal(record.LastAttemptAt), "last attempt: got %v want %v", record.LastAttemptAt, now)
		assert.Nil(t, record.BlockedUntil)
	})

	t.Run("save upserts by address", func(t *testing.T) {
		blockedUntil := now.Add(30 * time.Second)
		require.NoError(t, repo.Save(ctx, &models.AttemptRecord{
			Address:       "198.51.100.3",
			FailureCount:  4,
			LastAttemptAt: now,
		}))
		require.NoError(t, repo.Save(ctx, &models.AttemptRecord{
			Address:       "198.51.100.3",
			FailureCount:  5,
			LastAttemptAt: now,
			BlockedUntil:  &blockedUntil,
		}))

		record, err := repo.Get(ctx, "198.51.100.3")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, 5, record.FailureCount)
		require.NotNil(t, record.BlockedUntil)
		assert.True(t, blockedUntil.Equal(*record.BlockedUntil))
	})

	t.Run("clearing block persists nil", func(t *testing.T) {
		blockedUntil := now.Add(time.Minute)
		require.NoError(t, repo.Save(ctx, &models.AttemptRecord{
			Address:       "198.51.100.4",
			FailureCount:  5,
			LastAttemptAt: now,
			BlockedUntil:  &blockedUntil,
		}))
		require.NoError(t, repo.Save(ctx, &models.AttemptRecord{
			Address:       "198.51.100.4",
			FailureCount:  0,
			LastAttemptAt: now,
		}))

		record, err := repo.Get(ctx, "198.51.100.4")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, 0, record.FailureCount)
		assert.Nil(t, record.BlockedUntil)
	})

	t.Run("sub-millisecond timestamps round trip", func(t *testing.T) {
		lastAttempt := now.Add(700 * time.Microsecond)
		blockedUntil := lastAttempt.Add(30 * time.Second)
		require.NoError(t, repo.Save(ctx, &models.AttemptRecord{
			Address:       "198.51.100.5",
			FailureCount:  5,
			LastAttemptAt: lastAttempt,
			BlockedUntil:  &blockedUntil,
		}))

		record, err := repo.Get(ctx, "198.51.100.5")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.True(t, lastAttempt.Equal(record.LastAttemptAt), "last attempt: got %v want %v", record.LastAttemptAt, lastAttempt)
		require.NotNil(t, record.BlockedUntil)
		assert.True(t, blockedUntil.Equal(*record.BlockedUntil), "blocked until: got %v want %v", *record.BlockedUntil, blockedUntil)
	})

	t.Run("addresses are independent", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, &models.AttemptRecord{Address: "2001:db8::1", FailureCount: 1, LastAttemptAt: now}))
		require.NoError(t, repo.Save(ctx, &models.AttemptRecord{Address: "2001:db8::2", FailureCount: 3, LastAttemptAt: now}))

		first, err := repo.Get(ctx, "2001:db8::1")
		require.NoError(t, err)
		second, err := repo.Get(ctx, "2001:db8::2")
		require.NoError(t, err)
		assert.Equal(t, 1, first.FailureCount)
		assert.Equal(t, 3, second.FailureCount)
	})
}
