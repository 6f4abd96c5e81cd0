package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/BradenHooton/ipthrottle/internal/config"
	"github.com/BradenHooton/ipthrottle/internal/database"
	"github.com/BradenHooton/ipthrottle/internal/models"
	"github.com/BradenHooton/ipthrottle/internal/repositories"
	"github.com/BradenHooton/ipthrottle/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func scenarioConfig() services.ThrottleConfig {
	return services.ThrottleConfig{
		BlockDuration:     30 * time.Second,
		MaxFailedAttempts: 5,
		ResetWindow:       300 * time.Second,
	}
}

func newTestTracker(t *testing.T, config services.ThrottleConfig) (*services.ThrottleTracker, *repositories.MemoryAttemptRecordRepository, *fakeClock) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	repo := repositories.NewMemoryAttemptRecordRepository()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	tracker := services.NewThrottleTracker(repo, config, logger)
	tracker.SetClock(clock.Now)
	return tracker, repo, clock
}

func failN(t *testing.T, tracker *services.ThrottleTracker, address string, n int) *services.FailureOutcome {
	t.Helper()
	var outcome *services.FailureOutcome
	for i := 0; i < n; i++ {
		var err error
		outcome, err = tracker.HandleLoginFailure(context.Background(), address)
		require.NoError(t, err)
	}
	return outcome
}

// failingRepo returns the configured errors from Get and Save
type failingRepo struct {
	getErr  error
	saveErr error
	record  *models.AttemptRecord
}

func (f *failingRepo) Get(ctx context.Context, address string) (*models.AttemptRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.record == nil {
		return nil, nil
	}
	copied := *f.record
	return &copied, nil
}

func (f *failingRepo) Save(ctx context.Context, record *models.AttemptRecord) error {
	return f.saveErr
}

func TestNewThrottleTracker_AppliesDefaults(t *testing.T) {
	tracker := services.NewThrottleTracker(repositories.NewMemoryAttemptRecordRepository(), services.ThrottleConfig{}, nil)

	assert.Equal(t, services.DefaultThrottleConfig(), tracker.Config())
	assert.Equal(t, 5, tracker.Config().MaxFailedAttempts)
	assert.Equal(t, 300*time.Second, tracker.Config().ResetWindow)
}

func TestIsBlocked_NoRecord(t *testing.T) {
	tracker, _, _ := newTestTracker(t, scenarioConfig())

	status, err := tracker.IsBlocked(context.Background(), "192.0.2.1")

	require.NoError(t, err)
	assert.False(t, status.Blocked)
	assert.Empty(t, status.Message)
}

func TestIsBlocked_BelowThreshold(t *testing.T) {
	tracker, _, _ := newTestTracker(t, scenarioConfig())
	failN(t, tracker, "192.0.2.1", 4)

	status, err := tracker.IsBlocked(context.Background(), "192.0.2.1")

	require.NoError(t, err)
	assert.False(t, status.Blocked)
}

func TestHandleLoginFailure_Scenario(t *testing.T) {
	tracker, _, _ := newTestTracker(t, scenarioConfig())
	ctx := context.Background()

	outcome := failN(t, tracker, "A", 4)
	assert.False(t, outcome.Blocked)
	assert.Equal(t, 1, outcome.RemainingAttempts)
	require.Len(t, outcome.Messages, 1)
	assert.Contains(t, outcome.Messages[0], "1 attempts before being blocked")

	outcome, err := tracker.HandleLoginFailure(ctx, "A")
	require.NoError(t, err)
	assert.True(t, outcome.Blocked)
	assert.Equal(t, 0, outcome.RemainingAttempts)
	assert.Equal(t, 30*time.Second, outcome.RetryAfter)
	require.Len(t, outcome.Messages, 2)
	assert.Contains(t, outcome.Messages[1], "try again in 30 seconds.")
	assert.Contains(t, outcome.Message(), "0 attempts before being blocked")

	// A success from another address leaves A untouched
	require.NoError(t, tracker.HandleLoginSuccess(ctx, "B"))
	status, err := tracker.IsBlocked(ctx, "A")
	require.NoError(t, err)
	assert.True(t, status.Blocked)
}

func TestHandleLoginFailure_BlocksExactlyAtThreshold(t *testing.T) {
	for _, threshold := range []int{1, 3, 5} {
		config := scenarioConfig()
		config.MaxFailedAttempts = threshold
		tracker, _, _ := newTestTracker(t, config)

		if threshold > 1 {
			outcome := failN(t, tracker, "192.0.2.7", threshold-1)
			assert.False(t, outcome.Blocked, "threshold %d: blocked one attempt early", threshold)
		}
		outcome := failN(t, tracker, "192.0.2.7", 1)
		assert.True(t, outcome.Blocked, "threshold %d: not blocked at threshold", threshold)
	}
}

func TestIsBlocked_RemainingSecondsDecrease(t *testing.T) {
	tracker, _, clock := newTestTracker(t, scenarioConfig())
	ctx := context.Background()
	failN(t, tracker, "192.0.2.1", 5)

	tests := []struct {
		advance time.Duration
		message string
	}{
		{0, "try again in 30 seconds."},
		{500 * time.Millisecond, "try again in 30 seconds."}, // 29.5s rounds up
		{500 * time.Millisecond, "try again in 29 seconds."},
		{19 * time.Second, "try again in 10 seconds."},
		{9*time.Second + 999*time.Millisecond, "try again in 1 seconds."},
	}

	var previous time.Duration
	for i, tt := range tests {
		clock.Advance(tt.advance)
		status, err := tracker.IsBlocked(ctx, "192.0.2.1")
		require.NoError(t, err)
		assert.True(t, status.Blocked)
		assert.Contains(t, status.Message, tt.message)
		if i > 0 {
			assert.Less(t, status.RetryAfter, previous)
		}
		previous = status.RetryAfter
	}
}

func TestIsBlocked_ExpiryClearsRecord(t *testing.T) {
	tracker, repo, clock := newTestTracker(t, scenarioConfig())
	ctx := context.Background()
	failN(t, tracker, "192.0.2.1", 5)

	clock.Advance(30 * time.Second)
	status, err := tracker.IsBlocked(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, status.Blocked)

	record, err := repo.Get(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 0, record.FailureCount)
	assert.Nil(t, record.BlockedUntil)

	failure, err := tracker.RecordFailure(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 1, failure.FailureCount)
	assert.Equal(t, 4, failure.RemainingAttempts)
}

func TestRecordFailure_ResetsAfterWindow(t *testing.T) {
	tracker, _, clock := newTestTracker(t, scenarioConfig())
	ctx := context.Background()
	failN(t, tracker, "192.0.2.1", 3)

	clock.Advance(300*time.Second + time.Millisecond)
	failure, err := tracker.RecordFailure(ctx, "192.0.2.1")

	require.NoError(t, err)
	assert.Equal(t, 1, failure.FailureCount)
	assert.Equal(t, 4, failure.RemainingAttempts)
}

func TestRecordFailure_IncrementsAtWindowBoundary(t *testing.T) {
	tracker, _, clock := newTestTracker(t, scenarioConfig())
	ctx := context.Background()
	failN(t, tracker, "192.0.2.1", 1)

	// exactly ResetWindow is not "more than" the window
	clock.Advance(300 * time.Second)
	failure, err := tracker.RecordFailure(ctx, "192.0.2.1")

	require.NoError(t, err)
	assert.Equal(t, 2, failure.FailureCount)
}

func TestRecordFailure_WindowBoundaryAgreesAcrossBackends(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	db, err := database.OpenSQLite(&config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "throttle.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(context.Background(), db))

	tests := []struct {
		name string
		repo services.AttemptRecordRepository
	}{
		{"memory", repositories.NewMemoryAttemptRecordRepository()},
		{"sqlite", repositories.NewSQLiteAttemptRecordRepository(db)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 700_123, time.UTC)}
			tracker := services.NewThrottleTracker(tt.repo, scenarioConfig(), logger)
			tracker.SetClock(clock.Now)

			_, err := tracker.RecordFailure(ctx, "192.0.2.1")
			require.NoError(t, err)

			clock.Advance(300 * time.Second)
			failure, err := tracker.RecordFailure(ctx, "192.0.2.1")
			require.NoError(t, err)
			assert.Equal(t, 2, failure.FailureCount)

			clock.Advance(300*time.Second + time.Microsecond)
			failure, err = tracker.RecordFailure(ctx, "192.0.2.1")
			require.NoError(t, err)
			assert.Equal(t, 1, failure.FailureCount)
		})
	}
}

func TestRecordFailure_WindowResetClearsStaleBlock(t *testing.T) {
	config := scenarioConfig()
	config.BlockDuration = time.Hour
	tracker, repo, clock := newTestTracker(t, config)
	ctx := context.Background()
	failN(t, tracker, "192.0.2.1", 5)

	clock.Advance(2 * time.Hour)
	failure, err := tracker.RecordFailure(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 1, failure.FailureCount)

	record, err := repo.Get(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Nil(t, record.BlockedUntil)
}

func TestRecordFailure_RemainingNeverNegative(t *testing.T) {
	tracker, _, _ := newTestTracker(t, scenarioConfig())
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		failure, err := tracker.RecordFailure(ctx, "192.0.2.1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, failure.RemainingAttempts, 0)
		assert.NotContains(t, failure.Message, "-")
	}
}

func TestEvaluateBlockThreshold_NoRecord(t *testing.T) {
	tracker, repo, _ := newTestTracker(t, scenarioConfig())

	status, err := tracker.EvaluateBlockThreshold(context.Background(), "192.0.2.1")

	require.NoError(t, err)
	assert.False(t, status.Blocked)
	assert.Equal(t, 0, repo.Len())
}

func TestHandleLoginSuccess_ClearsBlockedAddress(t *testing.T) {
	tracker, _, clock := newTestTracker(t, scenarioConfig())
	ctx := context.Background()
	failN(t, tracker, "192.0.2.1", 5)

	clock.Advance(time.Second)
	require.NoError(t, tracker.HandleLoginSuccess(ctx, "192.0.2.1"))

	status, err := tracker.IsBlocked(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, status.Blocked)

	failure, err := tracker.RecordFailure(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 1, failure.FailureCount)
}

func TestHandleLoginSuccess_ClearsAccumulatingAddress(t *testing.T) {
	tracker, repo, clock := newTestTracker(t, scenarioConfig())
	ctx := context.Background()
	failN(t, tracker, "192.0.2.1", 3)

	clock.Advance(time.Second)
	require.NoError(t, tracker.HandleLoginSuccess(ctx, "192.0.2.1"))

	record, err := repo.Get(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 0, record.FailureCount)
	assert.Nil(t, record.BlockedUntil)
	assert.Equal(t, clock.Now(), record.LastAttemptAt)
}

func TestHandleLoginSuccess_NoRecordIsNoop(t *testing.T) {
	tracker, repo, _ := newTestTracker(t, scenarioConfig())

	require.NoError(t, tracker.HandleLoginSuccess(context.Background(), "192.0.2.1"))
	assert.Equal(t, 0, repo.Len())
}

func TestStatus_States(t *testing.T) {
	tracker, _, clock := newTestTracker(t, scenarioConfig())
	ctx := context.Background()

	status, err := tracker.Status(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, models.StateClear, status.State)
	assert.Equal(t, 5, status.RemainingAttempts)
	assert.Nil(t, status.LastAttemptAt)

	failN(t, tracker, "192.0.2.1", 2)
	status, err = tracker.Status(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, models.StateAccumulating, status.State)
	assert.Equal(t, 2, status.FailureCount)
	assert.Equal(t, 3, status.RemainingAttempts)

	failN(t, tracker, "192.0.2.1", 3)
	clock.Advance(10 * time.Second)
	status, err = tracker.Status(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, models.StateBlocked, status.State)
	assert.Equal(t, 20, status.RetryAfterSeconds)
	require.NotNil(t, status.BlockedUntil)

	clock.Advance(20 * time.Second)
	status, err = tracker.Status(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, models.StateClear, status.State)
}

func TestStatus_DoesNotClearExpiredBlock(t *testing.T) {
	tracker, repo, clock := newTestTracker(t, scenarioConfig())
	ctx := context.Background()
	failN(t, tracker, "192.0.2.1", 5)
	clock.Advance(time.Minute)

	_, err := tracker.Status(ctx, "192.0.2.1")
	require.NoError(t, err)

	record, err := repo.Get(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 5, record.FailureCount)
	assert.NotNil(t, record.BlockedUntil)
}

func TestThrottleTracker_EmptyAddress(t *testing.T) {
	tracker, _, _ := newTestTracker(t, scenarioConfig())
	ctx := context.Background()

	_, err := tracker.IsBlocked(ctx, "")
	assert.ErrorIs(t, err, models.ErrInvalidAddress)
	_, err = tracker.HandleLoginFailure(ctx, "")
	assert.ErrorIs(t, err, models.ErrInvalidAddress)
	assert.ErrorIs(t, tracker.HandleLoginSuccess(ctx, ""), models.ErrInvalidAddress)
}

func TestThrottleTracker_PropagatesStorageErrors(t *testing.T) {
	storeErr := errors.New("connection refused")
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("get failure", func(t *testing.T) {
		tracker := services.NewThrottleTracker(&failingRepo{getErr: storeErr}, scenarioConfig(), logger)

		_, err := tracker.IsBlocked(ctx, "192.0.2.1")
		assert.ErrorIs(t, err, storeErr)
		_, err = tracker.HandleLoginFailure(ctx, "192.0.2.1")
		assert.ErrorIs(t, err, storeErr)
		assert.ErrorIs(t, tracker.HandleLoginSuccess(ctx, "192.0.2.1"), storeErr)
		_, err = tracker.Status(ctx, "192.0.2.1")
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("save failure", func(t *testing.T) {
		tracker := services.NewThrottleTracker(&failingRepo{saveErr: storeErr}, scenarioConfig(), logger)

		_, err := tracker.RecordFailure(ctx, "192.0.2.1")
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("save failure on lazy expiry", func(t *testing.T) {
		expired := time.Now().Add(-time.Minute)
		repo := &failingRepo{
			saveErr: storeErr,
			record:  &models.AttemptRecord{Address: "192.0.2.1", FailureCount: 5, BlockedUntil: &expired},
		}
		tracker := services.NewThrottleTracker(repo, scenarioConfig(), logger)

		_, err := tracker.IsBlocked(ctx, "192.0.2.1")
		assert.ErrorIs(t, err, storeErr)
	})
}
