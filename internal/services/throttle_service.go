package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/BradenHooton/ipthrottle/internal/models"
)

const (
	DefaultBlockDuration     = 15 * time.Minute
	DefaultMaxFailedAttempts = 5
	DefaultResetWindow       = 5 * time.Minute
)

// AttemptRecordRepository defines the keyed record store the tracker depends on.
// Get returns nil, nil when no record exists. Save upserts by address.
type AttemptRecordRepository interface {
	Get(ctx context.Context, address string) (*models.AttemptRecord, error)
	Save(ctx context.Context, record *models.AttemptRecord) error
}

// ThrottleConfig holds configuration for failed-login throttling
type ThrottleConfig struct {
	BlockDuration     time.Duration
	MaxFailedAttempts int
	ResetWindow       time.Duration
}

// DefaultThrottleConfig returns the default throttle settings (5 failures, 5 minute window, 15 minute block)
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		BlockDuration:     DefaultBlockDuration,
		MaxFailedAttempts: DefaultMaxFailedAttempts,
		ResetWindow:       DefaultResetWindow,
	}
}

func (c ThrottleConfig) withDefaults() ThrottleConfig {
	if c.BlockDuration <= 0 {
		c.BlockDuration = DefaultBlockDuration
	}
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	if c.ResetWindow <= 0 {
		c.ResetWindow = DefaultResetWindow
	}
	return c
}

// ThrottleStatus is the result of a block check
type ThrottleStatus struct {
	Blocked    bool
	Message    string
	RetryAfter time.Duration
}

// FailureRecord is the result of recording a single failed login
type FailureRecord struct {
	FailureCount      int
	RemainingAttempts int
	Message           string
}

// FailureOutcome combines the counter update and threshold evaluation for a failed login
type FailureOutcome struct {
	Blocked           bool
	Messages          []string
	RemainingAttempts int
	RetryAfter        time.Duration
}

// Message joins the outcome messages into a single line
func (o *FailureOutcome) Message() string {
	return strings.Join(o.Messages, " ")
}

// AddressStatus is a read-only snapshot of an address's throttle state
type AddressStatus struct {
	Address           string              `json:"address"`
	State             models.AddressState `json:"state"`
	FailureCount      int                 `json:"failure_count"`
	RemainingAttempts int                 `json:"remaining_attempts"`
	LastAttemptAt     *time.Time          `json:"last_attempt_at,omitempty"`
	BlockedUntil      *time.Time          `json:"blocked_until,omitempty"`
	RetryAfterSeconds int                 `json:"retry_after_seconds,omitempty"`
}

// ThrottleTracker counts failed logins per client address and blocks addresses
// that reach the configured threshold.
//
// Each operation is a read-modify-write against the repository. Concurrent requests
// for the same address may under-count; operations on different addresses are independent.
type ThrottleTracker struct {
	repo   AttemptRecordRepository
	config ThrottleConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewThrottleTracker creates a new ThrottleTracker. Zero config values fall back to defaults.
func NewThrottleTracker(repo AttemptRecordRepository, config ThrottleConfig, logger *slog.Logger) *ThrottleTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThrottleTracker{
		repo:   repo,
		config: config.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// clock returns the current time at microsecond precision, the finest
// resolution every backend round-trips (Postgres timestamptz)
func (t *ThrottleTracker) clock() time.Time {
	return t.now().Truncate(time.Microsecond)
}

// SetClock replaces the time source
func (t *ThrottleTracker) SetClock(now func() time.Time) {
	t.now = now
}

// Config returns the effective configuration
func (t *ThrottleTracker) Config() ThrottleConfig {
	return t.config
}

// IsBlocked reports whether the address is currently blocked. A block that has
// expired is cleared and persisted here rather than by a background sweep.
func (t *ThrottleTracker) IsBlocked(ctx context.Context, address string) (*ThrottleStatus, error) {
	if address == "" {
		return nil, models.ErrInvalidAddress
	}

	record, err := t.repo.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt record: %w", err)
	}

	if record == nil || record.FailureCount < t.config.MaxFailedAttempts {
		return &ThrottleStatus{Blocked: false}, nil
	}

	now := t.clock()
	if !record.IsBlockActive(now) {
		record.Clear()
		if err := t.repo.Save(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to clear expired block: %w", err)
		}
		t.logger.Info("throttle block expired", slog.String("ip_address", address))
		return &ThrottleStatus{Blocked: false}, nil
	}

	remaining := record.BlockedUntil.Sub(now)
	return &ThrottleStatus{
		Blocked:    true,
		Message:    blockedMessage(ceilSeconds(remaining)),
		RetryAfter: remaining,
	}, nil
}

// RecordFailure counts a failed login for the address. A failure arriving more than
// ResetWindow after the previous one starts a fresh sequence at 1.
func (t *ThrottleTracker) RecordFailure(ctx context.Context, address string) (*FailureRecord, error) {
	if address == "" {
		return nil, models.ErrInvalidAddress
	}

	record, err := t.repo.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt record: %w", err)
	}

	now := t.clock()
	switch {
	case record == nil:
		record = &models.AttemptRecord{
			Address:      address,
			FailureCount: 1,
		}
	case now.Sub(record.LastAttemptAt) > t.config.ResetWindow:
		record.FailureCount = 1
		record.BlockedUntil = nil
	default:
		record.FailureCount++
	}
	record.LastAttemptAt = now

	if err := t.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save attempt record: %w", err)
	}

	remaining := t.remainingAttempts(record.FailureCount)
	t.logger.Debug("login failure recorded",
		slog.String("ip_address", address),
		slog.Int("failed_attempts", record.FailureCount),
		slog.Int("remaining_attempts", remaining))

	return &FailureRecord{
		FailureCount:      record.FailureCount,
		RemainingAttempts: remaining,
		Message:           remainingMessage(remaining),
	}, nil
}

// EvaluateBlockThreshold starts a block for the address once its failure count
// has reached MaxFailedAttempts.
func (t *ThrottleTracker) EvaluateBlockThreshold(ctx context.Context, address string) (*ThrottleStatus, error) {
	if address == "" {
		return nil, models.ErrInvalidAddress
	}

	record, err := t.repo.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt record: %w", err)
	}

	if record == nil || record.FailureCount < t.config.MaxFailedAttempts {
		return &ThrottleStatus{Blocked: false}, nil
	}

	blockedUntil := t.clock().Add(t.config.BlockDuration)
	record.BlockedUntil = &blockedUntil
	if err := t.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save block: %w", err)
	}

	t.logger.Warn("address blocked",
		slog.String("ip_address", address),
		slog.Int("failed_attempts", record.FailureCount),
		slog.Duration("block_duration", t.config.BlockDuration))

	return &ThrottleStatus{
		Blocked:    true,
		Message:    blockedMessage(ceilSeconds(t.config.BlockDuration)),
		RetryAfter: t.config.BlockDuration,
	}, nil
}

// HandleLoginFailure records the failure and then evaluates the block threshold.
// The count must be updated first for the threshold check to see it.
func (t *ThrottleTracker) HandleLoginFailure(ctx context.Context, address string) (*FailureOutcome, error) {
	failure, err := t.RecordFailure(ctx, address)
	if err != nil {
		return nil, err
	}

	status, err := t.EvaluateBlockThreshold(ctx, address)
	if err != nil {
		return nil, err
	}

	outcome := &FailureOutcome{
		Blocked:           status.Blocked,
		Messages:          []string{failure.Message},
		RemainingAttempts: failure.RemainingAttempts,
	}
	if status.Blocked {
		outcome.Messages = append(outcome.Messages, status.Message)
		outcome.RetryAfter = status.RetryAfter
	}
	return outcome, nil
}

// HandleLoginSuccess clears the address's failure sequence and any block.
// It is a no-op when the address has no record.
func (t *ThrottleTracker) HandleLoginSuccess(ctx context.Context, address string) error {
	if address == "" {
		return models.ErrInvalidAddress
	}

	record, err := t.repo.Get(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to get attempt record: %w", err)
	}
	if record == nil {
		return nil
	}

	wasBlocked := record.IsBlockActive(t.clock())
	record.Clear()
	record.LastAttemptAt = t.clock()
	if err := t.repo.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to reset attempt record: %w", err)
	}

	t.logger.Info("throttle counter reset",
		slog.String("ip_address", address),
		slog.Bool("was_blocked", wasBlocked))
	return nil
}

// Status returns a snapshot of the address without modifying the stored record
func (t *ThrottleTracker) Status(ctx context.Context, address string) (*AddressStatus, error) {
	if address == "" {
		return nil, models.ErrInvalidAddress
	}

	record, err := t.repo.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt record: %w", err)
	}

	status := &AddressStatus{
		Address:           address,
		State:             models.StateClear,
		RemainingAttempts: t.config.MaxFailedAttempts,
	}
	if record == nil {
		return status, nil
	}

	now := t.clock()
	lastAttempt := record.LastAttemptAt
	status.LastAttemptAt = &lastAttempt
	status.FailureCount = record.FailureCount
	status.RemainingAttempts = t.remainingAttempts(record.FailureCount)

	switch {
	case record.FailureCount >= t.config.MaxFailedAttempts && record.IsBlockActive(now):
		status.State = models.StateBlocked
		blockedUntil := *record.BlockedUntil
		status.BlockedUntil = &blockedUntil
		status.RetryAfterSeconds = ceilSeconds(blockedUntil.Sub(now))
	case record.FailureCount >= t.config.MaxFailedAttempts:
		// expired but not yet cleared by IsBlocked
		status.State = models.StateClear
		status.FailureCount = 0
		status.RemainingAttempts = t.config.MaxFailedAttempts
	case record.FailureCount > 0:
		status.State = models.StateAccumulating
	}
	return status, nil
}

func (t *ThrottleTracker) remainingAttempts(failureCount int) int {
	remaining := t.config.MaxFailedAttempts - failureCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(time.Second)))
}

func remainingMessage(remaining int) string {
	return fmt.Sprintf("Invalid credentials. You have %d attempts before being blocked.", remaining)
}

func blockedMessage(seconds int) string {
	return fmt.Sprintf("Too many failed login attempts. Please try again in %d seconds.", seconds)
}
