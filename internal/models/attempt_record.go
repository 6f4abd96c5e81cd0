package models

import "time"

// AttemptRecord tracks consecutive failed logins for a single client address
type AttemptRecord struct {
	Address       string     `db:"address" json:"address"`
	FailureCount  int        `db:"failure_count" json:"failure_count"`
	LastAttemptAt time.Time  `db:"last_attempt_at" json:"last_attempt_at"`
	BlockedUntil  *time.Time `db:"blocked_until" json:"blocked_until,omitempty"`
}

// IsBlockActive reports whether the record carries a block that has not yet expired
func (r *AttemptRecord) IsBlockActive(now time.Time) bool {
	return r.BlockedUntil != nil && now.Before(*r.BlockedUntil)
}

// Clear resets the failure sequence and lifts any block
func (r *AttemptRecord) Clear() {
	r.FailureCount = 0
	r.BlockedUntil = nil
}

// AddressState is the derived throttle state of an address
type AddressState string

const (
	StateClear        AddressState = "clear"
	StateAccumulating AddressState = "accumulating"
	StateBlocked      AddressState = "blocked"
)
