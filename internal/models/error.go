package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Throttling errors
	ErrRateLimitExceeded = errors.New("too many failed login attempts")
	ErrInvalidAddress    = errors.New("client address is required")
)

// LoginError carries the throttling message produced for a failed login
type LoginError struct {
	Err        error
	Message    string
	RetryAfter int // seconds, set only when Err is ErrRateLimitExceeded
}

func (e *LoginError) Error() string {
	return e.Err.Error()
}

func (e *LoginError) Unwrap() error {
	return e.Err
}
