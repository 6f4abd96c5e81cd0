package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/BradenHooton/ipthrottle/internal/auth"
	"github.com/BradenHooton/ipthrottle/internal/models"
	pkgauth "github.com/BradenHooton/ipthrottle/pkg/auth"
	pkglogger "github.com/BradenHooton/ipthrottle/pkg/logger"
)

// UserRepository defines the credential lookups the auth service needs
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// LoginThrottler records login outcomes per client address
type LoginThrottler interface {
	HandleLoginFailure(ctx context.Context, address string) (*FailureOutcome, error)
	HandleLoginSuccess(ctx context.Context, address string) error
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	tm          *auth.TokenManager
	throttle    LoginThrottler
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, tm *auth.TokenManager, throttle LoginThrottler, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		tm:          tm,
		throttle:    throttle,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AuthResponse represents the response from a successful login
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	ExpiresIn   int           `json:"expires_in"`
	User        *UserResponse `json:"user"`
}

// Login authenticates a user and feeds the outcome into the throttle for ipAddress.
// Credential failures return a *models.LoginError wrapping ErrUnauthorized, or
// ErrRateLimitExceeded when this failure triggered a block.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		if !errors.Is(err, models.ErrUnauthorized) {
			return nil, err
		}
		return nil, s.handleFailure(ctx, ipAddress, userAgent, user)
	}

	if err := s.throttle.HandleLoginSuccess(ctx, ipAddress); err != nil {
		s.logger.Error("failed to reset login throttle", slog.String("ip_address", ipAddress), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return &AuthResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(s.tm.AccessTokenExpiry().Seconds()),
		User:        userModelToResponse(user),
	}, nil
}

// authenticate returns ErrUnauthorized for unknown users and wrong passwords alike.
// The user is returned alongside ErrUnauthorized when it exists, for audit purposes.
func (s *AuthService) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return user, models.ErrUnauthorized
	}

	return user, nil
}

func (s *AuthService) handleFailure(ctx context.Context, ipAddress, userAgent string, user *models.User) error {
	outcome, err := s.throttle.HandleLoginFailure(ctx, ipAddress)
	if err != nil {
		s.logger.Error("failed to record login failure", slog.String("ip_address", ipAddress), slog.Any("error", err))
		return models.ErrInternalServer
	}

	event := pkglogger.AuditEvent{
		EventType:     "login_failed",
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		FailureReason: "invalid_credentials",
		Success:       false,
	}
	if user != nil {
		event.UserID = user.ID
	}
	s.logger.Info("login failed: invalid credentials", slog.Int("remaining_attempts", outcome.RemainingAttempts))
	s.auditLogger.LogAuthAttempt(event)

	if outcome.Blocked {
		s.auditLogger.LogThrottleEvent(pkglogger.ThrottleEvent{
			EventType: "address_blocked",
			IPAddress: ipAddress,
			Duration:  outcome.RetryAfter,
		})
		return &models.LoginError{
			Err:        models.ErrRateLimitExceeded,
			Message:    outcome.Message(),
			RetryAfter: int(math.Ceil(outcome.RetryAfter.Seconds())),
		}
	}

	return &models.LoginError{
		Err:     models.ErrUnauthorized,
		Message: outcome.Message(),
	}
}

// EnsureUser creates the user if the email is not registered yet
func (s *AuthService) EnsureUser(ctx context.Context, email, password, name, role string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if user exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return err
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := s.repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         name,
		Role:         role,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.auditLogger.LogAccountAction("user_created", created.ID, "", map[string]string{"role": role})
	return nil
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}
