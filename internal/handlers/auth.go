package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BradenHooton/ipthrottle/internal/middleware"
	"github.com/BradenHooton/ipthrottle/internal/models"
	"github.com/BradenHooton/ipthrottle/internal/services"
	pkghttp "github.com/BradenHooton/ipthrottle/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// Login handles POST /auth/login. Blocked addresses are normally rejected by
// the LoginThrottle middleware before reaching here.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress, ok := middleware.ClientIPFromContext(r.Context())
	if !ok {
		ipAddress = pkghttp.ExtractClientIP(r, h.ipConfig)
	}

	authResp, err := h.service.Login(r.Context(), req.Email, req.Password, ipAddress, r.Header.Get("User-Agent"))
	if err != nil {
		writeLoginError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, authResp)
}

func writeLoginError(w http.ResponseWriter, err error) {
	var loginErr *models.LoginError
	if errors.As(err, &loginErr) {
		switch {
		case errors.Is(loginErr, models.ErrRateLimitExceeded):
			pkghttp.WriteThrottled(w, loginErr.Message, loginErr.RetryAfter)
		default:
			pkghttp.WriteUnauthorized(w, loginErr.Message)
		}
		return
	}

	switch {
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
