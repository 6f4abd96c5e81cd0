package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/ipthrottle/internal/auth"
	"github.com/BradenHooton/ipthrottle/internal/models"
	"github.com/BradenHooton/ipthrottle/internal/services"
	pkghttp "github.com/BradenHooton/ipthrottle/pkg/http"
	pkglogger "github.com/BradenHooton/ipthrottle/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// ThrottleServiceInterface defines the tracker operations exposed to operators
type ThrottleServiceInterface interface {
	Status(ctx context.Context, address string) (*services.AddressStatus, error)
	HandleLoginSuccess(ctx context.Context, address string) error
}

// ThrottleHandler serves the admin view of per-address login throttles
type ThrottleHandler struct {
	service     ThrottleServiceInterface
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewThrottleHandler creates a new ThrottleHandler
func NewThrottleHandler(service ThrottleServiceInterface, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *ThrottleHandler {
	return &ThrottleHandler{
		service:     service,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// GetStatus handles GET /admin/throttle/{address}
func (h *ThrottleHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if err := ValidateAddress(address); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	status, err := h.service.Status(r.Context(), address)
	if err != nil {
		h.writeServiceError(w, address, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// Reset handles DELETE /admin/throttle/{address}, clearing the failure count and any block
func (h *ThrottleHandler) Reset(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if err := ValidateAddress(address); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.HandleLoginSuccess(r.Context(), address); err != nil {
		h.writeServiceError(w, address, err)
		return
	}

	event := pkglogger.ThrottleEvent{EventType: "throttle_reset", IPAddress: address}
	if claims := auth.GetUserFromContext(r.Context()); claims != nil {
		event.ActorID = claims.UserID
	}
	h.auditLogger.LogThrottleEvent(event)

	w.WriteHeader(http.StatusNoContent)
}

func (h *ThrottleHandler) writeServiceError(w http.ResponseWriter, address string, err error) {
	if errors.Is(err, models.ErrInvalidAddress) {
		pkghttp.WriteBadRequest(w, "Invalid address")
		return
	}
	h.logger.Error("throttle store operation failed",
		slog.String("ip_address", address),
		slog.Any("error", err))
	pkghttp.WriteInternalError(w, "Internal server error")
}
