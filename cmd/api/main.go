package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/ipthrottle/internal/auth"
	"github.com/BradenHooton/ipthrottle/internal/config"
	"github.com/BradenHooton/ipthrottle/internal/handlers"
	middlewareCustom "github.com/BradenHooton/ipthrottle/internal/middleware"
	"github.com/BradenHooton/ipthrottle/internal/repositories"
	"github.com/BradenHooton/ipthrottle/internal/routes"
	"github.com/BradenHooton/ipthrottle/internal/services"
	pkghttp "github.com/BradenHooton/ipthrottle/pkg/http"
	pkglogger "github.com/BradenHooton/ipthrottle/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Store.Driver))

	// Initialize attempt record store
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := repositories.OpenAttemptRecordStore(startupCtx, cfg, logger)
	startupCancel()
	if err != nil {
		logger.Error("failed to open attempt record store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	tracker := services.NewThrottleTracker(store.Records, services.ThrottleConfig{
		BlockDuration:     cfg.Throttle.BlockDuration,
		MaxFailedAttempts: cfg.Throttle.MaxFailedAttempts,
		ResetWindow:       cfg.Throttle.ResetWindow,
	}, logger)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	auditLogger := pkglogger.NewAuditLogger(logger)
	userRepo := repositories.NewUserRepository()
	authService := services.NewAuthService(userRepo, tokenManager, tracker, logger, auditLogger)

	// Bootstrap admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, authService, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(router, routes.Dependencies{
		AuthHandler:     handlers.NewAuthHandler(authService, ipConfig),
		ThrottleHandler: handlers.NewThrottleHandler(tracker, logger, auditLogger),
		Throttle:        tracker,
		TokenManager:    tokenManager,
		IPConfig:        ipConfig,
		RateLimit:       middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Auth.LoginRequestsPerMinute},
		Logger:          logger,
	})
	router.Get("/health", handlers.Health(store, store.Driver, logger))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, authService *services.AuthService, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	if err := authService.EnsureUser(ctx, adminEmail, adminPassword, "Admin", "admin"); err != nil {
		return err
	}

	logger.Info("admin user ready", pkglogger.RedactedAttr("email", adminEmail, os.Getenv("ENV")))
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
