package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BradenHooton/ipthrottle/internal/config"
	"github.com/BradenHooton/ipthrottle/internal/repositories"
	"github.com/BradenHooton/ipthrottle/internal/services"
	"github.com/spf13/cobra"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// Tracker is the subset of the throttle tracker the CLI drives
type Tracker interface {
	Status(ctx context.Context, address string) (*services.AddressStatus, error)
	HandleLoginSuccess(ctx context.Context, address string) error
}

// Opener connects to the configured attempt record store and returns a tracker
// over it plus a function that releases the store
type Opener func(ctx context.Context, logger *slog.Logger) (Tracker, func() error, error)

// NewRootCmd builds the throttlectl command tree
func NewRootCmd(open Opener) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "throttlectl",
		Short: "Inspect and reset per-address login throttles",
		Long: `throttlectl reads the same environment configuration as the API server
(STORE_DRIVER, DB_*, SQLITE_PATH, REDIS_*, THROTTLE_*) and operates directly on
the attempt record store.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	newLogger := func(stderr io.Writer) *slog.Logger {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	}

	root.AddCommand(newStatusCmd(open, newLogger))
	root.AddCommand(newResetCmd(open, newLogger))
	return root
}

// OpenFromEnv opens the store selected by the environment configuration
func OpenFromEnv(ctx context.Context, logger *slog.Logger) (Tracker, func() error, error) {
	cfg, err := config.LoadStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := repositories.OpenAttemptRecordStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	tracker := services.NewThrottleTracker(store.Records, services.ThrottleConfig{
		BlockDuration:     cfg.Throttle.BlockDuration,
		MaxFailedAttempts: cfg.Throttle.MaxFailedAttempts,
		ResetWindow:       cfg.Throttle.ResetWindow,
	}, logger)

	if cfg.Store.Driver == config.StoreMemory {
		logger.Warn("STORE_DRIVER=memory: throttlectl sees an empty store, not the API server's")
	}
	return tracker, store.Close, nil
}

// Execute runs throttlectl against the environment-configured store
func Execute() error {
	root := NewRootCmd(OpenFromEnv)
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	return root.Execute()
}
