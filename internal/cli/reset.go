package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

func newResetCmd(open Opener, newLogger func(io.Writer) *slog.Logger) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset <address>...",
		Short: "Clear the failure count and any active block for client addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset requires --yes")
			}

			logger := newLogger(cmd.ErrOrStderr())
			tracker, closeStore, err := open(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer closeStore() // nolint:errcheck // best-effort cleanup

			for _, address := range args {
				address = strings.TrimSpace(address)
				if err := tracker.HandleLoginSuccess(cmd.Context(), address); err != nil {
					return fmt.Errorf("%s: %w", address, err)
				}
				logger.Info("throttle reset", slog.String("ip_address", address))
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", address); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}
