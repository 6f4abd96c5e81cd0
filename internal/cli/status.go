package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/ipthrottle/internal/services"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newStatusCmd(open Opener, newLogger func(io.Writer) *slog.Logger) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "status <address>...",
		Short: "Show throttle state for one or more client addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := strings.ToLower(strings.TrimSpace(outputFormat))
			if format != formatTable && format != formatJSON {
				return fmt.Errorf("unsupported output format: %s", outputFormat)
			}

			tracker, closeStore, err := open(cmd.Context(), newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer closeStore() // nolint:errcheck // best-effort cleanup

			statuses := make([]*services.AddressStatus, 0, len(args))
			for _, address := range args {
				status, err := tracker.Status(cmd.Context(), strings.TrimSpace(address))
				if err != nil {
					return fmt.Errorf("%s: %w", address, err)
				}
				statuses = append(statuses, status)
			}

			if format == formatJSON {
				payload, err := json.MarshalIndent(statuses, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderStatusTable(statuses))
			return err
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output-format", "o", formatTable, "Output format: table|json")
	return cmd
}

func renderStatusTable(statuses []*services.AddressStatus) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Address", "State", "Failures", "Remaining", "Last Attempt", "Blocked Until", "Retry After"})

	for _, s := range statuses {
		retryAfter := ""
		if s.RetryAfterSeconds > 0 {
			retryAfter = fmt.Sprintf("%ds", s.RetryAfterSeconds)
		}
		t.AppendRow(table.Row{
			s.Address,
			string(s.State),
			s.FailureCount,
			s.RemainingAttempts,
			formatTime(s.LastAttemptAt),
			formatTime(s.BlockedUntil),
			retryAfter,
		})
	}

	return t.Render()
}

func formatTime(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}
