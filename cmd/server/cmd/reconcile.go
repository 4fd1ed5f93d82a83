package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/campus-events/server/internal/config"
)

var (
	reconcileDryRun  bool
	reconcileTimeout time.Duration
	reconcileJSON    bool
)

func newReconcileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Push unsynced events to the admin portal",
		Long: `Run one reconciliation pass against the admin portal.

The pass probes the admin portal first and does nothing when it is down.
Otherwise it retries every unsynced, submitted event whose backoff has
expired. The pass holds the same lock as the scheduled job, so running it
while the server is reconciling reports "already running".

Examples:
  # Reconcile now
  server reconcile

  # List the events a pass would retry
  server reconcile --dry-run

  # Emit the report as JSON
  server reconcile --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd)
		},
	}

	cmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "list candidate events without pushing them")
	cmd.Flags().DurationVar(&reconcileTimeout, "timeout", 10*time.Minute, "maximum duration of the pass")
	cmd.Flags().BoolVar(&reconcileJSON, "json", false, "print the report as JSON")
	return cmd
}

func runReconcile(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := config.NewLogger(cfg.Logging)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, reconcileTimeout)
	defer cancel()

	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()

	if reconcileDryRun {
		candidates, err := a.reconciler.Candidates(ctx)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			fmt.Fprintln(out, "No events waiting for sync.")
			return nil
		}
		fmt.Fprintf(out, "%d event(s) would be pushed:\n", len(candidates))
		for _, event := range candidates {
			lastError := ""
			if event.Sync.LastError != nil {
				lastError = *event.Sync.LastError
			}
			fmt.Fprintf(out, "  #%d  %-40s attempts=%d  %s\n", event.ID, event.Title, event.Sync.Attempts, lastError)
		}
		return nil
	}

	report, err := a.reconciler.ReconcileAll(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if reconcileJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	switch {
	case !cfg.AdminSync.Enabled:
		fmt.Fprintln(out, "Admin sync is disabled (ADMIN_SYNC_ENABLED=false).")
	case report.Locked:
		fmt.Fprintln(out, "Another reconciliation pass is already running.")
	case report.RemoteDown:
		fmt.Fprintf(out, "Admin portal at %s is unavailable; nothing attempted.\n", cfg.AdminSync.PortalURL)
	default:
		fmt.Fprintf(out, "Attempted: %d  Succeeded: %d  Failed: %d  Skipped: %d  (%s)\n",
			report.Attempted, report.Succeeded, report.Failed, report.Skipped, report.Duration.Round(time.Millisecond))
	}
	return nil
}
