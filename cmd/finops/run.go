package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errJobFailed makes the process exit non-zero when a unit failed
var errJobFailed = errors.New("job finished with failures")

func newRunCmd(c *cli) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Run a batch job once",
		Long: `Run one of the registered batch jobs immediately and print its report as JSON.

A real run is recorded in the job run history and its report is archived like
a scheduled run. A dry run plans the work, writes nothing and is not recorded.`,
		Example: `  # See what the cadence job would create
  finops run invoice_cadence --dry-run

  # Merge duplicate invoices
  finops run invoice_reconcile`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := c.bootstrap(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Runner.RunNow(ctx, args[0], dryRun)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if report.HasFailures() {
				_, _, failed := report.Counts()
				c.log.Warn("job finished with failures", zap.String("job", args[0]), zap.Int("failed", failed))
				return errJobFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the work without writing anything")
	return cmd
}
