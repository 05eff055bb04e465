package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/alaraf/fleet-finance/internal/jobs"
	"github.com/spf13/cobra"
)

func newJobsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the batch jobs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the registered jobs and their schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tSCHEDULE")
			for _, job := range jobs.FinanceJobs(&c.cfg.Jobs, jobs.Services{}) {
				schedule := job.Schedule
				if schedule == "" {
					schedule = "-"
				}
				fmt.Fprintf(w, "%s\t%s\n", job.Name, schedule)
			}
			return w.Flush()
		},
	})

	var job string
	var limit int
	runs := &cobra.Command{
		Use:   "runs",
		Short: "Show the latest recorded job runs",
		Args:  cobra.NoArgs,
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

			recent, err := a.Repositories.JobRuns.ListRecent(ctx, job, limit)
			if err != nil {
				return fmt.Errorf("failed to list job runs: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tJOB\tOK\tSKIPPED\tFAILED\tDURATION\tERROR")
			for _, run := range recent {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					run.StartedAt.UTC().Format(time.RFC3339),
					run.JobName,
					run.Succeeded, run.Skipped, run.Failed,
					run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
					run.Error,
				)
			}
			return w.Flush()
		},
	}
	runs.Flags().StringVar(&job, "job", "", "Only show runs of this job")
	runs.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	cmd.AddCommand(runs)

	return cmd
}
