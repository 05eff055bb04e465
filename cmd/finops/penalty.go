package main

import (
	"encoding/json"
	"fmt"

	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/delinquency"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/spf13/cobra"
)

func newPenaltyCmd(c *cli) *cobra.Command {
	var company string
	var days int

	cmd := &cobra.Command{
		Use:   "penalty",
		Short: "Preview the late fee for a number of overdue days",
		Long: `Print the penalty breakdown the configured policy yields for one invoice that
is the given number of days overdue. Company overrides apply when --company is set.`,
		Example: `  finops penalty --days 96
  finops penalty --days 45 --company acme`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			policies, err := config.NewPolicyProvider(&c.cfg.Policy)
			if err != nil {
				return err
			}
			policy := policies.For(domain.CompanyID(company))

			out, err := json.MarshalIndent(delinquency.CalculatePenaltyBreakdown(policy.Penalty, days), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode breakdown: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Days the invoice is overdue")
	cmd.Flags().StringVar(&company, "company", "", "Company whose policy override applies")
	_ = cmd.MarkFlagRequired("days")
	return cmd
}
