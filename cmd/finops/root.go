package main

import (
	"context"
	"fmt"

	"github.com/alaraf/fleet-finance/internal/app"
	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "1.0.0"

// cli carries what the subcommands share. cfg and log are filled in by the
// root command before any subcommand runs.
type cli struct {
	cfg         *config.Config
	log         *zap.Logger
	withSecrets bool
	bootstrap   func(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app.App, error)
}

func newRootCmd() *cobra.Command {
	c := &cli{bootstrap: app.Bootstrap}

	root := &cobra.Command{
		Use:   "finops",
		Short: "Operator CLI for the fleet finance service",
		Long: `finops runs the fleet finance batch jobs on demand, previews penalties under
the configured policy and issues bearer tokens for service callers.

Configuration is read the same way as the API server: config.json in the
working directory, a .env file and environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVar(&c.withSecrets, "secrets", false, "Resolve secrets from Azure Key Vault as the API server does")

	root.AddCommand(
		newRunCmd(c),
		newJobsCmd(c),
		newPenaltyCmd(c),
		newIssueTokenCmd(c),
	)
	return root
}

func (c *cli) load(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	c.log = log.With(zap.String("component", "finops"))

	if c.withSecrets {
		cfg, err = config.LoadWithSecrets(ctx, c.log)
		if err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}
	c.cfg = cfg
	return nil
}
