package main

import (
	"fmt"

	"github.com/alaraf/fleet-finance/internal/auth"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newIssueTokenCmd(c *cli) *cobra.Command {
	var (
		userID  string
		name    string
		email   string
		company string
		roles   []string
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue an HS256 bearer token",
		Long: `Sign a bearer token with the configured JWT secret. The token carries the
company and roles the API uses for tenant scoping and role checks.`,
		Example: `  finops issue-token --company acme --role accountant --name "Billing robot"
  finops issue-token --role super_admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := uuid.New()
			if userID != "" {
				parsed, err := uuid.Parse(userID)
				if err != nil {
					return fmt.Errorf("invalid --user-id: %w", err)
				}
				id = parsed
			}

			parsedRoles := auth.ExtractRoles(roles)
			if len(parsedRoles) != len(roles) {
				return fmt.Errorf("unknown role in %v", roles)
			}
			if len(parsedRoles) == 0 {
				return fmt.Errorf("at least one --role is required")
			}
			if company != "" && !domain.IsValidCompanyID(company) {
				return fmt.Errorf("invalid --company %q", company)
			}

			user := &auth.UserContext{
				UserID:      id,
				DisplayName: name,
				Email:       email,
				Roles:       parsedRoles,
				CompanyID:   domain.CompanyID(company),
			}
			token, err := auth.NewJWTValidator(&c.cfg.JWT).IssueToken(user)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "Subject of the token (random when empty)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&company, "company", "", "Company the token is scoped to")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role to grant (repeatable)")
	return cmd
}
