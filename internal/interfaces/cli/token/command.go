package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/payops/payops/internal/infrastructure/auth"
	"github.com/payops/payops/internal/infrastructure/permission"
	"github.com/payops/payops/internal/interfaces/cli/bootstrap"
)

var (
	env            string
	actor          string
	role           string
	organizationID string
	service        bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator or service token",
		Long: `Sign a JWT for an operator or a machine caller. The actor is recorded in the audit ledger for every change made with the token.
An organization restricts the token to that organization's data.`,
		RunE: run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVar(&actor, "actor", "", "Actor recorded in the audit ledger (required)")
	cmd.Flags().StringVar(&role, "role", permission.RoleOperator, "Role: admin, operator or viewer")
	cmd.Flags().StringVar(&organizationID, "organization", "", "Restrict the token to one organization")
	cmd.Flags().BoolVar(&service, "service", false, "Issue a non-expiring service token")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	switch role {
	case permission.RoleAdmin, permission.RoleOperator, permission.RoleViewer:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, log, err := bootstrap.Init(bootstrap.ResolveEnv(env))
	if err != nil {
		return err
	}

	tokenType := auth.TokenTypeAccess
	if service {
		tokenType = auth.TokenTypeService
	}
	signed, err := auth.NewJWTService(cfg.Auth.JWT).Generate(actor, role, organizationID, tokenType)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	log.Infow("token issued", "actor", actor, "role", role, "organization_id", organizationID, "type", tokenType)
	fmt.Fprintln(cmd.OutOrStdout(), signed)
	return nil
}
