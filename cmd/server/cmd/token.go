package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/campus-events/server/internal/auth"
)

var (
	tokenRole    string
	tokenSubject string
	tokenExpiry  time.Duration
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the webhook or admin-sync endpoints",
		Long: `Issue an HS256 bearer token signed with WEBHOOK_SECRET.

The admin portal presents an "admin-portal" token on
POST /api/webhooks/admin/event-status. Operators use an "operator" token
for /api/admin-sync/*.

Examples:
  # Token for the admin portal
  server token --role admin-portal --subject admin-portal

  # Short-lived operator token
  server token --role operator --subject alice --expiry 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if cfg.Webhook.Secret == "" {
				return fmt.Errorf("WEBHOOK_SECRET is not set")
			}
			role := auth.NormalizeRole(tokenRole)
			if role == "" {
				return fmt.Errorf("unknown role %q (want %s or %s)", tokenRole, auth.RoleAdminPortal, auth.RoleOperator)
			}
			expiry := cfg.Webhook.Expiry
			if tokenExpiry > 0 {
				expiry = tokenExpiry
			}

			manager := auth.NewJWTManager(cfg.Webhook.Secret, expiry, cfg.Webhook.Issuer)
			token, err := manager.Generate(tokenSubject, role)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleAdminPortal), "token role (admin-portal, operator)")
	cmd.Flags().StringVar(&tokenSubject, "subject", "admin-portal", "token subject")
	cmd.Flags().DurationVar(&tokenExpiry, "expiry", 0, "token lifetime (default: WEBHOOK_TOKEN_EXPIRY)")
	return cmd
}
