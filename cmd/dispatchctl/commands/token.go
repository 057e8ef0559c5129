package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ignite/campaign-dispatch/internal/app"
	"github.com/ignite/campaign-dispatch/internal/auth"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/repository/postgres"
)

var (
	tokenUserID string
	tokenEmail  string
	tokenRole   string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for a user",
	Long: `Creates or updates the user row and prints a signed bearer token.
A new user id is generated when --user is omitted.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "User id")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "User email")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleApplicant),
		"Role: applicant, approver, admin")
}

func runToken(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	role := domain.Role(tokenRole)
	switch role {
	case domain.RoleApplicant, domain.RoleApprover, domain.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	id := uuid.New()
	if tokenUserID != "" {
		var err error
		if id, err = uuid.Parse(tokenUserID); err != nil {
			return fmt.Errorf("user id: %w", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) is required")
	}

	db, err := app.OpenDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.NewUserRepo(db).EnsureUser(ctx, id, tokenEmail, role); err != nil {
		return err
	}

	tok, err := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL()).
		IssueToken(domain.Actor{ID: id, Role: role})
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(map[string]string{"user_id": id.String(), "role": string(role), "token": tok})
	}
	fmt.Printf("user %s (%s)\n%s\n", id, role, tok)
	return nil
}
