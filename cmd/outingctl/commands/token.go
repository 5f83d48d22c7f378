package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	"github.com/noah-isme/hostel-outing-api/internal/service"
)

var knownRoles = []models.UserRole{
	models.RoleStudent,
	models.RoleFloorIncharge,
	models.RoleHostelIncharge,
	models.RoleWarden,
	models.RoleSecurity,
	models.RoleAdmin,
}

// NewTokenCmd mints an access token signed with the configured JWT secret.
// Production tokens come from the campus identity provider.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadRuntime()
			if err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			name, _ := cmd.Flags().GetString("name")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			token, err := mintToken(cfg.JWT.Secret, cfg.JWT.Issuer, userID, role, name, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().String("user", "", "User ID (required)")
	cmd.Flags().String("role", string(models.RoleStudent), "Role to embed")
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func mintToken(secret, issuer, userID, role, name string, ttl time.Duration) (string, error) {
	parsed, err := parseRole(role)
	if err != nil {
		return "", err
	}
	verifier, err := service.NewTokenVerifier(secret, issuer)
	if err != nil {
		return "", err
	}
	return verifier.Issue(models.JWTClaims{UserID: strings.TrimSpace(userID), Role: parsed, FullName: name}, ttl)
}

func parseRole(raw string) (models.UserRole, error) {
	candidate := models.UserRole(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")))
	for _, role := range knownRoles {
		if role == candidate {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", raw)
}
