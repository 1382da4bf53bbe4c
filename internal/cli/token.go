package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"polymer-learn-service/internal/auth"
	"polymer-learn-service/internal/config"
)

// NewTokenCmd issues a signed bearer token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		name    string
		role    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) must be set")
			}
			a := auth.NewAuthenticator(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
			token, err := a.Issue(auth.User{ID: subject, Name: name, Role: auth.Role(role)})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleStudent), "student or instructor")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
