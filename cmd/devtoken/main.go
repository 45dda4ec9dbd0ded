// Command devtoken mints an HS256 bearer token for local development.
//
//	go run ./cmd/devtoken --user u1 --email dev@example.com
//
// The secret is read from auth.jwt_secret in config.yaml or ROBIN_AUTH__JWT_SECRET.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/robin-backend/internal/auth"
	"github.com/tjfontaine/robin-backend/internal/config"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath string
		user       string
		email      string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:          "devtoken",
		Short:        "Mint a development bearer token",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			token, err := auth.NewAuthenticator(cfg.Auth.JWTSecret).Generate(user, email, ttl)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "\nUse it with:\n  curl -H 'Authorization: Bearer %s' ...\n", token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	cmd.Flags().StringVar(&user, "user", "", "user id placed in the sub claim")
	cmd.Flags().StringVar(&email, "email", "", "optional email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime; 0 never expires")
	_ = cmd.MarkFlagRequired("user")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
