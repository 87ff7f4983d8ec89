package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	accountmodels "kyc/internal/account/models"
	jwttoken "kyc/internal/jwt_token"
	id "kyc/pkg/domain"
	"kyc/pkg/platform/sentinel"
)

func tokenCmd() *cobra.Command {
	var (
		user      string
		ttl       time.Duration
		provision bool
		email     string
		fullName  string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user",
		Long: `Signs an access token with the configured JWT key. With --provision the
account is created first when it does not exist yet (requires a database).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadServerConfig()
			if err != nil {
				return err
			}

			userID := id.NewUserID()
			if user != "" {
				if userID, err = id.ParseUserID(user); err != nil {
					return err
				}
			}

			if provision {
				if email == "" {
					return errors.New("--email is required with --provision")
				}
				stores, services, err := openServices(ctx)
				if err != nil {
					return err
				}
				defer closeAll(stores, services)

				account, err := accountmodels.NewAccount(userID, email, fullName, time.Now().UTC())
				if err != nil {
					return err
				}
				switch err := stores.Accounts.Create(ctx, account); {
				case errors.Is(err, sentinel.ErrConflict):
					fmt.Fprintf(cmd.ErrOrStderr(), "account %s already exists\n", userID)
				case err != nil:
					return fmt.Errorf("create account: %w", err)
				}
			}

			jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
			token, err := jwtService.GenerateAccessToken(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user_id: %s\ntoken:   %s\n", userID, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (a new one is generated when empty)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&provision, "provision", false, "create the account if missing")
	cmd.Flags().StringVar(&email, "email", "", "account email for --provision")
	cmd.Flags().StringVar(&fullName, "name", "", "account full name for --provision")
	return cmd
}
