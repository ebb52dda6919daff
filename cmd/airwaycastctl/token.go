package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/airwaycast/airwaycast/internal/auth"
)

var tokenFlags struct {
	user   string
	ttl    time.Duration
	scopes []string
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.SigningKey == "" {
			return errors.New("auth.signing_key is not configured")
		}
		svc := auth.NewJWTService(auth.JWTConfig{
			SigningKey: cfg.Auth.SigningKey,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		})
		token, expires, err := svc.GenerateAccessToken(tokenFlags.user, tokenFlags.ttl, tokenFlags.scopes...)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintln(cmd.ErrOrStderr(), "expires", expires.UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.user, "user", "", "subject user id")
	f.DurationVar(&tokenFlags.ttl, "ttl", auth.AccessTokenExpiry, "token lifetime")
	f.StringSliceVar(&tokenFlags.scopes, "scope", nil, "granted scope (risk:read_all, ops)")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
