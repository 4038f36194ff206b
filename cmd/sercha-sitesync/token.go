package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

type tokenOptions struct {
	subject string
	ttl     time.Duration
}

func newTokenCommand(a *app) *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with auth.jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("%w: auth.jwt_secret is not configured", domain.ErrInvalidInput)
			}
			ttl := opts.ttl
			if ttl <= 0 {
				ttl = a.cfg.Auth.TokenTTL
			}

			now := time.Now()
			expiresAt := now.Add(ttl)
			token, err := auth.NewAdapter(a.cfg.Auth.JWTSecret).GenerateToken(&domain.TokenClaims{
				Subject:   opts.subject,
				IssuedAt:  now.Unix(),
				ExpiresAt: expiresAt.Unix(),
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), domain.TokenResponse{Token: token, ExpiresAt: expiresAt})
		},
	}

	cmd.Flags().StringVar(&opts.subject, "subject", "cli", "token subject")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "token lifetime (default auth.token_ttl)")

	cmd.AddCommand(newHashKeyCommand())
	return cmd
}

// newHashKeyCommand prints the bcrypt hash to configure as auth.key_hash.
// The key is read from the argument or, when absent, the first line of stdin.
func newHashKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Hash an API key for auth.key_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("%w: no key given", domain.ErrInvalidInput)
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return fmt.Errorf("%w: key cannot be empty", domain.ErrInvalidInput)
			}

			hash, err := auth.NewAdapter("").HashKey(key)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
