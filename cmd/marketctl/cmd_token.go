package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"agrinexus/internal/pkg/auth"
)

var (
	tokenRoles []string
	tokenTTL   time.Duration
)

// tokenCmd 签发调试用令牌，生产环境的令牌由账号服务签发
var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a signed access token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tok, err := issueToken(auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer), args[0], tokenRoles, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", []string{auth.RoleBuyer}, "Roles to embed (farmer, buyer, admin)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}

func issueToken(tokens *auth.TokenService, userID string, roles []string, ttl time.Duration) (string, error) {
	for _, r := range roles {
		switch r {
		case auth.RoleFarmer, auth.RoleBuyer, auth.RoleAdmin:
		default:
			return "", fmt.Errorf("unknown role %q", r)
		}
	}
	return tokens.Issue(userID, roles, ttl)
}
