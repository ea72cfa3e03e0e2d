package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/mistakebook/internal/server"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint an API bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ttl := cfg.Auth.TokenTTL
		if cmd.Flags().Changed("ttl") {
			ttl, _ = cmd.Flags().GetDuration("ttl")
		}

		tok, err := server.SignToken([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, args[0], ttl)
		if err != nil {
			return fmt.Errorf("%w (set auth.jwt_secret or MISTAKEBOOK_AUTH_JWT_SECRET)", err)
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default auth.token_ttl; 0 never expires)")
}
