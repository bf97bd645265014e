package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/activerow/internal/cli/ui"
	"github.com/conduit-lang/activerow/internal/web/auth"
)

var tokenTTL time.Duration

// NewTokenCommand creates the token command
func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint a bearer token for the HTTP API",
		Long: `Sign a token for <subject> carrying the --role roles with auth.secret.
The token is printed alone on stdout so it can be captured by scripts.`,
		Example: `  TOKEN=$(activerow token alice --role admin)
  curl -H "Authorization: Bearer $TOKEN" localhost:3000/user/1`,
		Args: cobra.ExactArgs(1),
		RunE: runToken,
	}
	cmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default: auth.token_ttl)")
	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), noColor))
		return err
	}

	ttl := cfg.Auth.TokenTTL
	if tokenTTL > 0 {
		ttl = tokenTTL
	}
	tokens, err := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.Issuer, ttl)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError("auth.secret must be set to sign tokens", noColor))
		return err
	}

	token, err := tokens.Issue(args[0], roles)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
