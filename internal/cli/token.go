package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatblocks/internal/auth"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for a user",
	Long: `Sign a bearer token for the given user with AUTH_SECRET.
The token is printed to stdout so it can be exported as CHATBLOCKS_TOKEN.

Examples:
  export CHATBLOCKS_TOKEN=$(chatblocks token alice)
  chatblocks token alice --ttl 1h`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.AuthSecret == "" {
			return errors.New("AUTH_SECRET is not set")
		}
		ttl := cfg.AuthTokenTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}

		signed, expires, err := auth.NewTokens(cfg.AuthSecret, ttl).Issue(args[0])
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		if verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Local().Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default $AUTH_TOKEN_TTL)")
}
