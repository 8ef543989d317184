package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/uledger-dev/uledger/internal/server"
)

func newTokenCommand(g *globals) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue an API bearer token signed with server.jwt_secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			token, err := server.IssueToken(cfg.Server.JWTSecret, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")

	return cmd
}
