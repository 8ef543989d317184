package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/uledger-dev/uledger/internal/buildinfo"
	"github.com/uledger-dev/uledger/internal/config"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:     "uledger",
		Short:   "Personal ledger with exact decimal balances",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", config.FileName, "path to uledger.yaml")

	rootCmd.AddCommand(
		newInitCommand(),
		newAccountCommand(g),
		newDepositCommand(g),
		newWithdrawCommand(g),
		newTransferCommand(g),
		newWalletCommand(g),
		newImportCommand(g),
		newServeCommand(g),
		newTokenCommand(g),
		newFlushCommand(g),
	)

	return rootCmd
}

// withApp opens the configured ledger for the duration of fn.
func (g *globals) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, g.configPath, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
