package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uledger-dev/uledger/internal/auditlog"
	"github.com/uledger-dev/uledger/internal/ledger"
)

const cliActor = "cli"

func newAccountCommand(g *globals) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}
	accountCmd.AddCommand(
		newAccountCreateCommand(g),
		newAccountShowCommand(g),
		newAccountHistoryCommand(g),
		newAccountVerifyCommand(g),
	)
	return accountCmd
}

func newAccountCreateCommand(g *globals) *cobra.Command {
	var params ledger.NewAccount

	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create an account with a zero balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.ID = args[0]
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				acct, err := a.ledger.CreateAccount(ctx, params)
				if err != nil {
					return err
				}
				entry := auditlog.Entry{
					Timestamp: a.now(),
					Actor:     cliActor,
					Action:    "create_account",
					AccountID: acct.ID(),
					Details:   acct.Name(),
				}
				if err := a.record("account: Create "+acct.ID(), entry); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), acct)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&params.Name, "name", "", "display name (defaults to the id)")
	cmd.Flags().StringVar(&params.Region, "region", "", "region code (defaults to ledger.default_region)")
	cmd.Flags().StringVar(&params.WalletID, "wallet", "", "owning wallet id")

	return cmd
}

func newAccountShowCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an account's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				acct, err := a.ledger.Load(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, acct)
				fmt.Fprintf(out, "region: %s\ntransactions: %d\n", acct.Region(), acct.LastSeq())
				return nil
			})
		},
	}
}

func newAccountHistoryCommand(g *globals) *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "List the most recent transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				records, err := a.ledger.PastTransactions(ctx, args[0], n)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "no transactions")
					return nil
				}
				for _, rec := range records {
					fmt.Fprintln(out, rec)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&n, "limit", "n", 10, "number of transactions to show")

	return cmd
}

func newAccountVerifyCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <id>",
		Short: "Check an account's history for consistency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				problems, err := a.ledger.VerifyAccount(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(problems) == 0 {
					fmt.Fprintf(out, "%s: ok\n", args[0])
					return nil
				}
				for _, p := range problems {
					fmt.Fprintln(out, p)
				}
				return fmt.Errorf("%s: %d problem(s) found", args[0], len(problems))
			})
		},
	}
}
