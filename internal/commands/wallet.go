package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/auditlog"
	"github.com/uledger-dev/uledger/internal/wallet"
)

func newWalletCommand(g *globals) *cobra.Command {
	walletCmd := &cobra.Command{
		Use:   "wallet",
		Short: "Wallet operations",
	}
	walletCmd.AddCommand(
		newWalletCreateCommand(g),
		newWalletShowCommand(g),
		newWalletAddAccountCommand(g),
		newWalletTransferCommand(g),
	)
	return walletCmd
}

func newWalletCreateCommand(g *globals) *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "create [wallet-id]",
		Short: "Create a wallet; the id is generated when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			walletID := ""
			if len(args) > 0 {
				walletID = args[0]
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				if region == "" {
					region = a.cfg.Ledger.DefaultRegion
				}
				w, err := wallet.New(ctx, a.ledger, a.gw, walletID, region)
				if err != nil {
					return err
				}
				entry := auditlog.Entry{
					Timestamp: a.now(),
					Actor:     cliActor,
					Action:    "create_wallet",
					Details:   w.ID() + " " + w.Region(),
				}
				if err := a.record("wallet: Create "+w.ID(), entry); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), w.ID())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "region code (defaults to ledger.default_region)")

	return cmd
}

func newWalletShowCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <wallet-id>",
		Short: "List a wallet's accounts and balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				w, err := wallet.Load(ctx, a.ledger, a.gw, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "wallet %s (%s)\n", w.ID(), w.Region())
				for _, name := range w.Accounts() {
					bal, err := w.FormattedBalance(ctx, name)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "  %s: %s\n", name, bal)
				}
				return nil
			})
		},
	}
}

func newWalletAddAccountCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "add-account <wallet-id> <name>",
		Short: "Create a named account in a wallet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				w, err := wallet.Load(ctx, a.ledger, a.gw, args[0])
				if err != nil {
					return err
				}
				acct, err := w.CreateAccount(ctx, args[1])
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
				if err := a.record("wallet: Add "+acct.Name()+" to "+w.ID(), entry); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), acct)
				return nil
			})
		},
	}
}

func newWalletTransferCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <wallet-id> <from-name> <to-name> <amount>",
		Short: "Move funds between two accounts of a wallet",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to := args[1], args[2]
			amt, err := amount.Parse(args[3])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				w, err := wallet.Load(ctx, a.ledger, a.gw, args[0])
				if err != nil {
					return err
				}
				before := map[string]string{from: latestToken(ctx, w, from), to: latestToken(ctx, w, to)}
				transferErr := w.Transfer(ctx, amt, from, to)

				// Audit whatever was committed, including a half-done transfer.
				var entries []auditlog.Entry
				for _, name := range []string{from, to} {
					recs, err := w.PastTransactions(ctx, name, 1)
					if err == nil && len(recs) == 1 && recs[0].Token != before[name] {
						entries = append(entries, auditlog.FromRecord(cliActor, recs[0]))
					}
				}
				if len(entries) > 0 {
					if err := a.record(fmt.Sprintf("wallet: Transfer %s -> %s", from, to), entries...); err != nil {
						return err
					}
				}
				if transferErr != nil {
					return transferErr
				}

				out := cmd.OutOrStdout()
				for _, name := range []string{from, to} {
					bal, err := w.FormattedBalance(ctx, name)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: %s\n", name, bal)
				}
				return nil
			})
		},
	}
}

// latestToken returns the token of the newest record of name, or "".
func latestToken(ctx context.Context, w *wallet.Wallet, name string) string {
	recs, err := w.PastTransactions(ctx, name, 1)
	if err != nil || len(recs) == 0 {
		return ""
	}
	return recs[0].Token
}
