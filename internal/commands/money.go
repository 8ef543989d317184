package commands

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/uledger-dev/uledger/internal/amount"
	"github.com/uledger-dev/uledger/internal/auditlog"
	"github.com/uledger-dev/uledger/internal/ledger"
)

type postFunc func(l *ledger.Ledger, ctx context.Context, accountID string, amt decimal.Decimal, description ...string) (ledger.Record, error)

func newDepositCommand(g *globals) *cobra.Command {
	return newPostCommand(g, "deposit", "Deposit into an account", (*ledger.Ledger).Deposit)
}

func newWithdrawCommand(g *globals) *cobra.Command {
	return newPostCommand(g, "withdraw", "Withdraw from an account", (*ledger.Ledger).Withdraw)
}

func newPostCommand(g *globals, use, short string, post postFunc) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   use + " <account-id> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := amount.Parse(args[1])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				rec, err := post(a.ledger, ctx, args[0], amt, description)
				if err != nil {
					return err
				}
				msg := fmt.Sprintf("%s: %s %s", use, rec.AccountID, rec.Token)
				if err := a.record(msg, auditlog.FromRecord(cliActor, rec)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), rec)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "transaction description (max 50 characters)")

	return cmd
}

func newTransferCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <from-id> <to-id> <amount>",
		Short: "Move funds between two accounts",
		Long: "Withdraws from one account and deposits into another. The two steps\n" +
			"are committed separately; a failed deposit is reported, not undone.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to := args[0], args[1]
			if from == to {
				return fmt.Errorf("cannot transfer from %s to itself", from)
			}
			amt, err := amount.Parse(args[2])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				// Load both first so an unknown target fails before any money moves.
				src, err := a.ledger.Load(ctx, from)
				if err != nil {
					return err
				}
				dst, err := a.ledger.Load(ctx, to)
				if err != nil {
					return err
				}

				out, err := src.Withdraw(ctx, amt, transferNote("transfer to ", to))
				if err != nil {
					return err
				}
				entries := []auditlog.Entry{auditlog.FromRecord(cliActor, out)}
				in, depErr := dst.Deposit(ctx, amt, transferNote("transfer from ", from))
				if depErr == nil {
					entries = append(entries, auditlog.FromRecord(cliActor, in))
				}
				if err := a.record(fmt.Sprintf("transfer: %s -> %s", from, to), entries...); err != nil {
					return err
				}
				if depErr != nil {
					return fmt.Errorf("withdrew %s from %s (%s) but deposit failed: %w", amount.Text(amt), from, out.Token, depErr)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintln(w, out)
				fmt.Fprintln(w, in)
				return nil
			})
		},
	}
}

// transferNote falls back to a bare "transfer" when the id does not fit.
func transferNote(prefix, accountID string) string {
	note := prefix + accountID
	if len([]rune(note)) > ledger.MaxDescriptionLen {
		return "transfer"
	}
	return note
}
