package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uledger-dev/uledger/internal/auditlog"
)

const flushConfirmation = "delete"

func newFlushCommand(g *globals) *cobra.Command {
	var confirm string

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Delete every account, wallet and transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if confirm != flushConfirmation {
				return errors.New(`refusing to flush without --confirm delete`)
			}
			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.ledger.Flush(ctx); err != nil {
					return err
				}
				entry := auditlog.Entry{
					Timestamp: a.now(),
					Actor:     cliActor,
					Action:    "flush",
				}
				if err := a.record("flush: Delete all ledger data", entry); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ledger flushed")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&confirm, "confirm", "", `must be "delete"`)

	return cmd
}
