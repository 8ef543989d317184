package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uledger-dev/uledger/internal/auditlog"
	"github.com/uledger-dev/uledger/internal/importer"
	"github.com/uledger-dev/uledger/internal/ledger"
)

func newImportCommand(g *globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import <account-id> [file.csv...]",
		Short: "Post bank CSV rows to an account",
		Long: "Posts each row of a bank export to the account: positive amounts as\n" +
			"deposits, negative amounts as withdrawals. Without file arguments every\n" +
			"CSV in the import/ inbox is processed and moved to import/processed/.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := importer.DefaultRegistry()
			parser := reg.Get(format)
			if parser == nil {
				return fmt.Errorf("unknown format %q (known: %s)", format, strings.Join(reg.Formats(), ", "))
			}

			return g.withApp(cmd, func(ctx context.Context, a *app) error {
				acct, err := a.ledger.Load(ctx, args[0])
				if err != nil {
					return err
				}

				files := args[1:]
				inbox := len(files) == 0
				if inbox {
					found, err := importer.Scan(a.importRoot())
					if err != nil {
						return err
					}
					for _, f := range found {
						files = append(files, f.Path)
					}
					if len(files) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "nothing to import")
						return nil
					}
				}

				for _, path := range files {
					if err := a.importFile(ctx, cmd, parser, acct, path); err != nil {
						return err
					}
					if inbox {
						if err := importer.MarkProcessed(a.importRoot(), filepath.Base(path)); err != nil {
							return err
						}
					}
				}
				return a.commit("import: " + acct.ID())
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "chase", "bank export format")

	return cmd
}

func (a *app) importFile(ctx context.Context, cmd *cobra.Command, parser importer.Parser, acct *ledger.Account, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	txns, err := parser.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	res, applyErr := importer.Apply(ctx, acct, txns)
	entries := make([]auditlog.Entry, len(res.Records))
	for i, rec := range res.Records {
		entries[i] = auditlog.FromRecord("import", rec)
	}
	if len(entries) > 0 {
		if err := a.audit.Append(entries...); err != nil {
			return fmt.Errorf("writing audit log: %w", err)
		}
	}
	if applyErr != nil {
		return fmt.Errorf("importing %s: %w", filepath.Base(path), applyErr)
	}

	a.log.Info("imported", "file", filepath.Base(path), "account", acct.ID(),
		"deposits", res.Deposits, "withdrawals", res.Withdrawals)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d deposits, %d withdrawals, balance %s\n",
		filepath.Base(path), res.Deposits, res.Withdrawals, acct.FormattedBalance())
	return nil
}

// importRoot is the directory whose import/ subdirectory is the inbox.
func (a *app) importRoot() string {
	if a.cfg.Storage.Dir != "" {
		return a.dataDir()
	}
	return a.root
}
