package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/uledger-dev/uledger/internal/config"
	"github.com/uledger-dev/uledger/internal/gitops"
)

type initOptions struct {
	driver      string
	region      string
	databaseURL string
	noGit       bool
}

func newInitCommand() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledger directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.driver, "driver", config.DriverCSV, "storage driver (memory, csv, postgres)")
	cmd.Flags().StringVar(&opts.region, "region", "US", "default region for new accounts")
	cmd.Flags().StringVar(&opts.databaseURL, "database-url", "", "postgres connection string")
	cmd.Flags().BoolVar(&opts.noGit, "no-git", false, "do not version the data directory with git")

	return cmd
}

func runInit(out io.Writer, dir string, opts initOptions) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	cfg := config.Default()
	cfg.Storage.Driver = opts.driver
	cfg.Storage.DatabaseURL = opts.databaseURL
	cfg.Ledger.DefaultRegion = opts.region
	if opts.driver != config.DriverCSV {
		cfg.Storage.Dir = ""
		cfg.Git.AutoCommit = false
	}
	if opts.noGit {
		cfg.Git.AutoCommit = false
	}
	// A postgres URL may be supplied later through ULEDGER_DATABASE_URL.
	deferredURL := opts.driver == config.DriverPostgres && opts.databaseURL == ""
	if err := cfg.Validate(); err != nil && !deferredURL {
		return fmt.Errorf("invalid options: %w", err)
	}

	// Create directory structure.
	dirs := []string{"logs"}
	if cfg.Storage.Dir != "" {
		dirs = append(dirs, cfg.Storage.Dir, filepath.Join(cfg.Storage.Dir, "import", "processed"))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Secrets stay out of history.
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(".env\n"), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if !cfg.Git.AutoCommit {
		fmt.Fprintf(out, "Initialized ledger at %s (%s)\n", dir, cfg.Storage.Driver)
		return nil
	}

	if err := gitops.Init(dir); err != nil {
		return err
	}
	repo := gitops.Repo{Dir: dir, AuthorName: cfg.Git.AuthorName, AuthorEmail: cfg.Git.AuthorEmail}
	hash, err := repo.CommitAll("init: Initialize ledger")
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Fprintf(out, "Initialized ledger at %s (%s)\n", dir, hash)
	return nil
}
