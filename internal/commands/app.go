package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/uledger-dev/uledger/internal/auditlog"
	"github.com/uledger-dev/uledger/internal/config"
	"github.com/uledger-dev/uledger/internal/gitops"
	"github.com/uledger-dev/uledger/internal/ledger"
	"github.com/uledger-dev/uledger/internal/store"
	"github.com/uledger-dev/uledger/internal/store/csvstore"
	"github.com/uledger-dev/uledger/internal/store/pgstore"
)

// gateway is what every storage driver provides.
type gateway interface {
	store.Gateway
	store.WalletStore
}

// app is the wiring shared by every command that touches the ledger.
type app struct {
	cfg     *config.Config
	root    string // directory holding uledger.yaml
	log     *slog.Logger
	gw      gateway
	ledger  *ledger.Ledger
	audit   *auditlog.Log
	repo    *gitops.Repo
	closeFn func()
}

// openApp loads the config at path and opens the configured gateway.
func openApp(ctx context.Context, path string, logOut io.Writer, jsonLogs bool) (*app, error) {
	cfg, root, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(logOut, opts)
	if jsonLogs {
		handler = slog.NewJSONHandler(logOut, opts)
	}
	log := slog.New(handler)

	a := &app{
		cfg:     cfg,
		root:    root,
		log:     log,
		audit:   auditlog.New(root),
		closeFn: func() {},
	}
	if err := a.openGateway(ctx); err != nil {
		return nil, err
	}
	a.ledger = ledger.New(a.gw,
		ledger.WithLogger(log),
		ledger.WithDefaultRegion(cfg.Ledger.DefaultRegion),
	)

	if cfg.Storage.Driver == config.DriverCSV && cfg.Git.AutoCommit && gitops.IsRepo(root) {
		a.repo = &gitops.Repo{
			Dir:         root,
			AuthorName:  cfg.Git.AuthorName,
			AuthorEmail: cfg.Git.AuthorEmail,
		}
	}
	return a, nil
}

// loadConfig reads the config at path, applies the .env file next to it and
// validates the result. It also returns the config's directory.
func loadConfig(path string) (*config.Config, string, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	root, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}
	if err := cfg.ApplyEnv(filepath.Join(root, ".env")); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, root, nil
}

func (a *app) openGateway(ctx context.Context) error {
	switch a.cfg.Storage.Driver {
	case config.DriverMemory:
		a.gw = store.NewMemory()
	case config.DriverCSV:
		s, err := csvstore.Open(a.dataDir())
		if err != nil {
			return err
		}
		a.gw = s
	case config.DriverPostgres:
		s, err := pgstore.Open(ctx, a.cfg.Storage.DatabaseURL)
		if err != nil {
			return err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return err
		}
		a.gw = s
		a.closeFn = s.Close
	}
	a.log.Debug("storage opened", "driver", a.cfg.Storage.Driver)
	return nil
}

// dataDir resolves storage.dir against the config directory.
func (a *app) dataDir() string {
	if filepath.IsAbs(a.cfg.Storage.Dir) {
		return a.cfg.Storage.Dir
	}
	return filepath.Join(a.root, a.cfg.Storage.Dir)
}

func (a *app) Close() { a.closeFn() }

func (a *app) now() time.Time { return time.Now().UTC() }

// record appends entries to the audit log and commits the data directory
// when git auto-commit is enabled.
func (a *app) record(message string, entries ...auditlog.Entry) error {
	if len(entries) > 0 {
		if err := a.audit.Append(entries...); err != nil {
			return fmt.Errorf("writing audit log: %w", err)
		}
	}
	return a.commit(message)
}

func (a *app) commit(message string) error {
	if a.repo == nil {
		return nil
	}
	hash, err := a.repo.AutoCommit(message)
	if err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	if hash != "" {
		a.log.Debug("committed data directory", "hash", hash, "message", message)
	}
	return nil
}
