package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/uledger-dev/uledger/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, g.configPath, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if a.cfg.Server.JWTSecret == "" {
				a.log.Warn("server.jwt_secret is empty, API is unauthenticated")
			}

			// Handlers run concurrently; git must not.
			var gitMu sync.Mutex
			srv := server.New(a.ledger, server.Options{
				JWTSecret: a.cfg.Server.JWTSecret,
				Audit:     a.audit,
				Logger:    a.log,
				AfterWrite: func(message string) error {
					gitMu.Lock()
					defer gitMu.Unlock()
					return a.commit(message)
				},
			})
			return serve(ctx, a, addr, srv.Router())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")

	return cmd
}

func serve(ctx context.Context, a *app, addr string, h http.Handler) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info("server starting", "addr", addr, "driver", a.cfg.Storage.Driver)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listening on %s: %w", addr, err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.log.Info("server exited")
	return nil
}
