package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/repostash/repostash/internal/remote"
	"github.com/repostash/repostash/internal/server"
	"github.com/repostash/repostash/internal/validate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon",
	Long: `Run the daemon: serve the websocket command endpoint, and while
sync is enabled react to remote changes made by other devices.

Flags are handled by the layered config loader, not by this command:

  -a string         listen address for the command endpoint
  -d string         path to the SQLite database file
  -l string         log level (debug|info|warn|error)
  -debounce int     sync debounce window in milliseconds
  -c, -config path  JSON config file`,
	// config owns the flag surface (defaults -> JSON -> env -> flags)
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, closeApp, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer closeApp()

		gate, err := validate.NewGate()
		if err != nil {
			return err
		}

		watcher := remote.NewWatcher(a.cfg.SyncDebounce, remote.IsSyncKey, func() {
			a.svc.ApplyRemote(context.Background())
		})
		defer watcher.Stop()

		if a.cfg.SyncPollInterval > 0 {
			poller := remote.NewPoller(a.mirror, watcher, a.cfg.SyncPollInterval, a.log)
			go poller.Run(ctx)
		}

		srv := server.NewServer(a.cfg.ListenAddr, server.NewHandler(a.svc, gate, a.log), a.log)
		if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		a.log.Info(ctx, "shutting down")
		return nil
	},
}
