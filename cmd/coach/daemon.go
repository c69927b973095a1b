package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jhousvawls/daily-coach/internal/daemon"
	"github.com/jhousvawls/daily-coach/internal/dashboard"
)

var daemonDashboard bool

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the sync engine in the foreground",
	Long: `Run the sync engine until interrupted. The daemon drains the queue after
local writes settle, when the network comes back, when a user signs in and
every sync.poll_interval. Writes made by other coach commands are picked up
by watching the local database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return runDaemon(cmd.Context(), a, daemonDashboard)
		})
	},
}

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "sync",
	Short:   "Run the daemon and serve live sync status over WebSocket",
	Long: `Run the daemon and serve sync state, stats and migration progress to
WebSocket clients on ws://<dashboard.host>:<dashboard.port>/ws.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return runDaemon(cmd.Context(), a, true)
		})
	},
}

func startDashboard(a *app) (*dashboard.Server, error) {
	server := dashboard.NewServer(&dashboard.Config{
		Host:   a.cfg.Dashboard.Host,
		Port:   a.cfg.Dashboard.Port,
		Logger: a.sink.Logger("dashboard"),
	})
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("failed to start dashboard: %w", err)
	}
	return server, nil
}

func runDaemon(ctx context.Context, a *app, withDashboard bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := daemon.NewWithConfig(a.engine, a.db.Path(), &daemon.Config{
		DebounceInterval: a.cfg.Sync.Debounce,
		Prober:           a.prober,
		Session:          a.session,
		Logger:           a.sink.Logger("daemon"),
	})
	if err != nil {
		return err
	}

	if withDashboard {
		server, err := startDashboard(a)
		if err != nil {
			return err
		}
		defer func() { _ = server.Stop() }()

		h := dashboard.NewHandler(server, a.store.Stats, a.sink.Logger("dashboard"))
		h.FollowEngine(a.engine)
		defer h.Wait()
		fmt.Fprintf(os.Stderr, "Dashboard: ws://%s/ws\n", server.GetAddr())
	}

	err = d.Start(ctx)
	a.engine.Stop()
	return err
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonDashboard, "dashboard", false, "Also serve the live dashboard")
	rootCmd.AddCommand(daemonCmd, dashboardCmd)
}
