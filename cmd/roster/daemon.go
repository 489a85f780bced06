package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clubroster/roster/internal/auth"
	"github.com/clubroster/roster/internal/daemon"
	"github.com/clubroster/roster/internal/dashboard"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "advanced",
	Short:   "Apply inbox change files and keep the dataset in sync",
	Long: `Run in the foreground, applying change files dropped into the inbox
directory and pushing each change to the endpoint.

An inbox file is a JSON object whose keys name the collections it
replaces, for example:

  {"students": [{"id": "s1", "name": "Ayu", "class": "7A"}]}

Applied files move to inbox/processed, rejected ones to inbox/failed.

Configuration (config.yaml or ROSTER_* environment):
  inbox_dir         Inbox directory (default: <data-dir>/inbox)
  refresh_interval  Background pull interval, e.g. 5m (default: off)
  backup_schedule   Cron expression for JSON backups, e.g. "0 2 * * *"
  backup_dir        Backup directory (default: <data-dir>/backups)`,
	Run: func(cmd *cobra.Command, args []string) {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = cfg.DashboardPort
		}

		st := openStore()
		defer st.Close()
		ctrl := newController(st)

		if withDashboard {
			server := dashboard.NewServer(&dashboard.Config{
				Port:      port,
				Authorize: auth.HTTPAuthorizer(cfg.PassphraseHash),
				Logger:    logs.Logger("dashboard"),
			})
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
				os.Exit(1)
			}
			defer func() { _ = server.Stop() }()

			handler := dashboard.NewHandler(server, logs.Logger("dashboard"))
			ctrl.Subscribe(handler)
			handler.UpdateStats(ctrl.Snapshot())
			fmt.Printf("Dashboard: ws://%s/ws\n", server.Addr())
		}

		d, err := daemon.New(ctrl, cfg.InboxDir, &daemon.Config{
			RefreshInterval: cfg.RefreshInterval,
			BackupSchedule:  cfg.BackupSchedule,
			BackupDir:       cfg.BackupDir,
			Logger:          logs.Logger("daemon"),
		})
		exitOn(err, "creating daemon")

		ctx, cancel := stopContext(cmd.Context())
		defer cancel()

		fmt.Printf("Watching %s\n", cfg.InboxDir)
		fmt.Println("Press Ctrl+C to stop...")

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("\nDaemon stopped")
	},
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "Also serve the live dashboard")
	daemonCmd.Flags().IntP("port", "p", 8080, "Dashboard port (default: dashboard_port setting)")
	rootCmd.AddCommand(daemonCmd)
}

// stopContext returns a context cancelled on interrupt.
func stopContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
