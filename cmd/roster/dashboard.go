package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clubroster/roster/internal/auth"
	"github.com/clubroster/roster/internal/dashboard"
	"github.com/clubroster/roster/internal/ui"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Start a real-time WebSocket dashboard of sync activity",
	Long: `Start a WebSocket dashboard server that reports sync status in real time.

WebSocket messages include:
- sync_status: idle, syncing, success or error
- dataset_update: the dataset was replaced locally or by a pull
- pull_complete: a pull finished (adopted or kept local)
- stats: record counts

New clients receive the latest sync_status and stats on connect. When a
passphrase is configured, clients must send it as a bearer token or as
the "key" query parameter.

Example usage:
  roster dashboard                   # Port from dashboard_port (8080)
  roster dashboard --port 9000       # Start on custom port
  roster dashboard --refresh 1m      # Pull every minute

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = cfg.DashboardPort
		}
		refresh, _ := cmd.Flags().GetDuration("refresh")

		server := dashboard.NewServer(&dashboard.Config{
			Port:      port,
			Authorize: auth.HTTPAuthorizer(cfg.PassphraseHash),
			Logger:    logs.Logger("dashboard"),
		})
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
			os.Exit(1)
		}

		st := openStore()
		defer st.Close()
		ctrl := newController(st)

		handler := dashboard.NewHandler(server, logs.Logger("dashboard"))
		ctrl.Subscribe(handler)
		handler.UpdateStats(ctrl.Snapshot())

		ctx, cancel := stopContext(cmd.Context())
		defer cancel()

		_ = ctrl.Start(ctx)

		addr := server.Addr()
		fmt.Printf("Dashboard server started on http://%s\n", addr)
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", addr)
		fmt.Printf("Health check: http://%s/health\n", addr)
		fmt.Println("\nPress Ctrl+C to stop...")

		if refresh > 0 {
			ticker := time.NewTicker(refresh)
			defer ticker.Stop()
		loop:
			for {
				select {
				case <-ctx.Done():
					break loop
				case <-ticker.C:
					_, _ = ctrl.Pull(ctx)
				}
			}
		} else {
			<-ctx.Done()
		}

		fmt.Println("\nShutting down dashboard server...")
		closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		defer closeCancel()
		if err := ctrl.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "%s Pushes still pending: %v\n", ui.RenderWarn("⚠"), err)
		}
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Dashboard server stopped")
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 8080, "Port to listen on (default: dashboard_port setting)")
	dashboardCmd.Flags().Duration("refresh", time.Minute, "Pull interval (0 disables)")

	rootCmd.AddCommand(dashboardCmd)
}
