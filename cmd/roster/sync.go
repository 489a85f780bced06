package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clubroster/roster/internal/remote"
	"github.com/clubroster/roster/internal/ui"
)

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "sync",
	Short:   "Pull the remote dataset",
	Long: `Fetch the dataset from the configured endpoint.

Without --force the remote copy is adopted only when it is at least as new
as the local one (or the local roster is empty). With --force the remote
copy replaces local data unconditionally, after confirmation.`,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		yes, _ := cmd.Flags().GetBool("yes")

		ctx := cmd.Context()
		s := openSession(ctx)
		defer s.close()

		if s.ctrl.Snapshot().Endpoint() == "" {
			fmt.Fprintf(os.Stderr, "Error: %v\n", remote.ErrNoEndpoint)
			fmt.Fprintf(os.Stderr, "Set one with 'roster settings endpoint <url>'\n")
			exit(1)
		}

		if !force {
			// The session's startup pull already reconciled; report it.
			res, err := s.startup, s.startupErr
			exitOn(err, "pulling")
			if res.Adopted {
				fmt.Printf("%s Adopted remote dataset (version %d)\n", ui.RenderPass("✓"), res.RemoteVersion)
			} else {
				fmt.Printf("%s Local dataset kept (local %d, remote %d)\n", ui.RenderAccent("•"), res.LocalVersion, res.RemoteVersion)
			}
			return
		}

		if !yes {
			ok, err := ui.Confirm("Replace local data with the remote copy?",
				"Local changes that were never pushed will be lost.")
			exitOn(err, "confirming")
			if !ok {
				fmt.Println("Cancelled")
				return
			}
		}

		res, err := s.ctrl.ForcePull(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Manual pull failed: %v\n", ui.RenderFail("✗"), err)
			exit(1)
		}
		fmt.Printf("%s Local data replaced with remote version %d\n", ui.RenderPass("✓"), res.RemoteVersion)
	},
}

var pushCmd = &cobra.Command{
	Use:     "push",
	GroupID: "sync",
	Short:   "Push the local dataset now",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s := openSession(ctx)
		defer s.close()

		version := s.ctrl.Snapshot().LastUpdated
		fmt.Printf("%s Pushing version %d...\n", ui.RenderAccent("🔄"), version)
		if err := s.ctrl.SyncNow(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s Push failed: %v\n", ui.RenderFail("✗"), err)
			exit(1)
		}
		fmt.Printf("%s Pushed\n", ui.RenderPass("✓"))
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show local dataset and sync configuration",
	Run: func(cmd *cobra.Command, args []string) {
		st := openStore()
		defer st.Close()

		ctx := cmd.Context()
		ds := st.Load(ctx)
		stats := ds.Stats()

		fmt.Printf("\n%s Roster Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Store: %s\n", st.Path())
		if savedAt, err := st.SavedAt(ctx); err == nil {
			fmt.Printf("Saved: %s\n", savedAt.Local().Format(time.RFC1123))
		}
		fmt.Printf("Version: %d\n", ds.LastUpdated)

		endpoint := ds.Endpoint()
		if endpoint == "" {
			endpoint = ui.RenderMuted("(local only)")
		}
		fmt.Printf("Endpoint: %s\n", endpoint)
		fmt.Printf("Auto-sync: %v\n", ds.AutoSyncEnabled())
		if ds.Settings != nil && ds.Settings.LastSync > 0 {
			fmt.Printf("Last pull: %s\n", time.UnixMilli(ds.Settings.LastSync).Local().Format(time.RFC1123))
		}

		fmt.Printf("\nStudents: %d\n", stats.Students)
		fmt.Printf("Teachers: %d\n", stats.Teachers)
		fmt.Printf("Committee: %d\n", stats.Committee)
		fmt.Printf("Attendance sheets: %d\n", stats.Attendance)
		fmt.Printf("Activities: %d\n", stats.Activities)
		fmt.Printf("Plan lines: %d\n\n", stats.Plans)
	},
}

var testCmd = &cobra.Command{
	Use:     "test [url]",
	GroupID: "sync",
	Short:   "Test connectivity to an endpoint",
	Long: `Send a ping to an endpoint. Without an argument the configured endpoint
is tested. Use this before saving a new endpoint in settings.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st := openStore()
		defer st.Close()

		url := st.Load(cmd.Context()).Endpoint()
		if len(args) == 1 {
			url = args[0]
		}
		if url == "" {
			fmt.Fprintf(os.Stderr, "Error: %v\n", remote.ErrNoEndpoint)
			exit(1)
		}

		client := newRemoteClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
		defer cancel()

		if err := client.Probe(ctx, url); err != nil {
			fmt.Printf("%s Connection to %s failed: %v\n", ui.RenderFail("✗"), url, err)
			exit(1)
		}
		fmt.Printf("%s Connection to %s OK\n", ui.RenderPass("✓"), url)
	},
}

func init() {
	pullCmd.Flags().BoolP("force", "f", false, "Adopt the remote copy even if older")
	pullCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(testCmd)
}
