package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/auth"
	"github.com/clubroster/roster/internal/config"
	"github.com/clubroster/roster/internal/logging"
	"github.com/clubroster/roster/internal/remote"
	"github.com/clubroster/roster/internal/schema"
	"github.com/clubroster/roster/internal/store"
	"github.com/clubroster/roster/internal/sync"
	"github.com/clubroster/roster/internal/ui"
)

// skipAuth marks commands that run without the passphrase.
const skipAuth = "skip-auth"

var (
	v       = viper.New()
	cfg     *config.Config
	logs    *logging.Logs
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "roster",
	Short: "Local-first club roster with cloud sync",
	Long: `roster keeps a club's members, committee, attendance, activities and
annual plan in a local database and mirrors it to a remote endpoint.

Every change is saved locally first, then pushed in the background. On
start the remote copy is pulled and adopted when it is at least as new as
the local one.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Setup(os.Stdout)

		var err error
		cfg, err = config.Load(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating data directory: %v\n", err)
			os.Exit(1)
		}

		logs = logging.New(logging.Options{File: cfg.LogFile, Verbose: verbose})

		// A configured endpoint seeds fresh Datasets, like a build-time default.
		if cfg.Endpoint != "" {
			schema.DefaultEndpoint = cfg.Endpoint
		}
		schema.DefaultAutoSync = cfg.AutoSync

		if cmd.Annotations[skipAuth] == "" {
			if err := auth.Unlock(cfg.PassphraseHash, "ROSTER_PASSPHRASE", auth.Prompt); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Close()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("data-dir", "", "Data directory (default: user config dir)")
	flags.String("endpoint", "", "Remote endpoint for fresh datasets")
	flags.Duration("http-timeout", 0, "Timeout for each remote request")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Also log to stderr")

	_ = v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = v.BindPFlag("endpoint", flags.Lookup("endpoint"))
	_ = v.BindPFlag("http_timeout", flags.Lookup("http-timeout"))

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "records", Title: "Record Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
	rootCmd.Version = Version
}

// session is an opened Local Store plus the controller over it.
type session struct {
	store  *store.Store
	ctrl   *app.Controller
	closed bool

	// Outcome of the startup pull
	startup    sync.PullResult
	startupErr error
}

// current is the session exit closes before the process ends.
var current *session

// openStore opens the Local Store or exits.
func openStore() *store.Store {
	st, err := store.Open(cfg.StorePath(), logs.Logger("store"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening local store: %v\n", err)
		os.Exit(1)
	}
	return st
}

// openSession opens the store, builds the controller and runs the startup
// pull. A failed startup pull is logged only; the session works offline.
func openSession(ctx context.Context) *session {
	st := openStore()
	ctrl := newController(st)
	res, err := ctrl.StartPull(ctx)

	current = &session{store: st, ctrl: ctrl, startup: res, startupErr: err}
	return current
}

// newController builds a controller over st that has not run its startup
// pull yet.
func newController(st *store.Store) *app.Controller {
	return app.New(st, newRemoteClient(), &app.Config{
		StatusRevert: cfg.StatusRevert,
		Logger:       logs.Logger("app"),
		SyncLogger:   logs.Logger("sync"),
	})
}

func newRemoteClient() *remote.HTTPClient {
	return remote.NewHTTPClient(&remote.Config{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: "roster/" + Version,
		Logger:    logs.Logger("remote"),
	})
}

// close waits for queued pushes and closes the store. Later calls are
// no-ops.
func (s *session) close() {
	if s.closed {
		return
	}
	s.closed = true
	if current == s {
		current = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()

	if err := s.ctrl.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s Changes saved locally but not yet pushed: %v\n", ui.RenderWarn("⚠"), err)
	}
	if last, ok := s.ctrl.LastPush(); ok && last.Err != nil {
		fmt.Fprintf(os.Stderr, "%s Push failed, changes are saved locally: %v\n", ui.RenderWarn("⚠"), last.Err)
	}
	if err := s.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing local store: %v\n", err)
	}
}

// exitOn prints err and exits when it is non-nil.
func exitOn(err error, what string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", what, err)
	exit(1)
}

// exit closes the open session, if any, so queued pushes are flushed and
// the store is checkpointed, then ends the process. Deferred closes do
// not run under os.Exit.
func exit(code int) {
	if current != nil {
		current.close()
	}
	osExit(code)
}

var osExit = os.Exit
