package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/schema"
	"github.com/clubroster/roster/internal/sync"
)

// Controller is the part of *app.Controller the daemon drives.
type Controller interface {
	Start(ctx context.Context) error
	MutateContext(ctx context.Context, fn func(ds *schema.Dataset) (app.Patch, error)) error
	Pull(ctx context.Context) (sync.PullResult, error)
	Snapshot() *schema.Dataset
	Close(ctx context.Context) error
}

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long a file must stay quiet before it is
	// applied. This batches the create/write bursts of a single save.
	DebounceInterval time.Duration

	// RefreshInterval is how often to run a background pull (0 disables)
	RefreshInterval time.Duration

	// BackupSchedule is a cron expression for local backups (empty disables)
	BackupSchedule string

	// BackupDir receives scheduled backup exports
	BackupDir string

	// ShutdownTimeout bounds how long shutdown waits for queued pushes
	ShutdownTimeout time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 200 * time.Millisecond,
		ShutdownTimeout:  10 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon applies inbox files to the Dataset and keeps it in sync.
type Daemon struct {
	ctrl     Controller
	inboxDir string
	config   *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> last event
	changeQueueMu gosync.Mutex

	cron *cron.Cron

	mu      gosync.Mutex
	running bool
	stop    context.CancelFunc
}

// New creates a daemon over ctrl watching inboxDir.
//
// Use Start to begin watching.
func New(ctrl Controller, inboxDir string, config *Config) (*Daemon, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("controller cannot be nil")
	}
	if inboxDir == "" {
		return nil, fmt.Errorf("inboxDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	if config.BackupSchedule != "" && config.BackupDir == "" {
		return nil, fmt.Errorf("backup schedule set without a backup directory")
	}

	abs, err := filepath.Abs(inboxDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve inbox directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Daemon{
		ctrl:        ctrl,
		inboxDir:    abs,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		cron:        cron.New(),
	}, nil
}

// Start runs the daemon until ctx is cancelled or Stop is called.
//
// The daemon will:
// 1. Start the controller (startup pull; a failure is logged, not fatal)
// 2. Apply files already waiting in the inbox
// 3. Watch the inbox and apply new files once they settle
// 4. Pull and back up on the configured schedules
//
// On return the push queue has been drained or ShutdownTimeout expired.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	ctx, cancel := context.WithCancel(ctx)
	d.stop = cancel
	d.mu.Unlock()
	defer cancel()

	d.config.Logger.Println("Starting daemon")

	for _, dir := range []string{d.inboxDir, d.processedDir(), d.failedDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := d.ctrl.Start(ctx); err != nil {
		d.config.Logger.Printf("WARNING: startup pull failed: %v", err)
	}

	if err := d.watcher.Add(d.inboxDir); err != nil {
		return fmt.Errorf("failed to watch inbox directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.inboxDir)

	if err := d.scanInbox(ctx); err != nil {
		d.config.Logger.Printf("Error scanning inbox: %v", err)
	}

	if d.config.BackupSchedule != "" {
		if _, err := d.cron.AddFunc(d.config.BackupSchedule, func() {
			if _, err := d.Backup(); err != nil {
				d.config.Logger.Printf("Error creating backup: %v", err)
			}
		}); err != nil {
			return fmt.Errorf("invalid backup schedule %q: %w", d.config.BackupSchedule, err)
		}
		d.cron.Start()
		d.config.Logger.Printf("Backups scheduled: %s -> %s", d.config.BackupSchedule, d.config.BackupDir)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.watchFileEvents(gctx) })
	g.Go(func() error { return d.processChangeQueue(gctx) })
	if d.config.RefreshInterval > 0 {
		g.Go(func() error { return d.refresh(gctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	d.config.Logger.Println("Shutdown signal received")

	if shutdownErr := d.shutdown(); err == nil {
		err = shutdownErr
	}
	return err
}

// Stop asks a running Start to return.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		d.stop()
	}
}

func (d *Daemon) shutdown() error {
	d.config.Logger.Println("Stopping daemon")

	<-d.cron.Stop().Done()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	// Apply whatever settled files are left before the pushes drain.
	d.processPendingChanges(context.Background(), true)

	ctx, cancel := context.WithTimeout(context.Background(), d.config.ShutdownTimeout)
	defer cancel()
	if err := d.ctrl.Close(ctx); err != nil {
		d.config.Logger.Printf("WARNING: pushes still pending at shutdown: %v", err)
		return fmt.Errorf("failed to drain push queue: %w", err)
	}

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents monitors filesystem events and queues changes.
func (d *Daemon) watchFileEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}

			// Only care about Create and Write
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !d.isInboxFile(event.Name) {
				continue
			}

			d.config.Logger.Printf("File event: %s %s", event.Op, event.Name)
			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// isInboxFile reports whether path is a *.json file directly in the inbox.
func (d *Daemon) isInboxFile(path string) bool {
	if filepath.Ext(path) != ".json" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == d.inboxDir
}

// queueChange adds a file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue applies queued files once they have settled.
func (d *Daemon) processChangeQueue(ctx context.Context) error {
	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			d.processPendingChanges(ctx, false)
		}
	}
}

// processPendingChanges applies files queued for at least the debounce
// interval, or every queued file when force is set.
func (d *Daemon) processPendingChanges(ctx context.Context, force bool) {
	d.changeQueueMu.Lock()
	now := time.Now()
	var ready []string
	for path, queuedAt := range d.changeQueue {
		if !force && now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
		delete(d.changeQueue, path)
	}
	d.changeQueueMu.Unlock()

	for _, path := range ready {
		d.config.Logger.Printf("Processing change: %s", path)
		if err := d.applyInboxFile(ctx, path); err != nil {
			d.config.Logger.Printf("Error applying %s: %v", path, err)
		}
	}
}

// refresh runs background pulls on RefreshInterval.
func (d *Daemon) refresh(ctx context.Context) error {
	ticker := time.NewTicker(d.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			res, err := d.ctrl.Pull(ctx)
			if err != nil {
				d.config.Logger.Printf("Background pull failed: %v", err)
				continue
			}
			if res.Adopted {
				d.config.Logger.Printf("Background pull adopted remote version %d", res.RemoteVersion)
			}
		}
	}
}
