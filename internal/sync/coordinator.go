package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/clubroster/roster/internal/remote"
	"github.com/clubroster/roster/internal/schema"
)

// Config holds coordinator configuration.
type Config struct {
	// Logger for sync activity (default: stderr logger)
	Logger *log.Logger

	// OnPush receives the outcome of each sent push (optional)
	OnPush PushObserver

	// Now returns the current time (default: time.Now)
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logger: log.New(os.Stderr, "[sync] ", log.LstdFlags),
		Now:    time.Now,
	}
}

// PullError reports a failed fetch. Manual distinguishes an explicit user
// pull from a silent background one.
type PullError struct {
	Manual bool
	Err    error
}

func (e *PullError) Error() string {
	if e.Manual {
		return fmt.Sprintf("manual pull failed: %v", e.Err)
	}
	return fmt.Sprintf("background pull failed: %v", e.Err)
}

func (e *PullError) Unwrap() error {
	return e.Err
}

// IsManual reports whether err is a failed manual pull.
func IsManual(err error) bool {
	var pe *PullError
	return errors.As(err, &pe) && pe.Manual
}

// Decide reports whether the remote Dataset should replace the local one.
func Decide(local, remoteDS *schema.Dataset, manual bool) bool {
	if manual {
		return true
	}
	if local == nil || len(local.Students) == 0 {
		return true
	}
	return remoteDS.LastUpdated >= local.LastUpdated
}

// coordinator implements the Coordinator interface.
type coordinator struct {
	endpoint remote.Endpoint
	logger   *log.Logger
	now      func() time.Time
	onPush   PushObserver

	queue  *pushQueue
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Coordinator.
//
// If config is nil, DefaultConfig is used.
//
// Example:
//
//	coord := sync.New(remote.NewHTTPClient(nil), nil)
//	defer coord.Close()
func New(endpoint remote.Endpoint, config *Config) Coordinator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &coordinator{
		endpoint: endpoint,
		logger:   config.Logger,
		now:      config.Now,
		onPush:   config.OnPush,
		ctx:      ctx,
		cancel:   cancel,
	}
	c.queue = newPushQueue(c.send)
	return c
}

// Pull implements Coordinator.Pull.
func (c *coordinator) Pull(ctx context.Context, endpointURL string, local *schema.Dataset, manual bool) (PullResult, error) {
	if endpointURL == "" {
		return PullResult{Skipped: true}, nil
	}

	remoteDS, err := c.endpoint.Fetch(ctx, endpointURL)
	if err != nil {
		c.logger.Printf("WARNING: Pull from %s failed (manual=%v): %v", endpointURL, manual, err)
		return PullResult{}, &PullError{Manual: manual, Err: err}
	}

	result := PullResult{RemoteVersion: remoteDS.LastUpdated}
	if local != nil {
		result.LocalVersion = local.LastUpdated
	}

	if !Decide(local, remoteDS, manual) {
		c.logger.Printf("Kept local dataset: local=%d newer than remote=%d", result.LocalVersion, result.RemoteVersion)
		return result, nil
	}

	carrySettings(local, remoteDS)
	remoteDS.Settings.LastSync = c.now().UnixMilli()

	c.logger.Printf("Remote dataset wins: remote=%d local=%d manual=%v students=%d",
		result.RemoteVersion, result.LocalVersion, manual, len(remoteDS.Students))

	result.Adopted = true
	result.Dataset = remoteDS
	return result, nil
}

// carrySettings keeps this device's sync configuration when the adopted
// copy carries none, so adopting never silently drops a device out of
// sync mode.
func carrySettings(local, adopted *schema.Dataset) {
	var from *schema.Settings
	if local != nil && local.Settings != nil {
		from = local.Settings
	} else {
		from = schema.DefaultSettings()
	}

	if adopted.Settings == nil {
		s := *from
		adopted.Settings = &s
		return
	}
	if adopted.Settings.EndpointURL == "" {
		adopted.Settings.EndpointURL = from.EndpointURL
		adopted.Settings.AutoSync = from.AutoSync
	}
}

// Push implements Coordinator.Push.
func (c *coordinator) Push(ds *schema.Dataset) bool {
	if ds == nil || !ds.AutoSyncEnabled() {
		return false
	}

	c.queue.enqueue(pushJob{url: ds.Endpoint(), ds: ds.Clone()})
	return true
}

// PushNow implements Coordinator.PushNow.
func (c *coordinator) PushNow(ctx context.Context, ds *schema.Dataset) error {
	if ds == nil {
		return fmt.Errorf("cannot push nil dataset")
	}
	if ds.Endpoint() == "" {
		return remote.ErrNoEndpoint
	}

	done := make(chan error, 1)
	c.queue.enqueue(pushJob{url: ds.Endpoint(), ds: ds.Clone(), waiters: []chan error{done}})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TestConnection implements Coordinator.TestConnection.
func (c *coordinator) TestConnection(ctx context.Context, endpointURL string) bool {
	if err := c.endpoint.Probe(ctx, endpointURL); err != nil {
		c.logger.Printf("Connection test to %s failed: %v", endpointURL, err)
		return false
	}
	c.logger.Printf("Connection test to %s succeeded", endpointURL)
	return true
}

// Flush implements Coordinator.Flush.
func (c *coordinator) Flush(ctx context.Context) error {
	return c.queue.wait(ctx)
}

// Close implements Coordinator.Close.
func (c *coordinator) Close() error {
	c.cancel()
	return nil
}

// send performs one queued push. Called only from the queue goroutine.
func (c *coordinator) send(job pushJob) error {
	err := c.endpoint.Send(c.ctx, job.url, job.ds)
	if err != nil {
		c.logger.Printf("WARNING: Push of version %d failed: %v", job.ds.LastUpdated, err)
	}

	if c.onPush != nil {
		c.onPush(PushResult{Version: job.ds.LastUpdated, Err: err})
	}
	return err
}
