// Package app provides the Controller: the single owner of the in-memory
// Dataset and the one funnel every mutation flows through.
//
// The controller guarantees:
//   - no mutation is accepted until the startup pull has resolved
//   - every accepted mutation stamps a strictly greater LastUpdated
//   - the Local Store write completes before any remote push is queued
//   - pushes never block further local mutations
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	gosync "sync"
	"time"

	"github.com/clubroster/roster/internal/remote"
	"github.com/clubroster/roster/internal/schema"
	"github.com/clubroster/roster/internal/sync"
)

// ErrInitializing is returned when a mutation arrives before the startup
// pull resolved. The mutation has been dropped.
var ErrInitializing = errors.New("update dropped: startup sync still running")

// Store is the Local Store as seen by the controller.
type Store interface {
	Load(ctx context.Context) *schema.Dataset
	Save(ctx context.Context, ds *schema.Dataset) error
}

// Source tells observers where a Dataset change came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Observer receives controller events. Methods may be called from any
// goroutine and must not block.
type Observer interface {
	OnStatus(status Status, err error)
	OnDatasetChanged(ds *schema.Dataset, source Source)
	OnPull(manual bool, result sync.PullResult, err error)
}

// Config holds controller configuration.
type Config struct {
	// StatusRevert is how long success/error is shown before idle (default: 3s)
	StatusRevert time.Duration

	// Logger for controller activity (default: stderr logger)
	Logger *log.Logger

	// SyncLogger is handed to the sync coordinator (default: Logger)
	SyncLogger *log.Logger

	// Now returns the current time (default: time.Now)
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		StatusRevert: 3 * time.Second,
		Logger:       log.New(os.Stderr, "[app] ", log.LstdFlags),
		Now:          time.Now,
	}
}

// Controller owns the Dataset for the process lifetime.
type Controller struct {
	mu           gosync.Mutex
	data         *schema.Dataset
	initializing bool
	pullSeq      uint64
	appliedSeq   uint64
	lastPush     *sync.PushResult

	store  Store
	coord  sync.Coordinator
	status *statusTracker
	logger *log.Logger
	now    func() time.Time

	observersMu gosync.RWMutex
	observers   []Observer
}

// New loads the Dataset from st and creates a controller syncing through
// endpoint. The controller starts in the initializing state; call Start.
func New(st Store, endpoint remote.Endpoint, config *Config) *Controller {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.SyncLogger == nil {
		config.SyncLogger = config.Logger
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.StatusRevert <= 0 {
		config.StatusRevert = DefaultConfig().StatusRevert
	}

	c := &Controller{
		data:         st.Load(context.Background()),
		initializing: true,
		store:        st,
		logger:       config.Logger,
		now:          config.Now,
	}
	c.status = newStatusTracker(config.StatusRevert, c.notifyStatus)
	c.coord = sync.New(endpoint, &sync.Config{
		Logger: config.SyncLogger,
		OnPush: c.handlePush,
		Now:    config.Now,
	})

	return c
}

// Start performs the startup pull and then opens the controller for
// mutations. The guard is lifted whatever the pull outcome; a pull error
// is returned for reporting only.
func (c *Controller) Start(ctx context.Context) error {
	_, err := c.StartPull(ctx)
	return err
}

// StartPull is Start that also returns the startup pull's outcome, for
// callers that report it instead of pulling again.
func (c *Controller) StartPull(ctx context.Context) (sync.PullResult, error) {
	defer func() {
		c.mu.Lock()
		c.initializing = false
		c.mu.Unlock()
	}()

	return c.pull(ctx, false)
}

// Initializing reports whether the startup pull is still pending.
func (c *Controller) Initializing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializing
}

// Snapshot returns a copy of the current Dataset.
func (c *Controller) Snapshot() *schema.Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.Clone()
}

// Status returns the current sync status and the last error, if any.
func (c *Controller) Status() (Status, error) {
	return c.status.get()
}

// Subscribe registers an observer.
func (c *Controller) Subscribe(o Observer) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	c.observers = append(c.observers, o)
}

// Update applies a partial change. See UpdateContext.
func (c *Controller) Update(p Patch) error {
	return c.UpdateContext(context.Background(), p)
}

// UpdateContext merges p into the current Dataset, stamps a new version,
// saves it synchronously and queues a push when auto-sync is on.
//
// While initializing the patch is dropped and ErrInitializing returned.
// If the local save fails, the in-memory Dataset is left unchanged.
func (c *Controller) UpdateContext(ctx context.Context, p Patch) error {
	return c.MutateContext(ctx, func(*schema.Dataset) (Patch, error) { return p, nil })
}

// Mutate runs fn against the current Dataset under the controller lock
// and applies the patch it returns. fn must not retain ds.
func (c *Controller) Mutate(fn func(ds *schema.Dataset) (Patch, error)) error {
	return c.MutateContext(context.Background(), fn)
}

// MutateContext is Mutate with context support.
func (c *Controller) MutateContext(ctx context.Context, fn func(ds *schema.Dataset) (Patch, error)) error {
	c.mu.Lock()

	if c.initializing {
		c.mu.Unlock()
		c.logger.Printf("Dropped update: startup sync still running")
		return ErrInitializing
	}

	p, err := fn(c.data.Clone())
	if err != nil {
		c.mu.Unlock()
		return err
	}

	next := c.data.Clone()
	p.Apply(next)
	next.Normalize()
	next.LastUpdated = c.nextVersion(c.data.LastUpdated)

	if err := c.store.Save(ctx, next); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	c.data = next

	// Queued under the lock so pushes enter the queue in commit order.
	// The syncing status is reserved here too: handlePush needs c.mu, so
	// its outcome always lands after the reservation.
	var syncing uint64
	queued := c.coord.Push(next)
	if queued {
		syncing = c.status.reserve()
	}
	published := next.Clone()
	c.mu.Unlock()

	if queued {
		c.status.setIf(syncing, StatusSyncing, nil)
	}
	c.notifyDataset(published, SourceLocal)
	return nil
}

// nextVersion returns a version strictly greater than prev, using the
// clock when it has moved past prev.
func (c *Controller) nextVersion(prev int64) int64 {
	v := c.now().UnixMilli()
	if v <= prev {
		v = prev + 1
	}
	return v
}

// Pull runs a background reconciliation: the remote copy is adopted only
// if it is at least as new as the local one.
func (c *Controller) Pull(ctx context.Context) (sync.PullResult, error) {
	return c.pull(ctx, false)
}

// ForcePull fetches the remote Dataset and adopts it regardless of
// version ordering.
func (c *Controller) ForcePull(ctx context.Context) (sync.PullResult, error) {
	return c.pull(ctx, true)
}

// SyncNow pushes the current Dataset and waits for the outcome.
func (c *Controller) SyncNow(ctx context.Context) error {
	ds := c.Snapshot()
	if ds.Endpoint() == "" {
		return remote.ErrNoEndpoint
	}

	c.status.set(StatusSyncing, nil)
	// The outcome reaches the status tracker through handlePush.
	return c.coord.PushNow(ctx, ds)
}

// TestConnection probes endpointURL before it is committed to settings.
func (c *Controller) TestConnection(ctx context.Context, endpointURL string) bool {
	return c.coord.TestConnection(ctx, endpointURL)
}

// Close waits for queued pushes (bounded by ctx) and releases resources.
func (c *Controller) Close(ctx context.Context) error {
	err := c.coord.Flush(ctx)
	_ = c.coord.Close()
	c.status.stop()
	return err
}

// pull runs one reconciliation round and installs the adopted Dataset.
func (c *Controller) pull(ctx context.Context, manual bool) (sync.PullResult, error) {
	c.mu.Lock()
	c.pullSeq++
	seq := c.pullSeq
	local := c.data.Clone()
	c.mu.Unlock()

	endpoint := local.Endpoint()
	if endpoint != "" {
		c.status.set(StatusSyncing, nil)
	}

	res, err := c.coord.Pull(ctx, endpoint, local, manual)
	if err != nil {
		c.status.set(StatusError, err)
		c.notifyPull(manual, res, err)
		return res, err
	}
	if res.Skipped {
		c.notifyPull(manual, res, nil)
		return res, nil
	}
	if !res.Adopted {
		c.status.set(StatusSuccess, nil)
		c.notifyPull(manual, res, nil)
		return res, nil
	}

	// Persist and install under one lock so no mutation can land between
	// the store write and the in-memory swap.
	c.mu.Lock()
	if reason := c.rejectAdoption(seq, res.Dataset, manual); reason != "" {
		c.mu.Unlock()

		c.logger.Printf("Discarded pulled dataset %d: %s", res.RemoteVersion, reason)
		res.Adopted = false
		res.Dataset = nil
		c.status.set(StatusSuccess, nil)
		c.notifyPull(manual, res, nil)
		return res, nil
	}
	if err := c.store.Save(ctx, res.Dataset); err != nil {
		c.mu.Unlock()

		err = fmt.Errorf("failed to persist pulled dataset: %w", err)
		res.Adopted = false
		res.Dataset = nil
		c.status.set(StatusError, err)
		c.notifyPull(manual, res, err)
		return res, err
	}
	c.logger.Printf("Adopted remote dataset %d (local %d, manual=%v)", res.RemoteVersion, res.LocalVersion, manual)
	c.appliedSeq = seq
	c.data = res.Dataset.Clone()
	published := res.Dataset.Clone()
	c.mu.Unlock()

	c.status.set(StatusSuccess, nil)
	c.notifyDataset(published, SourceRemote)
	c.notifyPull(manual, res, nil)
	return res, nil
}

// rejectAdoption explains why a pulled Dataset must not be installed, or
// returns "". Callers hold c.mu.
func (c *Controller) rejectAdoption(seq uint64, pulled *schema.Dataset, manual bool) string {
	if seq < c.appliedSeq {
		return "a later pull was already applied"
	}
	if !manual && !sync.Decide(c.data, pulled, false) {
		return "local dataset changed during the pull"
	}
	return ""
}

// LastPush returns the outcome of the most recent send, if any.
func (c *Controller) LastPush() (sync.PushResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastPush == nil {
		return sync.PushResult{}, false
	}
	return *c.lastPush, true
}

func (c *Controller) handlePush(r sync.PushResult) {
	c.mu.Lock()
	c.lastPush = &r
	c.mu.Unlock()

	if r.Err != nil {
		c.status.set(StatusError, r.Err)
		return
	}
	c.status.set(StatusSuccess, nil)
}

func (c *Controller) snapshotObservers() []Observer {
	c.observersMu.RLock()
	defer c.observersMu.RUnlock()
	return append([]Observer{}, c.observers...)
}

func (c *Controller) notifyStatus(s Status, err error) {
	for _, o := range c.snapshotObservers() {
		o.OnStatus(s, err)
	}
}

func (c *Controller) notifyDataset(ds *schema.Dataset, source Source) {
	for _, o := range c.snapshotObservers() {
		o.OnDatasetChanged(ds, source)
	}
}

func (c *Controller) notifyPull(manual bool, res sync.PullResult, err error) {
	for _, o := range c.snapshotObservers() {
		o.OnPull(manual, res, err)
	}
}
