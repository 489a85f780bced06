package sync

import (
	"context"

	"github.com/clubroster/roster/internal/schema"
)

// Coordinator reconciles the local Dataset against a remote endpoint.
type Coordinator interface {
	// Pull fetches the remote Dataset and decides whether it replaces
	// local state.
	//
	// With an empty endpointURL the pull is skipped (local-only mode).
	// On fetch failure a *PullError is returned and nothing is changed.
	// Pull never writes the Local Store. An adopted Dataset is returned
	// for the caller to persist and install together.
	//
	// Example:
	//   res, err := coord.Pull(ctx, local.Endpoint(), local, false)
	Pull(ctx context.Context, endpointURL string, local *schema.Dataset, manual bool) (PullResult, error)

	// Push queues ds for sending when an endpoint is configured and
	// auto-sync is on. It reports whether a push was queued and never
	// waits for the remote side.
	Push(ds *schema.Dataset) bool

	// PushNow sends ds through the same queue and waits for the outcome.
	// It is the explicit "save to remote" action and ignores the
	// auto-sync flag, but still needs an endpoint.
	PushNow(ctx context.Context, ds *schema.Dataset) error

	// TestConnection probes endpointURL and returns a reachability
	// verdict only.
	TestConnection(ctx context.Context, endpointURL string) bool

	// Flush waits until no push is queued or in flight.
	Flush(ctx context.Context) error

	// Close cancels any in-flight push.
	Close() error
}

// PullResult describes the outcome of a successful fetch.
type PullResult struct {
	// Skipped is true when no endpoint is configured.
	Skipped bool

	// Adopted is true when the remote copy should replace local state.
	Adopted bool

	// Dataset is the adopted Dataset (nil unless Adopted).
	Dataset *schema.Dataset

	// RemoteVersion and LocalVersion are the compared LastUpdated values.
	RemoteVersion int64
	LocalVersion  int64
}

// PushResult is delivered to the PushObserver for every push that was
// actually sent. Coalesced requests produce no result of their own.
type PushResult struct {
	Version int64
	Err     error
}

// PushObserver receives push outcomes. It is called from the push
// goroutine and must not block.
type PushObserver func(PushResult)
