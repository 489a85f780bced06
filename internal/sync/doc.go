// Package sync reconciles the Local Store with the remote endpoint.
//
// # Overview
//
// The coordinator implements dataset-granularity last-writer-wins on the
// LastUpdated version:
//
//	Remote endpoint ──Fetch──▶ Coordinator.Pull ──Decide──▶ Local Store
//	Local write ──────────────▶ Coordinator.Push ──queue──▶ Remote endpoint
//
// # Pull
//
// A pull fetches the full remote Dataset and adopts it when any of:
//
//   - remote.LastUpdated >= local.LastUpdated
//   - the local student list is empty (nothing to lose locally)
//   - the pull is manual (an explicit override, never a negotiation)
//
// Adoption replaces local state wholesale. The coordinator only decides;
// the caller persists and installs the adopted copy. There is no
// field-level merge: concurrent edits on two devices between syncs lose
// the older side entirely.
//
// # Push
//
// Push is fire-and-forget. It returns before the remote side has seen the
// data and the remote acknowledgement is not interpreted. Pushes go
// through a single-flight queue: one request in flight at a time, and
// requests that arrive meanwhile coalesce so only the newest Dataset is
// sent next. Remote arrival order therefore always matches local commit
// order.
//
// Error Handling
//
//   - Fetch failures are returned as *PullError; local state is untouched
//   - Push failures are reported to the PushObserver and never roll back
//     the local write
//   - Nothing is retried; the next mutation or a manual action tries again
//
// Example:
//
//	st, _ := store.Open(".roster/roster.db", nil)
//	coord := sync.New(remote.NewHTTPClient(nil), nil)
//	defer coord.Close()
//
//	local := st.Load(ctx)
//	res, err := coord.Pull(ctx, local.Endpoint(), local, false)
package sync
