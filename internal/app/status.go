package app

import (
	gosync "sync"
	"time"
)

// Status is the presentation-facing sync state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// statusTracker implements idle → syncing → {success, error} → idle.
// Terminal states revert to idle after a fixed delay. It is bookkeeping
// for observers only; nothing depends on it for correctness.
type statusTracker struct {
	mu       gosync.Mutex
	current  Status
	lastErr  error
	revert   time.Duration
	timer    *time.Timer
	gen      uint64
	onChange func(Status, error)
}

func newStatusTracker(revert time.Duration, onChange func(Status, error)) *statusTracker {
	return &statusTracker{
		current:  StatusIdle,
		revert:   revert,
		onChange: onChange,
	}
}

// set moves to s. err is recorded for StatusError.
func (t *statusTracker) set(s Status, err error) {
	t.mu.Lock()
	t.apply(s, err)
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(s, err)
	}
}

// apply switches state and arms the idle revert. Callers hold t.mu.
func (t *statusTracker) apply(s Status, err error) {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	gen := t.gen
	t.current = s
	t.lastErr = err

	if s == StatusSuccess || s == StatusError {
		t.timer = time.AfterFunc(t.revert, func() { t.revertIdle(gen) })
	}
}

// reserve claims a slot for a later setIf. Any set in between wins.
func (t *statusTracker) reserve() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	return t.gen
}

// setIf moves to s only if nothing changed the state since reserve
// returned gen.
func (t *statusTracker) setIf(gen uint64, s Status, err error) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.apply(s, err)
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(s, err)
	}
}

// revertIdle returns to idle unless the state moved on since gen.
func (t *statusTracker) revertIdle(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.gen++
	t.current = StatusIdle
	t.lastErr = nil
	t.timer = nil
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(StatusIdle, nil)
	}
}

func (t *statusTracker) get() (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.lastErr
}

func (t *statusTracker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}
