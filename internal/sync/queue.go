package sync

import (
	"context"
	gosync "sync"

	"github.com/clubroster/roster/internal/schema"
)

// pushJob is one queued push. waiters are notified with the outcome of
// the send that finally carried this job's data.
type pushJob struct {
	url     string
	ds      *schema.Dataset
	waiters []chan error
}

// pushQueue runs at most one send at a time. A job enqueued while another
// is pending replaces it; the replaced job's waiters move to the newer
// job, whose data supersedes theirs.
type pushQueue struct {
	mu      gosync.Mutex
	pending *pushJob
	running bool
	idle    chan struct{}
	send    func(pushJob) error
}

func newPushQueue(send func(pushJob) error) *pushQueue {
	idle := make(chan struct{})
	close(idle)
	return &pushQueue{
		idle: idle,
		send: send,
	}
}

// enqueue schedules job and reports whether it replaced a pending one.
func (q *pushQueue) enqueue(job pushJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	coalesced := false
	if q.pending != nil {
		job.waiters = append(q.pending.waiters, job.waiters...)
		coalesced = true
	}
	q.pending = &job

	if !q.running {
		q.running = true
		q.idle = make(chan struct{})
		go q.run()
	}

	return coalesced
}

func (q *pushQueue) run() {
	for {
		q.mu.Lock()
		job := q.pending
		if job == nil {
			q.running = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		q.pending = nil
		q.mu.Unlock()

		err := q.send(*job)
		for _, w := range job.waiters {
			w <- err
		}
	}
}

// wait blocks until the queue is idle or ctx is done.
func (q *pushQueue) wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
