package engine

import (
	"sync"

	"github.com/roach88/liveql/internal/catalog"
)

// commitQueue is a thread-safe FIFO queue of commit batches awaiting
// delta processing.
//
// The queue is unbounded so a bursty transaction layer never blocks on
// subscription fan-out. A buffered signal channel of size one lets the
// Run loop wait without spinning and still observe context cancellation.
type commitQueue struct {
	mu      sync.Mutex
	commits []*catalog.Commit
	closed  bool
	signal  chan struct{}
}

func newCommitQueue() *commitQueue {
	return &commitQueue{
		commits: make([]*catalog.Commit, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a commit to the back of the queue.
// Returns false if the queue is closed.
func (q *commitQueue) Enqueue(c *catalog.Commit) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.commits = append(q.commits, c)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front commit without blocking.
func (q *commitQueue) TryDequeue() (*catalog.Commit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commits) == 0 {
		return nil, false
	}
	c := q.commits[0]
	q.commits[0] = nil
	if len(q.commits) == 1 {
		q.commits = q.commits[:0]
	} else {
		q.commits = q.commits[1:]
	}
	return c, true
}

// Wait returns the signal channel for select-based waiting. The channel
// closes when the queue closes.
func (q *commitQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *commitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commits)
}

func (q *commitQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close marks the queue closed and wakes all waiters.
func (q *commitQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
