package invalidation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Queue is a buffered event queue with a background broker. It stands in for
// the external message transport, delivering events at-least-once to the
// listener workers.
type Queue struct {
	mu           sync.Mutex
	backlog      []Event
	notify       chan struct{}
	out          chan Event
	shuttingDown atomic.Bool

	enqueued  atomic.Uint64
	processed atomic.Uint64
}

// NewQueue creates a Queue with a buffered output channel.
func NewQueue(outBuffer int) *Queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue{
		notify: make(chan struct{}, 1),
		out:    make(chan Event, outBuffer),
	}
}

// Start runs the broker loop until ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	go q.broker(ctx)
}

// broker moves backlog items to the output channel.
func (q *Queue) broker(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.flushOnce()
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// flushOnce drains backlog into the output buffer.
func (q *Queue) flushOnce() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.backlog) > 0 && len(q.out) < cap(q.out) {
		item := q.backlog[0]
		q.backlog = q.backlog[1:]
		q.out <- item
	}
}

// Enqueue appends an event to the backlog and notifies the broker. It returns
// false once intake has been closed.
func (q *Queue) Enqueue(ev Event) bool {
	if q.shuttingDown.Load() {
		return false
	}
	q.enqueued.Add(1)
	q.mu.Lock()
	q.backlog = append(q.backlog, ev)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Out exposes the output channel of events.
func (q *Queue) Out() <-chan Event { return q.out }

// Depth returns backlog plus buffered output items.
func (q *Queue) Depth() int {
	q.mu.Lock()
	bl := len(q.backlog)
	q.mu.Unlock()
	return bl + len(q.out)
}

// MarkProcessed increases the processed counter.
func (q *Queue) MarkProcessed() { q.processed.Add(1) }

// Counters returns enqueue/process totals for observability.
func (q *Queue) Counters() (enqueued, processed uint64) {
	return q.enqueued.Load(), q.processed.Load()
}

// CloseIntake disallows future enqueues.
func (q *Queue) CloseIntake() { q.shuttingDown.Store(true) }

// IsShuttingDown reports if intake has been closed.
func (q *Queue) IsShuttingDown() bool { return q.shuttingDown.Load() }

// DrainUntil blocks until the queue is fully drained or ctx is done.
func (q *Queue) DrainUntil(ctx context.Context) bool {
	for {
		enq, proc := q.Counters()
		if q.Depth() == 0 && enq == proc {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(20 * time.Millisecond):
		}
	}
}
