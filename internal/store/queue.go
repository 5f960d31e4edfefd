package store

import "sync"

// workQueue runs submitted functions one at a time, in FIFO order, on a
// single goroutine. It backs PrivateQueue contexts.
//
// The queue is unbounded so that Perform never blocks the submitter.
// It uses a buffered signal channel (size 1) to coalesce wakeups and closes
// that channel on shutdown to wake the worker for its final drain.
type workQueue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{}
	done   chan struct{} // closed when the worker goroutine exits
}

// newWorkQueue creates a queue and starts its worker goroutine.
func newWorkQueue() *workQueue {
	q := &workQueue{
		tasks:  make([]func(), 0, 8),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// enqueue appends fn. Returns false if the queue is closed.
func (q *workQueue) enqueue(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, fn)

	// Non-blocking - buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// tryDequeue pops the front task without blocking.
func (q *workQueue) tryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}

	fn := q.tasks[0]
	// Nil out the slot so the closure can be collected.
	q.tasks[0] = nil
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return fn, true
}

func (q *workQueue) run() {
	defer close(q.done)

	for {
		if fn, ok := q.tryDequeue(); ok {
			fn()
			continue
		}

		q.mu.Lock()
		if q.closed && len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		<-q.signal
	}
}

// close rejects further work, lets the worker drain what is queued, and
// waits for it to exit. Must not be called from a queued task.
func (q *workQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.signal)
	q.mu.Unlock()

	<-q.done
}
