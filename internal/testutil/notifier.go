package testutil

import (
	"sync"

	"github.com/roach88/sharedstore/internal/pixel"
)

// Report is one event captured by RecordingNotifier.
type Report struct {
	Event  pixel.Event
	Err    error
	Params map[string]string
}

// RecordingNotifier captures fired events for assertions.
//
// By default deliveries complete immediately. With Hold set, the channel
// returned by Fire stays open until Release is called, which lets tests
// exercise the grace period.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingNotifier struct {
	Hold bool

	mu      sync.Mutex
	reports []Report
	pending []chan struct{}
}

// Fire implements pixel.Notifier.
func (n *RecordingNotifier) Fire(event pixel.Event, err error, params map[string]string) <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()

	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	n.reports = append(n.reports, Report{Event: event, Err: err, Params: cp})

	ch := make(chan struct{})
	if n.Hold {
		n.pending = append(n.pending, ch)
	} else {
		close(ch)
	}
	return ch
}

// Release completes every held delivery.
func (n *RecordingNotifier) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.pending {
		close(ch)
	}
	n.pending = nil
}

// Reports returns a copy of the captured reports in firing order.
func (n *RecordingNotifier) Reports() []Report {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Report, len(n.reports))
	copy(out, n.reports)
	return out
}
