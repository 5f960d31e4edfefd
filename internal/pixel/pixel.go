// Package pixel reports diagnostic events.
//
// Delivery is fire-and-forget: Fire never blocks and never fails from the
// caller's point of view. The returned channel closes once the report has
// been delivered or dropped, so a caller about to terminate can give it a
// bounded chance to flush.
package pixel

import (
	"fmt"
	"log/slog"
	"sort"
)

// Event names a diagnostic event.
type Event string

// DBInitializationError is fired when the store cannot be opened.
const DBInitializationError Event = "m_d_db_initialization_error"

// Notifier delivers diagnostic events.
type Notifier interface {
	Fire(event Event, err error, params map[string]string) <-chan struct{}
}

// closed is returned by notifiers that finish synchronously.
func closed() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Nop drops every event.
type Nop struct{}

// Fire implements Notifier.
func (Nop) Fire(Event, error, map[string]string) <-chan struct{} { return closed() }

// LogNotifier writes events to a slog logger at error level.
type LogNotifier struct {
	Logger *slog.Logger
}

// Fire implements Notifier.
func (n LogNotifier) Fire(event Event, err error, params map[string]string) <-chan struct{} {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{"event", string(event)}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, params[k])
	}

	logger.Error("pixel fired", attrs...)
	return closed()
}

// Multi fans an event out to several notifiers. The returned channel closes
// when every delivery has finished.
type Multi []Notifier

// Fire implements Notifier.
func (m Multi) Fire(event Event, err error, params map[string]string) <-chan struct{} {
	pending := make([]<-chan struct{}, 0, len(m))
	for _, n := range m {
		if n != nil {
			pending = append(pending, n.Fire(event, err, cloneParams(params)))
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, ch := range pending {
			<-ch
		}
	}()
	return done
}

func cloneParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// errorDomain names the error's concrete type, the closest Go analogue to
// an error domain.
func errorDomain(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%T", err)
}
