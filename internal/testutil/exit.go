package testutil

import (
	"testing"
	"time"
)

// ExitRecorder stands in for os.Exit. It records the requested code and
// returns, so code after the exit call keeps running in tests.
type ExitRecorder struct {
	codes chan int
}

// NewExitRecorder creates a recorder that buffers up to 8 exit calls.
func NewExitRecorder() *ExitRecorder {
	return &ExitRecorder{codes: make(chan int, 8)}
}

// Exit records code.
func (r *ExitRecorder) Exit(code int) {
	r.codes <- code
}

// Wait returns the next recorded code, failing the test after timeout.
func (r *ExitRecorder) Wait(t testing.TB, timeout time.Duration) int {
	t.Helper()
	select {
	case code := <-r.codes:
		return code
	case <-time.After(timeout):
		t.Fatalf("exit not called within %v", timeout)
		return -1
	}
}

// Called reports whether an exit has been recorded and not yet consumed.
func (r *ExitRecorder) Called() bool {
	return len(r.codes) > 0
}
