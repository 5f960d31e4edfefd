// Package appstate reports a coarse snapshot of the host process lifecycle
// for diagnostics.
package appstate

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
)

// State is the coarse process lifecycle state.
// The numeric values are reported as-is in diagnostics.
type State int

const (
	Active     State = 0
	Inactive   State = 1
	Background State = 2
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	case Background:
		return "background"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is the lifecycle information captured at report time.
type Snapshot struct {
	State                  State
	ProtectedDataAvailable bool
}

// Params renders the snapshot as diagnostic parameters.
func (s Snapshot) Params() map[string]string {
	return map[string]string{
		"app_state":         strconv.Itoa(int(s.State)),
		"data_availability": strconv.FormatBool(s.ProtectedDataAvailable),
	}
}

// Provider supplies a snapshot on demand.
type Provider interface {
	Snapshot() Snapshot
}

// Static always returns the same snapshot.
type Static Snapshot

// Snapshot implements Provider.
func (s Static) Snapshot() Snapshot { return Snapshot(s) }

// Tracker holds the current state and probes a protected directory for
// writability when a snapshot is taken.
type Tracker struct {
	state     atomic.Int32
	protected string
}

// NewTracker returns an Active tracker. protectedDir is the directory whose
// writability defines "protected data available"; empty means always
// available.
func NewTracker(protectedDir string) *Tracker {
	return &Tracker{protected: protectedDir}
}

// Set records a state transition.
func (t *Tracker) Set(s State) { t.state.Store(int32(s)) }

// State returns the last recorded state.
func (t *Tracker) State() State { return State(t.state.Load()) }

// Snapshot implements Provider.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		State:                  t.State(),
		ProtectedDataAvailable: t.protectedDataAvailable(),
	}
}

func (t *Tracker) protectedDataAvailable() bool {
	if t.protected == "" {
		return true
	}
	f, err := os.CreateTemp(t.protected, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(filepath.Clean(name))
	return true
}
