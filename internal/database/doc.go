// Package database manages the lifecycle of the shared object store.
//
// A Manager opens the store once per process, in the background, and gates
// every consumer behind a readiness signal:
//
//	unopened -> opening -> ready
//	                   \-> failed (absorbing)
//
// LoadStore starts the open and returns immediately. Once the file is
// attached, a private-queue context named "Migration" runs the migration
// callback; readiness is published only after the callback returns.
// NewContext blocks until then.
//
// Store availability is a precondition for the rest of the process. An open
// failure is reported to the diagnostic notifier, given a bounded grace
// period to flush, and then terminates the process with
// ExitStoreUnavailable. It is never returned to NewContext callers.
//
// # Thread-safety
//
// Every Manager method is safe for concurrent use. The store handle is
// written once before the readiness channel closes and is read without
// locks afterwards.
package database
