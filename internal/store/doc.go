// Package store provides the SQLite-backed object store that the lifecycle
// manager opens exactly once per process.
//
// The store keeps managed objects of the entities declared in an ir.Model:
//   - Objects: one row per object (id, entity, canonical JSON attributes)
//   - Entities: the descriptors the file has been opened with
//   - Metadata: model hash and bookkeeping values
//
// # Contexts
//
// All reads and writes go through a Context, a unit of work bound to the
// Store. A Context tracks pending inserts, updates and deletes until Save
// commits them in one transaction. Fetches see the context's own pending
// changes.
//
// Two concurrency modes exist:
//   - PrivateQueue: Perform runs work on a dedicated goroutine, serially
//   - CallerBound: Perform runs work inline on the calling goroutine
//
// Each Context serializes access to its own state. Coordinating saves
// across contexts is the caller's job.
//
// # Critical Patterns
//
// Deterministic results: every fetch orders by seq, then id with
// COLLATE BINARY. Pending inserts sort after persisted objects in the order
// they were inserted.
//
// Model merge: opening with a model records each descriptor. New entities
// and new optional attributes merge in place. Removing an attribute,
// changing its type, or adding a required attribute to an entity that
// already has rows fails with IncompatibleModelError.
//
// # Database Configuration
//
//   - WAL mode: concurrent readers in other processes during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks held by other processes
//   - foreign_keys=ON: objects must reference a known entity
package store
