// Package harness runs store lifecycle scenarios as executable contract
// tests.
//
// A scenario simulates one or more process launches against the same group
// container. Each launch builds a fresh database.Manager, loads the store,
// runs migration and first-launch seed steps on the migration context, and
// then runs ordinary steps on a caller-bound context. Unsaved changes are
// discarded when a launch ends, the way they are when a process exits.
//
// # Scenario Format
//
//	name: first_launch_seed
//	description: "Seed runs once; later launches see the saved objects"
//	schema: |
//	  entity: Folder: attributes: name: string
//	launches:
//	  - seed:
//	      - op: insert
//	        entity: Folder
//	        attributes: { name: Inbox }
//	    steps:
//	      - op: save
//	  - corrupt: true
//	    expect: { state: failed }
//	assertions:
//	  - type: object_count
//	    entity: Folder
//	    count: 1
//
// # Step Operations
//
//   - insert: adds an object of entity with attributes
//   - update: merges attributes into every object matching where
//   - delete: deletes every object matching where
//   - purge: deletes every object of each listed entity
//   - save: commits the context
//   - rollback: discards the context's pending changes
//
// # Assertion Types
//
//   - trace_contains: an event with the given action (and entity) occurred
//   - trace_order: actions occurred in the given order
//   - trace_count: an action occurred exactly N times
//   - final_state: an object matching where has the expected attributes
//   - object_count: exactly N objects of entity match where
//
// # Golden Files
//
// RunWithGolden compares the trace and final state of a run against
// testdata/golden/<name>.golden. Object identifiers are random and never
// appear in snapshots.
package harness
