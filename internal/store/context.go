package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/queryir"
)

// ConcurrencyMode selects where a Context runs Perform work.
type ConcurrencyMode int

const (
	// PrivateQueue contexts own a serial background goroutine.
	PrivateQueue ConcurrencyMode = iota + 1
	// CallerBound contexts run work inline on the calling goroutine.
	CallerBound
)

// String returns the mode name used in logs.
func (m ConcurrencyMode) String() string {
	switch m {
	case PrivateQueue:
		return "private"
	case CallerBound:
		return "caller"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Context is a unit of work bound to a Store.
//
// Thread-safety: every method is safe for concurrent use; the context's
// internal mutex serializes them. Objects it returns may be read from any
// goroutine while the context refreshes them. Perform gives PrivateQueue
// contexts a serial execution order for multi-step work.
type Context struct {
	store *Store
	mode  ConcurrencyMode
	name  string
	queue *workQueue // nil for CallerBound

	mu         sync.Mutex
	registered map[string]*Object // identity map: one *Object per id
	inserted   map[string]*Object
	updated    map[string]*Object
	deleted    map[string]*Object
	nextOrder  int64
	closed     bool
}

// NewContext creates a context bound to the store. The name is only used
// for diagnostics and may be empty.
func (s *Store) NewContext(mode ConcurrencyMode, name string) *Context {
	if mode != CallerBound {
		mode = PrivateQueue
	}
	c := &Context{
		store:      s,
		mode:       mode,
		name:       name,
		registered: make(map[string]*Object),
		inserted:   make(map[string]*Object),
		updated:    make(map[string]*Object),
		deleted:    make(map[string]*Object),
	}
	if mode == PrivateQueue {
		c.queue = newWorkQueue()
	}
	return c
}

// Name returns the diagnostic name.
func (c *Context) Name() string { return c.name }

// Mode returns the concurrency mode.
func (c *Context) Mode() ConcurrencyMode { return c.mode }

// Store returns the store the context is bound to.
func (c *Context) Store() *Store { return c.store }

// Perform schedules fn. PrivateQueue contexts run it asynchronously on the
// context goroutine; CallerBound contexts run it before returning.
func (c *Context) Perform(fn func()) error {
	if c.queue == nil {
		if c.isClosed() {
			return ErrContextClosed
		}
		fn()
		return nil
	}
	if !c.queue.enqueue(fn) {
		return ErrContextClosed
	}
	return nil
}

// PerformAndWait runs fn on the context's execution path and waits for it.
// Calling it from inside a Perform block of the same context deadlocks.
func (c *Context) PerformAndWait(fn func()) error {
	if c.queue == nil {
		return c.Perform(fn)
	}
	done := make(chan struct{})
	if !c.queue.enqueue(func() {
		defer close(done)
		fn()
	}) {
		return ErrContextClosed
	}
	<-done
	return nil
}

// Close stops the context goroutine after queued work drains and discards
// unsaved changes. Close is idempotent.
func (c *Context) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	if c.queue != nil {
		c.queue.close()
	}
}

func (c *Context) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Insert creates a new object pending save.
func (c *Context) Insert(entity string, attrs ir.Object) (*Object, error) {
	desc, ok := c.store.model.Entity(entity)
	if !ok {
		return nil, fmt.Errorf("insert: unknown entity %q", entity)
	}
	if attrs == nil {
		attrs = ir.Object{}
	}
	if err := desc.Check(attrs); err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("insert: generate id: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextOrder++
	obj := &Object{
		id:     id.String(),
		entity: entity,
		attrs:  attrs.Clone(),
		order:  c.nextOrder,
	}
	c.registered[obj.id] = obj
	c.inserted[obj.id] = obj
	return obj, nil
}

// Update merges attrs into the object's attributes. The merged set must
// still satisfy the entity descriptor.
func (c *Context) Update(obj *Object, attrs ir.Object) error {
	desc, ok := c.store.model.Entity(obj.entity)
	if !ok {
		return fmt.Errorf("update: unknown entity %q", obj.entity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, gone := c.deleted[obj.id]; gone {
		return fmt.Errorf("update %s: %w", obj.id, ErrObjectDeleted)
	}
	target := c.adopt(obj)

	merged := target.attrs.Clone()
	for k, v := range attrs {
		merged[k] = v
	}
	if err := desc.Check(merged); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	target.setAttrs(merged)
	if _, pending := c.inserted[target.id]; !pending {
		c.updated[target.id] = target
	}
	return nil
}

// Delete marks the object for deletion on the next Save. Deleting an
// object that was inserted and never saved simply forgets it. Objects
// fetched through another context are addressed by id.
func (c *Context) Delete(obj *Object) {
	if obj == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.adopt(obj)
	if _, pending := c.inserted[target.id]; pending {
		delete(c.inserted, target.id)
		delete(c.registered, target.id)
		return
	}
	delete(c.updated, target.id)
	c.deleted[target.id] = target
}

// adopt returns this context's instance for obj, registering a copy when
// obj was materialized elsewhere. Caller holds c.mu.
func (c *Context) adopt(obj *Object) *Object {
	if own, ok := c.registered[obj.id]; ok {
		return own
	}
	attrs, seq := obj.snapshot()
	own := &Object{id: obj.id, entity: obj.entity, attrs: attrs.Clone(), seq: seq, order: obj.order}
	c.registered[own.id] = own
	return own
}

// HasChanges reports whether Save has anything to write.
func (c *Context) HasChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasChangesLocked()
}

func (c *Context) hasChangesLocked() bool {
	return len(c.inserted) > 0 || len(c.updated) > 0 || len(c.deleted) > 0
}

// Rollback discards pending changes. Objects updated in memory are
// forgotten so the next fetch reloads them.
func (c *Context) Rollback() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.inserted {
		delete(c.registered, id)
	}
	for id := range c.updated {
		delete(c.registered, id)
	}
	c.inserted = make(map[string]*Object)
	c.updated = make(map[string]*Object)
	c.deleted = make(map[string]*Object)
}

// Save commits pending inserts, updates and deletes in one transaction.
// On failure nothing is written and the pending changes are kept.
func (c *Context) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasChangesLocked() {
		return nil
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save: begin tx: %w", err)
	}
	defer tx.Rollback()

	inserts := sortedObjects(c.inserted)
	seqs := make(map[string]int64, len(inserts))
	for _, obj := range inserts {
		attrsJSON, err := ir.MarshalCanonical(obj.attrs)
		if err != nil {
			return fmt.Errorf("save: insert %s: %w", obj.id, err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO objects (id, entity, attributes) VALUES (?, ?, ?)`,
			obj.id, obj.entity, string(attrsJSON))
		if err != nil {
			return fmt.Errorf("save: insert %s: %w", obj.id, err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("save: insert %s: last insert id: %w", obj.id, err)
		}
		seqs[obj.id] = seq
	}

	for _, obj := range sortedObjects(c.updated) {
		attrsJSON, err := ir.MarshalCanonical(obj.attrs)
		if err != nil {
			return fmt.Errorf("save: update %s: %w", obj.id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE objects SET attributes = ? WHERE id = ?`,
			string(attrsJSON), obj.id); err != nil {
			return fmt.Errorf("save: update %s: %w", obj.id, err)
		}
	}

	for _, obj := range sortedObjects(c.deleted) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, obj.id); err != nil {
			return fmt.Errorf("save: delete %s: %w", obj.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save: commit: %w", err)
	}

	for id, seq := range seqs {
		c.inserted[id].setSeq(seq)
	}
	for id := range c.deleted {
		delete(c.registered, id)
	}
	c.inserted = make(map[string]*Object)
	c.updated = make(map[string]*Object)
	c.deleted = make(map[string]*Object)

	c.store.logger.Debug("context saved",
		"context", c.name,
		"inserted", len(seqs),
	)
	return nil
}

// Fetch executes a request and returns matching objects, including this
// context's pending inserts and updates and excluding its pending deletes.
func (c *Context) Fetch(ctx context.Context, req queryir.FetchRequest) ([]*Object, error) {
	if err := queryir.Validate(req, c.store.model); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Pending changes can hide or add rows, so the limit is applied after
	// merging rather than in SQL.
	sqlReq := req
	pending := c.hasChangesLocked()
	if pending {
		sqlReq.Limit = 0
	}

	query, params, err := c.store.compiler.CompileFetch(sqlReq)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	rows, err := c.store.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.Entity, err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var results []*Object
	for rows.Next() {
		var (
			seq       int64
			id        string
			attrsJSON string
		)
		if err := rows.Scan(&seq, &id, &attrsJSON); err != nil {
			return nil, fmt.Errorf("fetch %s: scan: %w", req.Entity, err)
		}
		seen[id] = true
		if _, gone := c.deleted[id]; gone {
			continue
		}
		obj, ok := c.registered[id]
		if _, dirty := c.updated[id]; dirty {
			if !queryir.Matches(req.Filter, id, obj.attrs) {
				continue
			}
			results = append(results, obj)
			continue
		}

		var attrs ir.Object
		if err := attrs.UnmarshalJSON([]byte(attrsJSON)); err != nil {
			return nil, fmt.Errorf("fetch %s: decode %s: %w", req.Entity, id, err)
		}
		if !ok {
			obj = &Object{id: id, entity: req.Entity}
			c.registered[id] = obj
		}
		// Clean objects pick up saves made through other contexts.
		obj.load(attrs, seq)
		results = append(results, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.Entity, err)
	}

	if pending {
		results = append(results, c.pendingMatches(req, seen)...)
		sort.SliceStable(results, func(i, j int) bool { return less(results[i], results[j]) })
		if req.Limit > 0 && len(results) > req.Limit {
			results = results[:req.Limit]
		}
	}
	return results, nil
}

// pendingMatches returns inserted and updated objects the database query
// could not have returned. Caller holds c.mu.
func (c *Context) pendingMatches(req queryir.FetchRequest, seen map[string]bool) []*Object {
	var out []*Object
	for _, group := range []map[string]*Object{c.inserted, c.updated} {
		for id, obj := range group {
			if seen[id] || obj.entity != req.Entity {
				continue
			}
			if queryir.Matches(req.Filter, id, obj.attrs) {
				out = append(out, obj)
			}
		}
	}
	return out
}

// Count returns the number of objects Fetch would return, ignoring Limit.
func (c *Context) Count(ctx context.Context, req queryir.FetchRequest) (int, error) {
	req.Limit = 0
	if !c.HasChanges() {
		if err := queryir.Validate(req, c.store.model); err != nil {
			return 0, fmt.Errorf("count: %w", err)
		}
		query, params, err := c.store.compiler.CompileCount(req)
		if err != nil {
			return 0, fmt.Errorf("count: %w", err)
		}
		var n int
		if err := c.store.db.QueryRowContext(ctx, query, params...).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", req.Entity, err)
		}
		return n, nil
	}

	objs, err := c.Fetch(ctx, req)
	if err != nil {
		return 0, err
	}
	return len(objs), nil
}

func sortedObjects(m map[string]*Object) []*Object {
	out := make([]*Object, 0, len(m))
	for _, obj := range m {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
