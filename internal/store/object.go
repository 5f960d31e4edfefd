package store

import (
	"sync"

	"github.com/roach88/sharedstore/internal/ir"
)

// Object is a managed object materialized in one Context.
// Attribute values are only changed through Context.Update.
//
// The owning context writes attrs and seq while holding both its own mutex
// and mu; readers outside the context take mu. The attrs map is replaced,
// never mutated in place.
type Object struct {
	id     string
	entity string

	mu    sync.RWMutex
	attrs ir.Object
	// seq is assigned by the database on save; 0 while pending insert.
	seq int64

	// order is the insertion order within the owning context.
	order int64
}

// ID returns the object identifier (a UUIDv7 string).
func (o *Object) ID() string { return o.id }

// Entity returns the entity name.
func (o *Object) Entity() string { return o.entity }

// Seq returns the persisted insertion sequence, or 0 if never saved.
func (o *Object) Seq() int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.seq
}

// Get returns one attribute value.
func (o *Object) Get(name string) (ir.Value, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.attrs[name]
	return v, ok
}

// Attributes returns a copy of the attribute set.
func (o *Object) Attributes() ir.Object {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.attrs.Clone()
}

func (o *Object) snapshot() (ir.Object, int64) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.attrs, o.seq
}

func (o *Object) load(attrs ir.Object, seq int64) {
	o.mu.Lock()
	o.attrs = attrs
	o.seq = seq
	o.mu.Unlock()
}

func (o *Object) setAttrs(attrs ir.Object) {
	o.mu.Lock()
	o.attrs = attrs
	o.mu.Unlock()
}

func (o *Object) setSeq(seq int64) {
	o.mu.Lock()
	o.seq = seq
	o.mu.Unlock()
}

// less orders persisted objects by seq, then pending objects by insertion
// order, with id as the final tiebreaker. Both objects belong to the
// context whose mutex the caller holds.
func less(a, b *Object) bool {
	aPending, bPending := a.seq == 0, b.seq == 0
	switch {
	case aPending != bPending:
		return !aPending
	case !aPending && a.seq != b.seq:
		return a.seq < b.seq
	case aPending && a.order != b.order:
		return a.order < b.order
	default:
		return a.id < b.id
	}
}
