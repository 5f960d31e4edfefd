package store

import (
	"context"

	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/queryir"
)

// DeleteAll marks every object for deletion. Nothing is saved.
func (c *Context) DeleteAll(objects ...*Object) {
	for _, obj := range objects {
		c.Delete(obj)
	}
}

// DeleteAllMatching deletes every object the request returns.
// Cleanup is best effort: a failing fetch deletes nothing and is not
// reported to the caller.
func (c *Context) DeleteAllMatching(ctx context.Context, req queryir.FetchRequest) {
	objects, err := c.Fetch(ctx, req)
	if err != nil {
		c.store.logger.Debug("cleanup fetch failed",
			"context", c.name,
			"entity", req.Entity,
			"error", err,
		)
		return
	}
	c.DeleteAll(objects...)
}

// DeleteAllEntities deletes every object of each given entity, leaving
// other entities untouched.
func (c *Context) DeleteAllEntities(ctx context.Context, descs ...*ir.EntityDescriptor) {
	for _, desc := range descs {
		if desc == nil {
			continue
		}
		c.DeleteAllMatching(ctx, queryir.All(desc.Name))
	}
}
