package testutil

import (
	"sync"

	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/store"
)

// BookmarksModel returns a small model with Bookmark, Folder and Favorite
// entities.
func BookmarksModel() *ir.Model {
	return ir.MustModel(
		&ir.EntityDescriptor{
			Name: "Bookmark",
			Attributes: []ir.AttributeDescriptor{
				{Name: "url", Type: ir.KindString},
				{Name: "title", Type: ir.KindString, Optional: true},
				{Name: "folder", Type: ir.KindString, Optional: true},
			},
		},
		&ir.EntityDescriptor{
			Name: "Folder",
			Attributes: []ir.AttributeDescriptor{
				{Name: "name", Type: ir.KindString},
			},
		},
		&ir.EntityDescriptor{
			Name: "Favorite",
			Attributes: []ir.AttributeDescriptor{
				{Name: "url", Type: ir.KindString},
				{Name: "position", Type: ir.KindInt},
			},
		},
	)
}

// GatedOpener opens stores only after Release is called, so tests can
// observe the opening state.
type GatedOpener struct {
	release chan struct{}
	once    sync.Once

	mu    sync.Mutex
	calls int
}

// NewGatedOpener returns a closed gate.
func NewGatedOpener() *GatedOpener {
	return &GatedOpener{release: make(chan struct{})}
}

// Open blocks until Release, then delegates to store.Open.
func (g *GatedOpener) Open(path string, model *ir.Model) (*store.Store, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	<-g.release
	return store.Open(path, model)
}

// Release lets pending and future opens proceed.
func (g *GatedOpener) Release() {
	g.once.Do(func() { close(g.release) })
}

// Calls returns how many times Open has been invoked.
func (g *GatedOpener) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
