package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/sharedstore/internal/ir"
)

func bookmarkDescriptor() *ir.EntityDescriptor {
	return &ir.EntityDescriptor{
		Name: "Bookmark",
		Attributes: []ir.AttributeDescriptor{
			{Name: "url", Type: ir.KindString},
			{Name: "title", Type: ir.KindString, Optional: true},
			{Name: "favorite", Type: ir.KindBool, Optional: true},
			{Name: "visits", Type: ir.KindInt, Optional: true},
		},
	}
}

func folderDescriptor() *ir.EntityDescriptor {
	return &ir.EntityDescriptor{
		Name: "Folder",
		Attributes: []ir.AttributeDescriptor{
			{Name: "name", Type: ir.KindString},
		},
	}
}

func tagDescriptor() *ir.EntityDescriptor {
	return &ir.EntityDescriptor{
		Name: "Tag",
		Attributes: []ir.AttributeDescriptor{
			{Name: "label", Type: ir.KindString},
			{Name: "aliases", Type: ir.KindArray, Optional: true},
		},
	}
}

func testModel() *ir.Model {
	return ir.MustModel(bookmarkDescriptor(), folderDescriptor(), tagDescriptor())
}

// createTestStore opens a store in a temp dir with the test model.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStore(t, filepath.Join(t.TempDir(), "test.sqlite"), testModel())
}

func openTestStore(t *testing.T, path string, model *ir.Model) *Store {
	t.Helper()
	s, err := Open(path, model)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertBookmark inserts and saves one bookmark through a fresh context.
func insertBookmark(t *testing.T, s *Store, url string) *Object {
	t.Helper()
	c := s.NewContext(CallerBound, "seed")
	obj, err := c.Insert("Bookmark", ir.Object{"url": ir.String(url)})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := c.Save(t.Context()); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	return obj
}
