package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/queryir"
)

func seedMixed(t *testing.T, s *Store) {
	t.Helper()
	c := s.NewContext(CallerBound, "seed")
	for _, u := range []string{"https://a.example", "https://b.example"} {
		_, err := c.Insert("Bookmark", ir.Object{"url": ir.String(u)})
		require.NoError(t, err)
	}
	for _, n := range []string{"Inbox", "Archive"} {
		_, err := c.Insert("Folder", ir.Object{"name": ir.String(n)})
		require.NoError(t, err)
	}
	_, err := c.Insert("Tag", ir.Object{"label": ir.String("work")})
	require.NoError(t, err)
	require.NoError(t, c.Save(context.Background()))
}

func countOf(t *testing.T, s *Store, entity string) int {
	t.Helper()
	n, err := s.NewContext(CallerBound, "").Count(context.Background(), queryir.All(entity))
	require.NoError(t, err)
	return n
}

func TestDeleteAll_Objects(t *testing.T) {
	s := createTestStore(t)
	seedMixed(t, s)
	ctx := context.Background()

	c := s.NewContext(CallerBound, "")
	objs, err := c.Fetch(ctx, queryir.All("Bookmark"))
	require.NoError(t, err)

	c.DeleteAll(objs...)
	assert.True(t, c.HasChanges())
	assert.Equal(t, 2, countOf(t, s, "Bookmark"), "DeleteAll does not save")

	require.NoError(t, c.Save(ctx))
	assert.Zero(t, countOf(t, s, "Bookmark"))
	assert.Equal(t, 2, countOf(t, s, "Folder"))
}

func TestDeleteAllMatching_Filter(t *testing.T) {
	s := createTestStore(t)
	seedMixed(t, s)
	ctx := context.Background()

	c := s.NewContext(CallerBound, "")
	c.DeleteAllMatching(ctx, queryir.Where("Folder", queryir.Eq("name", ir.String("Inbox"))))
	require.NoError(t, c.Save(ctx))

	left, err := c.Fetch(ctx, queryir.All("Folder"))
	require.NoError(t, err)
	require.Len(t, left, 1)
	name, _ := left[0].Get("name")
	assert.Equal(t, ir.String("Archive"), name)
}

func TestDeleteAllMatching_SwallowsFetchError(t *testing.T) {
	s := createTestStore(t)
	seedMixed(t, s)

	tests := []struct {
		name string
		req  queryir.FetchRequest
	}{
		{"unknown entity", queryir.All("Missing")},
		{"type mismatch", queryir.Where("Bookmark", queryir.Eq("url", ir.Int(1)))},
		{"array comparison", queryir.Where("Tag", queryir.Eq("aliases", ir.Array{}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := s.NewContext(CallerBound, "")
			assert.NotPanics(t, func() { c.DeleteAllMatching(context.Background(), tt.req) })
			assert.False(t, c.HasChanges())
		})
	}

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := s.NewContext(CallerBound, "")
		c.DeleteAllMatching(ctx, queryir.All("Bookmark"))
		assert.False(t, c.HasChanges())
	})
}

func TestDeleteAllEntities(t *testing.T) {
	s := createTestStore(t)
	seedMixed(t, s)
	ctx := context.Background()

	c := s.NewContext(CallerBound, "")
	c.DeleteAllEntities(ctx, bookmarkDescriptor(), nil, folderDescriptor())
	require.NoError(t, c.Save(ctx))

	assert.Zero(t, countOf(t, s, "Bookmark"))
	assert.Zero(t, countOf(t, s, "Folder"))
	assert.Equal(t, 1, countOf(t, s, "Tag"), "other entities are untouched")
}

func TestDeleteAllEntities_IncludesPendingInserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := s.NewContext(CallerBound, "")
	_, err := c.Insert("Folder", ir.Object{"name": ir.String("Draft")})
	require.NoError(t, err)

	c.DeleteAllEntities(ctx, folderDescriptor())
	assert.False(t, c.HasChanges())
}
