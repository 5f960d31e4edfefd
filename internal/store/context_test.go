package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/queryir"
)

func urls(objs []*Object) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		v, _ := o.Get("url")
		out = append(out, string(v.(ir.String)))
	}
	return out
}

func TestNewContext_Modes(t *testing.T) {
	s := createTestStore(t)

	private := s.NewContext(PrivateQueue, "Migration")
	defer private.Close()
	assert.Equal(t, PrivateQueue, private.Mode())
	assert.Equal(t, "Migration", private.Name())
	assert.Same(t, s, private.Store())

	caller := s.NewContext(CallerBound, "")
	assert.Equal(t, CallerBound, caller.Mode())
	assert.Empty(t, caller.Name())

	assert.Equal(t, PrivateQueue, s.NewContext(0, "").Mode(), "unknown modes fall back to private queue")
	assert.Equal(t, "private", PrivateQueue.String())
	assert.Equal(t, "caller", CallerBound.String())
}

func TestPerform_PrivateQueueRunsSerially(t *testing.T) {
	s := createTestStore(t)
	c := s.NewContext(PrivateQueue, "worker")

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 50; i++ {
		require.NoError(t, c.Perform(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, c.PerformAndWait(func() {}))
	c.Close()

	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestPerform_CallerBoundRunsInline(t *testing.T) {
	s := createTestStore(t)
	c := s.NewContext(CallerBound, "")

	ran := false
	require.NoError(t, c.Perform(func() { ran = true }))
	assert.True(t, ran)
}

func TestPerform_AfterClose(t *testing.T) {
	s := createTestStore(t)

	for _, mode := range []ConcurrencyMode{PrivateQueue, CallerBound} {
		c := s.NewContext(mode, "")
		c.Close()
		c.Close()

		assert.ErrorIs(t, c.Perform(func() {}), ErrContextClosed, mode.String())
		assert.ErrorIs(t, c.PerformAndWait(func() {}), ErrContextClosed, mode.String())
	}
}

func TestFetch_EmptyEntity(t *testing.T) {
	s := createTestStore(t)
	c := s.NewContext(CallerBound, "")

	objs, err := c.Fetch(context.Background(), queryir.All("Folder"))
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestInsertSaveFetch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := s.NewContext(CallerBound, "")

	a, err := c.Insert("Bookmark", ir.Object{"url": ir.String("https://a.example"), "favorite": ir.Bool(true)})
	require.NoError(t, err)
	_, err = c.Insert("Bookmark", ir.Object{"url": ir.String("https://b.example")})
	require.NoError(t, err)

	assert.True(t, c.HasChanges())
	assert.Zero(t, a.Seq())
	assert.Len(t, a.ID(), 36)
	assert.Equal(t, "Bookmark", a.Entity())

	require.NoError(t, c.Save(ctx))
	assert.False(t, c.HasChanges())
	assert.Positive(t, a.Seq())

	other := s.NewContext(CallerBound, "reader")
	objs, err := other.Fetch(ctx, queryir.All("Bookmark"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, urls(objs))

	favs, err := other.Fetch(ctx, queryir.Where("Bookmark", queryir.Eq("favorite", ir.Bool(true))))
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, a.ID(), favs[0].ID())

	byID, err := other.Fetch(ctx, queryir.Where("Bookmark", queryir.Eq(queryir.IDField, ir.String(a.ID()))))
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Same(t, favs[0], byID[0], "identity map returns one instance per id")
}

func TestInsert_Rejected(t *testing.T) {
	s := createTestStore(t)
	c := s.NewContext(CallerBound, "")

	_, err := c.Insert("Missing", ir.Object{})
	assert.Error(t, err)

	_, err = c.Insert("Bookmark", ir.Object{"title": ir.String("no url")})
	assert.Error(t, err)

	_, err = c.Insert("Bookmark", ir.Object{"url": ir.Int(1)})
	assert.Error(t, err)

	assert.False(t, c.HasChanges())
}

func TestFetch_SeesPendingChanges(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	saved := insertBookmark(t, s, "https://saved.example")
	gone := insertBookmark(t, s, "https://gone.example")

	c := s.NewContext(CallerBound, "")
	_, err := c.Insert("Bookmark", ir.Object{"url": ir.String("https://pending.example")})
	require.NoError(t, err)
	c.Delete(gone)

	objs, err := c.Fetch(ctx, queryir.All("Bookmark"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://saved.example", "https://pending.example"}, urls(objs))

	limited, err := c.Fetch(ctx, queryir.FetchRequest{Entity: "Bookmark", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://saved.example"}, urls(limited))

	n, err := c.Count(ctx, queryir.All("Bookmark"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Other contexts do not see unsaved work.
	reader := s.NewContext(CallerBound, "")
	n, err = reader.Count(ctx, queryir.All("Bookmark"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	objs, err = reader.Fetch(ctx, queryir.All("Bookmark"))
	require.NoError(t, err)
	assert.Equal(t, []string{saved.ID(), gone.ID()}, []string{objs[0].ID(), objs[1].ID()})
}

func TestFetch_PendingUpdateChangesMatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	obj := insertBookmark(t, s, "https://a.example")

	c := s.NewContext(CallerBound, "")
	require.NoError(t, c.Update(obj, ir.Object{"favorite": ir.Bool(true)}))

	favs, err := c.Fetch(ctx, queryir.Where("Bookmark", queryir.Eq("favorite", ir.Bool(true))))
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, obj.ID(), favs[0].ID())

	notFavs, err := c.Fetch(ctx, queryir.Where("Bookmark", queryir.Ne("favorite", ir.Bool(true))))
	require.NoError(t, err)
	assert.Empty(t, notFavs)

	require.NoError(t, c.Save(ctx))

	reader := s.NewContext(CallerBound, "")
	favs, err = reader.Fetch(ctx, queryir.Where("Bookmark", queryir.Eq("favorite", ir.Bool(true))))
	require.NoError(t, err)
	assert.Len(t, favs, 1)
}

func TestFetch_RefreshesCleanObjects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	obj := insertBookmark(t, s, "https://a.example")

	reader := s.NewContext(CallerBound, "")
	first, err := reader.Fetch(ctx, queryir.All("Bookmark"))
	require.NoError(t, err)
	require.Len(t, first, 1)

	writer := s.NewContext(CallerBound, "")
	require.NoError(t, writer.Update(obj, ir.Object{"title": ir.String("A")}))
	require.NoError(t, writer.Save(ctx))

	again, err := reader.Fetch(ctx, queryir.All("Bookmark"))
	require.NoError(t, err)
	require.Len(t, again, 1)
	title, ok := again[0].Get("title")
	require.True(t, ok)
	assert.Equal(t, ir.String("A"), title)
}

func TestFetch_InvalidRequest(t *testing.T) {
	s := createTestStore(t)
	c := s.NewContext(CallerBound, "")

	_, err := c.Fetch(context.Background(), queryir.All("Missing"))
	var verr *queryir.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, queryir.ErrUnknownEntity, verr.Code)

	_, err = c.Count(context.Background(), queryir.Where("Bookmark", queryir.Eq("url", ir.Int(3))))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, queryir.ErrTypeMismatch, verr.Code)
}

func TestUpdate(t *testing.T) {
	s := createTestStore(t)
	c := s.NewContext(CallerBound, "")
	obj := insertBookmark(t, s, "https://a.example")

	err := c.Update(obj, ir.Object{"visits": ir.String("many")})
	assert.Error(t, err)
	assert.False(t, c.HasChanges(), "rejected update leaves no pending change")

	c.Delete(obj)
	assert.ErrorIs(t, c.Update(obj, ir.Object{"visits": ir.Int(1)}), ErrObjectDeleted)
}

func TestDelete_PendingInsertIsForgotten(t *testing.T) {
	s := createTestStore(t)
	c := s.NewContext(CallerBound, "")

	obj, err := c.Insert("Folder", ir.Object{"name": ir.String("Inbox")})
	require.NoError(t, err)
	c.Delete(obj)
	c.Delete(nil)

	assert.False(t, c.HasChanges())
	require.NoError(t, c.Save(context.Background()))
}

func TestSave_DeletesRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	obj := insertBookmark(t, s, "https://a.example")

	c := s.NewContext(CallerBound, "")
	c.Delete(obj)
	require.NoError(t, c.Save(ctx))

	n, err := s.NewContext(CallerBound, "").Count(ctx, queryir.All("Bookmark"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRollback(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	obj := insertBookmark(t, s, "https://a.example")

	c := s.NewContext(CallerBound, "")
	_, err := c.Insert("Bookmark", ir.Object{"url": ir.String("https://b.example")})
	require.NoError(t, err)
	require.NoError(t, c.Update(obj, ir.Object{"title": ir.String("changed")}))

	c.Rollback()
	assert.False(t, c.HasChanges())

	objs, err := c.Fetch(ctx, queryir.All("Bookmark"))
	require.NoError(t, err)
	require.Len(t, objs, 1)
	_, hasTitle := objs[0].Get("title")
	assert.False(t, hasTitle)
}

func TestSave_FailureKeepsPendingChanges(t *testing.T) {
	s := createTestStore(t)
	c := s.NewContext(CallerBound, "")

	_, err := c.Insert("Folder", ir.Object{"name": ir.String("Inbox")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, c.Save(ctx))
	assert.True(t, c.HasChanges())

	require.NoError(t, c.Save(context.Background()))
	assert.False(t, c.HasChanges())
}

func TestPrivateQueue_FetchInsidePerform(t *testing.T) {
	s := createTestStore(t)
	insertBookmark(t, s, "https://a.example")

	c := s.NewContext(PrivateQueue, "background")
	defer c.Close()

	var (
		got []*Object
		err error
	)
	require.NoError(t, c.PerformAndWait(func() {
		got, err = c.Fetch(context.Background(), queryir.All("Bookmark"))
	}))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestObject_ReadWhileContextRefetches(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertBookmark(t, s, "https://a.example")

	c := s.NewContext(CallerBound, "")
	objs, err := c.Fetch(ctx, queryir.All("Bookmark"))
	require.NoError(t, err)
	require.Len(t, objs, 1)
	obj := objs[0]

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, err := c.Fetch(ctx, queryir.All("Bookmark"))
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			v, ok := obj.Get("url")
			assert.True(t, ok)
			assert.Equal(t, ir.String("https://a.example"), v)
			assert.NotEmpty(t, obj.Attributes())
			assert.Positive(t, obj.Seq())
		}
	}()
	wg.Wait()
}
