package testutil

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sharedstore/internal/pixel"
)

func TestRecordingNotifier(t *testing.T) {
	n := &RecordingNotifier{}
	params := map[string]string{"app_state": "0"}
	ch := n.Fire(pixel.DBInitializationError, errors.New("boom"), params)

	select {
	case <-ch:
	default:
		t.Fatal("delivery should complete immediately without Hold")
	}

	params["app_state"] = "mutated"
	reports := n.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, pixel.DBInitializationError, reports[0].Event)
	assert.EqualError(t, reports[0].Err, "boom")
	assert.Equal(t, "0", reports[0].Params["app_state"], "params are copied")
}

func TestRecordingNotifier_Hold(t *testing.T) {
	n := &RecordingNotifier{Hold: true}
	ch := n.Fire(pixel.DBInitializationError, nil, nil)

	select {
	case <-ch:
		t.Fatal("held delivery completed early")
	default:
	}

	n.Release()
	<-ch
}

func TestExitRecorder(t *testing.T) {
	r := NewExitRecorder()
	assert.False(t, r.Called())

	r.Exit(3)
	assert.True(t, r.Called())
	assert.Equal(t, 3, r.Wait(t, time.Second))
	assert.False(t, r.Called())
}

func TestGatedOpener(t *testing.T) {
	g := NewGatedOpener()
	path := filepath.Join(t.TempDir(), "Database.sqlite")

	done := make(chan error, 1)
	go func() {
		s, err := g.Open(path, BookmarksModel())
		if err == nil {
			s.Close()
		}
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("open returned before release")
	case <-time.After(20 * time.Millisecond):
	}

	g.Release()
	g.Release()
	require.NoError(t, <-done)
	assert.Equal(t, 1, g.Calls())
}

func TestBookmarksModel(t *testing.T) {
	m := BookmarksModel()
	assert.Equal(t, []string{"Bookmark", "Folder", "Favorite"}, m.EntityNames())
}
