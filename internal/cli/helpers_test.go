package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sharedstore/internal/database"
	"github.com/roach88/sharedstore/internal/location"
)

const bookmarksSchema = `
package schema

entity: Bookmark: {
	attributes: {
		url:     string
		title?:  string
		visits?: int
	}
}

entity: Folder: {
	attributes: {
		name: string
	}
}
`

const bookmarksSeed = `
objects:
  - entity: Bookmark
    attributes:
      url: https://a.example
      title: A
      visits: 3
  - entity: Bookmark
    attributes:
      url: https://b.example
  - entity: Folder
    attributes:
      name: Inbox
`

// cliEnv is an isolated schema directory and container root.
type cliEnv struct {
	dir       string
	schemaDir string
	root      string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := &cliEnv{
		dir:       dir,
		schemaDir: filepath.Join(dir, "schema"),
		root:      filepath.Join(dir, "containers"),
	}
	require.NoError(t, os.MkdirAll(env.schemaDir, 0o755))
	env.write(t, "schema/bookmarks.cue", bookmarksSchema)
	return env
}

// write creates a file relative to the env directory and returns its path.
func (e *cliEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// storePath is where the default store file lands under the env's root.
func (e *cliEnv) storePath() string {
	return filepath.Join(e.root, database.GroupID(database.DefaultGroupPrefix), location.FileName(database.DefaultName))
}

// run executes the root command with the env's directories and returns
// stdout.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{
		"--schema", e.schemaDir,
		"--root", e.root,
		"--env-file", filepath.Join(e.dir, ".env"),
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// runJSON executes a command with --format json and decodes the response.
func (e *cliEnv) runJSON(t *testing.T, data any, args ...string) (Response, error) {
	t.Helper()
	out, err := e.run(t, append([]string{"--format", "json"}, args...)...)

	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *ResponseError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return Response{Status: raw.Status, Error: raw.Error}, err
}
