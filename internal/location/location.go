// Package location resolves where the shared store file lives.
//
// A store is shared between processes through a container directory keyed
// by a group identifier. The file inside it is named "<store>.sqlite".
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Extension is the engine-native file extension of a store.
const Extension = "sqlite"

// ErrContainerUnavailable is returned when the shared container for a group
// cannot be resolved. It is a configuration problem and is not retried.
var ErrContainerUnavailable = errors.New("location: shared container unavailable")

// ContainerResolver maps a group identifier to its shared directory. It
// only computes the path; the directory may not exist yet.
type ContainerResolver interface {
	ContainerDir(groupID string) (string, error)
}

// DirContainers keeps one directory per group under Root.
type DirContainers struct {
	Root string
}

// ContainerDir returns <Root>/<groupID>.
func (d DirContainers) ContainerDir(groupID string) (string, error) {
	if d.Root == "" {
		return "", fmt.Errorf("%w: no container root configured", ErrContainerUnavailable)
	}
	if !validGroupID(groupID) {
		return "", fmt.Errorf("%w: invalid group id %q", ErrContainerUnavailable, groupID)
	}
	return filepath.Join(d.Root, groupID), nil
}

func validGroupID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

// DefaultRoot returns the per-user directory holding shared containers, or
// "" when the platform has none.
func DefaultRoot() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sharedstore", "containers")
}

// FileName returns the on-disk file name for a store.
func FileName(storeName string) string {
	return storeName + "." + Extension
}

// Resolver builds store file paths from a ContainerResolver.
type Resolver struct {
	containers ContainerResolver
	logger     *slog.Logger
}

// NewResolver returns a resolver over containers.
func NewResolver(containers ContainerResolver) *Resolver {
	return &Resolver{
		containers: containers,
		logger:     slog.Default().With("component", "location"),
	}
}

// Resolve returns the full path of the store file. Neither the file nor its
// container directory is created.
func (r *Resolver) Resolve(groupID, storeName string) (string, error) {
	if storeName == "" {
		return "", fmt.Errorf("resolve: empty store name")
	}
	dir, err := r.containers.ContainerDir(groupID)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", groupID, err)
	}
	return filepath.Join(dir, FileName(storeName)), nil
}

// Prepare resolves the store file path and creates its container directory.
func (r *Resolver) Prepare(groupID, storeName string) (string, error) {
	path, err := r.Resolve(groupID, storeName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("resolve %s: %w: %v", groupID, ErrContainerUnavailable, err)
	}
	return path, nil
}

// FileExists reports whether the store has ever been created on disk.
// An unresolvable container counts as no file.
func (r *Resolver) FileExists(groupID, storeName string) bool {
	path, err := r.Resolve(groupID, storeName)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// WaitForFile blocks until the store file exists, for processes that must
// not create the store themselves. The container directory is created so it
// can be watched. It returns ctx.Err() on cancellation.
func (r *Resolver) WaitForFile(ctx context.Context, groupID, storeName string) error {
	path, err := r.Prepare(groupID, storeName)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("wait for %s: %w", path, err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("wait for %s: %w", path, err)
	}

	// Checked after Add so a file created in between is not missed.
	if r.FileExists(groupID, storeName) {
		return nil
	}

	r.logger.Debug("waiting for store file", "path", path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("wait for %s: watcher closed", path)
			}
			if event.Name == path && (event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Write)) {
				if r.FileExists(groupID, storeName) {
					return nil
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("wait for %s: watcher closed", path)
			}
			r.logger.Warn("error watching container", "path", path, "error", err)
		}
	}
}
