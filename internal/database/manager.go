package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/roach88/sharedstore/internal/appstate"
	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/location"
	"github.com/roach88/sharedstore/internal/pixel"
	"github.com/roach88/sharedstore/internal/store"
)

const (
	// DefaultName is the conventional store name.
	DefaultName = "Database"

	// DefaultGroupPrefix is the app group the default group id derives from.
	DefaultGroupPrefix = "group.sharedstore"

	// MigrationContextName names the context the migration callback runs on.
	MigrationContextName = "Migration"

	// DefaultGracePeriod bounds how long a fatal failure waits for the
	// diagnostic report before exiting.
	DefaultGracePeriod = time.Second
)

// GroupID derives the store's shared group identifier from an app group
// prefix.
func GroupID(prefix string) string {
	return prefix + ".database"
}

// State is the lifecycle state of a Manager.
type State int32

const (
	StateUnopened State = iota
	StateOpening
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MigrateFunc runs once against the migration context, on that context's
// queue, before the store becomes ready. It must not call PerformAndWait on
// the context it is given.
type MigrateFunc func(ctx *store.Context)

// Opener opens the store file. store.Open is the production opener.
type Opener func(path string, model *ir.Model) (*store.Store, error)

// Manager owns the process's single store handle.
type Manager struct {
	name      string
	groupID   string
	model     *ir.Model
	resolver  *location.Resolver
	notifier  pixel.Notifier
	lifecycle appstate.Provider
	grace     time.Duration
	exit      func(int)
	open      Opener
	logger    *slog.Logger

	state  atomic.Int32
	ready  chan struct{} // closed once, on success
	failed chan struct{} // closed once, on failure
	store  *store.Store  // written before ready closes
	err    error         // written before failed closes
}

// Option configures a Manager.
type Option func(*Manager)

// WithGroupID sets the shared group identifier.
func WithGroupID(id string) Option {
	return func(m *Manager) { m.groupID = id }
}

// WithResolver sets how the store file is located.
func WithResolver(r *location.Resolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// WithNotifier sets the diagnostic notifier for initialization failures.
func WithNotifier(n pixel.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithLifecycle sets the provider of the process lifecycle snapshot attached
// to failure reports.
func WithLifecycle(p appstate.Provider) Option {
	return func(m *Manager) { m.lifecycle = p }
}

// WithGracePeriod bounds the wait for the failure report before exiting.
func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) { m.grace = d }
}

// WithExit replaces os.Exit on the failure path.
func WithExit(exit func(int)) Option {
	return func(m *Manager) { m.exit = exit }
}

// WithOpener replaces store.Open.
func WithOpener(open Opener) Option {
	return func(m *Manager) { m.open = open }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a Manager for the named store. It does not touch the disk.
func New(name string, model *ir.Model, opts ...Option) *Manager {
	m := &Manager{
		name:     name,
		groupID:  GroupID(DefaultGroupPrefix),
		model:    model,
		notifier: pixel.LogNotifier{},
		grace:    DefaultGracePeriod,
		exit:     os.Exit,
		open:     store.Open,
		ready:    make(chan struct{}),
		failed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.resolver == nil {
		m.resolver = location.NewResolver(location.DirContainers{Root: location.DefaultRoot()})
	}
	if m.logger == nil {
		m.logger = slog.Default().With("component", "database")
	}
	if m.notifier == nil {
		m.notifier = pixel.Nop{}
	}
	m.state.Store(int32(StateUnopened))
	return m
}

// Name returns the store name.
func (m *Manager) Name() string { return m.name }

// GroupID returns the shared group identifier.
func (m *Manager) GroupID() string { return m.groupID }

// Model returns the compiled model the store is opened with.
func (m *Manager) Model() *ir.Model { return m.model }

// State returns the current lifecycle state.
func (m *Manager) State() State { return State(m.state.Load()) }

// Ready returns a channel closed once the store is ready.
func (m *Manager) Ready() <-chan struct{} { return m.ready }

// Path resolves the store file path without opening it or creating its
// container.
func (m *Manager) Path() (string, error) {
	return m.resolver.Resolve(m.groupID, m.name)
}

// IsStoreFileInitialized reports whether the store file has ever been
// created on disk. It does not say whether the store is open.
func (m *Manager) IsStoreFileInitialized() bool {
	return m.resolver.FileExists(m.groupID, m.name)
}

// LoadStore starts opening the store in the background and returns
// immediately. onMigrate may be nil.
//
// LoadStore may be called once. Later calls log an error and return
// ErrAlreadyLoaded without affecting the first load.
func (m *Manager) LoadStore(onMigrate MigrateFunc) error {
	if !m.state.CompareAndSwap(int32(StateUnopened), int32(StateOpening)) {
		m.logger.Error("store load requested more than once",
			"name", m.name,
			"state", m.State().String(),
		)
		return ErrAlreadyLoaded
	}

	m.logger.Debug("loading store", "name", m.name, "group_id", m.groupID)
	go m.load(onMigrate)
	return nil
}

func (m *Manager) load(onMigrate MigrateFunc) {
	s, err := m.openStore()
	if err != nil {
		m.fail(err)
		return
	}

	migration := s.NewContext(store.PrivateQueue, MigrationContextName)
	if onMigrate != nil {
		err = migration.PerformAndWait(func() { onMigrate(migration) })
	}
	migration.Close()
	if err != nil {
		_ = s.Close()
		m.fail(&StoreOpenError{Path: s.Path(), Err: err})
		return
	}

	m.store = s
	m.state.Store(int32(StateReady))
	close(m.ready)
	m.logger.Info("store ready", "name", m.name, "path", s.Path())
}

func (m *Manager) openStore() (*store.Store, error) {
	if m.model == nil {
		return nil, &ConfigurationError{Message: "no compiled model available"}
	}
	if m.name == "" {
		return nil, &ConfigurationError{Message: "empty store name"}
	}
	path, err := m.resolver.Prepare(m.groupID, m.name)
	if err != nil {
		return nil, &ConfigurationError{Message: "cannot resolve store location", Err: err}
	}
	s, err := m.open(path, m.model)
	if err != nil {
		return nil, &StoreOpenError{Path: path, Err: err}
	}
	return s, nil
}

// fail reports err and terminates the process. With an injected exit that
// returns, the manager stays in StateFailed.
func (m *Manager) fail(err error) {
	m.err = err
	m.state.Store(int32(StateFailed))
	close(m.failed)

	params := map[string]string{}
	if m.lifecycle != nil {
		params = m.lifecycle.Snapshot().Params()
	}
	m.logger.Error("store initialization failed", "name", m.name, "error", err)

	delivered := m.notifier.Fire(pixel.DBInitializationError, err, params)
	timer := time.NewTimer(m.grace)
	defer timer.Stop()
	select {
	case <-delivered:
	case <-timer.C:
		m.logger.Warn("diagnostic report not flushed before exit", "grace", m.grace)
	}

	m.exit(ExitStoreUnavailable)
}

// NewContext blocks until the store is ready, then returns a new context
// bound to it. It never returns if the load fails.
func (m *Manager) NewContext(mode store.ConcurrencyMode, name string) *store.Context {
	<-m.ready
	return m.store.NewContext(mode, name)
}

// WaitUntilReady blocks until the store is ready, the load fails, or ctx is
// done.
func (m *Manager) WaitUntilReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-m.failed:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, m.err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the store handle if it was opened.
func (m *Manager) Close() error {
	select {
	case <-m.ready:
		return m.store.Close()
	default:
		return nil
	}
}

// Err returns the initialization error once the load has failed.
func (m *Manager) Err() error {
	select {
	case <-m.failed:
		return m.err
	default:
		return nil
	}
}
