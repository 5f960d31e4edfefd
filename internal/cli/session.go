package cli

import (
	"context"
	"errors"

	"github.com/roach88/sharedstore/internal/appstate"
	"github.com/roach88/sharedstore/internal/database"
	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/location"
	"github.com/roach88/sharedstore/internal/pixel"
)

// session wires a database.Manager from the loaded configuration.
//
// The manager's fatal exit is routed back to the command: the command
// prints the failure and returns ExitStoreUnavailable, and main exits the
// process with it.
type session struct {
	opts      *RootOptions
	formatter *Formatter
	resolver  *location.Resolver
	manager   *database.Manager

	exited   chan struct{}
	exitCode int
}

func newSession(opts *RootOptions, formatter *Formatter, model *ir.Model) *session {
	cfg := opts.Config
	s := &session{
		opts:      opts,
		formatter: formatter,
		exited:    make(chan struct{}),
	}

	root := cfg.Store.ContainerRoot
	if root == "" {
		root = location.DefaultRoot()
	}
	s.resolver = location.NewResolver(location.DirContainers{Root: root})

	var notifier pixel.Notifier = pixel.LogNotifier{Logger: opts.Logger}
	if cfg.Diagnostics.Endpoint != "" {
		notifier = pixel.Multi{
			notifier,
			pixel.NewHTTPNotifier(cfg.Diagnostics.Endpoint,
				pixel.WithRate(cfg.Diagnostics.RatePerSecond, cfg.Diagnostics.Burst)),
		}
	}

	s.manager = database.New(cfg.Store.Name, model,
		database.WithGroupID(cfg.Store.ResolvedGroupID()),
		database.WithResolver(s.resolver),
		database.WithNotifier(notifier),
		database.WithLifecycle(appstate.NewTracker(cfg.Lifecycle.ProtectedDir)),
		database.WithGracePeriod(cfg.Diagnostics.GracePeriod),
		database.WithLogger(opts.Logger.With("component", "database")),
		database.WithExit(func(code int) {
			s.exitCode = code
			close(s.exited)
		}),
	)
	return s
}

// loadModel compiles the configured schema directory.
func loadModel(opts *RootOptions, formatter *Formatter) (*SchemaResult, error) {
	result, err := LoadSchema(opts.Config.Store.SchemaDir)
	if err != nil {
		code := ErrCodeGeneric
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			code = loadErr.Code
		}
		return nil, formatter.Fail(ExitCommandError, code, "cannot load schema", err)
	}
	opts.Logger.Debug("schema loaded", "files", result.FileCount, "entities", len(result.Model.Entities()), "hash", result.Model.Hash())
	return result, nil
}

// load opens the store, running migrate on first open, and blocks until it
// is ready. A failed load waits for the manager to finish reporting before
// returning ExitStoreUnavailable.
func (s *session) load(ctx context.Context, migrate database.MigrateFunc) error {
	if err := s.manager.LoadStore(migrate); err != nil {
		return s.formatter.Fail(ExitFailure, ErrCodeGeneric, "store already loading", err)
	}

	err := s.manager.WaitUntilReady(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrStoreUnavailable) {
		return s.formatter.Fail(ExitFailure, ErrCodeTimeout, "store did not become ready", err)
	}

	code := ExitStoreUnavailable
	select {
	case <-s.exited:
		code = s.exitCode
	case <-ctx.Done():
	}
	return s.formatter.Fail(code, ErrCodeStoreUnavailable, "store unavailable", s.manager.Err())
}

// close releases the store handle.
func (s *session) close() {
	if err := s.manager.Close(); err != nil {
		s.opts.Logger.Warn("closing store", "error", err)
	}
}

// entity looks up name in the model or reports it as unknown.
func (s *session) entity(name string) (*ir.EntityDescriptor, error) {
	desc, ok := s.manager.Model().Entity(name)
	if !ok {
		return nil, s.formatter.Fail(ExitCommandError, ErrCodeUnknownEntity,
			"unknown entity "+name, nil)
	}
	return desc, nil
}
