package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/sharedstore/internal/appstate"
	"github.com/roach88/sharedstore/internal/compiler"
	"github.com/roach88/sharedstore/internal/database"
	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/location"
	"github.com/roach88/sharedstore/internal/queryir"
	"github.com/roach88/sharedstore/internal/store"
	"github.com/roach88/sharedstore/internal/testutil"
)

// LaunchTimeout bounds each load.
const LaunchTimeout = 10 * time.Second

// corruptBytes replaces the store file for launches marked corrupt.
var corruptBytes = bytes.Repeat([]byte("not a database "), 64)

// Harness runs the launches of one scenario against a private container
// root.
type Harness struct {
	scenario *Scenario
	resolver *location.Resolver
	name     string
	logger   *slog.Logger
	result   *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh temporary container root. Errors are
// returned for malformed scenarios; expectation and assertion failures are
// reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	root, err := os.MkdirTemp("", "sharedstore-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create container root: %w", err)
	}
	defer os.RemoveAll(root)

	name := scenario.Store
	if name == "" {
		name = database.DefaultName
	}

	h := &Harness{
		scenario: scenario,
		resolver: location.NewResolver(location.DirContainers{Root: root}),
		name:     name,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		result:   NewResult(),
	}

	var last *ir.Model
	lastReady := false
	for i, launch := range scenario.Launches {
		model, err := compileSchema(scenario.Schema, launch.Schema)
		if err != nil {
			return nil, fmt.Errorf("launch %d: %w", i+1, err)
		}
		lastReady, err = h.runLaunch(i+1, launch, model)
		if err != nil {
			return nil, fmt.Errorf("launch %d: %w", i+1, err)
		}
		last = model
	}

	if lastReady {
		if err := h.snapshotState(last); err != nil {
			return nil, fmt.Errorf("reading final state: %w", err)
		}
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// compileSchema compiles the launch schema, falling back to the scenario's.
func compileSchema(scenarioSchema, launchSchema string) (*ir.Model, error) {
	src := scenarioSchema
	if launchSchema != "" {
		src = launchSchema
	}
	v := cuecontext.New().CompileString(src)
	model, err := compiler.CompileModel(v)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return model, nil
}

// runLaunch simulates one process start. It reports whether the store
// became ready.
func (h *Harness) runLaunch(n int, launch Launch, model *ir.Model) (bool, error) {
	groupID := database.GroupID(database.DefaultGroupPrefix)

	if launch.Corrupt {
		path, err := h.resolver.Prepare(groupID, h.name)
		if err != nil {
			return false, err
		}
		if err := os.WriteFile(path, corruptBytes, 0o644); err != nil {
			return false, fmt.Errorf("corrupting store: %w", err)
		}
	}

	notifier := &testutil.RecordingNotifier{}
	exits := make(chan int, 1)
	m := database.New(h.name, model,
		database.WithGroupID(groupID),
		database.WithResolver(h.resolver),
		database.WithNotifier(notifier),
		database.WithLifecycle(appstate.Static{State: appstate.Active, ProtectedDataAvailable: true}),
		database.WithGracePeriod(time.Second),
		database.WithExit(func(code int) { exits <- code }),
		database.WithLogger(h.logger),
	)

	firstLaunch := !m.IsStoreFileInitialized()
	outcome := "existing"
	if firstLaunch {
		outcome = "first_launch"
	}
	h.result.record(TraceEvent{Launch: n, Action: ActionLaunch, Outcome: outcome})

	migrate := func(c *store.Context) {
		ctx := context.Background()
		h.runSteps(ctx, n, c, launch.Migrate)
		if firstLaunch {
			h.runSteps(ctx, n, c, launch.Seed)
		}
		if c.HasChanges() {
			h.save(ctx, n, c, false)
		}
	}
	if err := m.LoadStore(migrate); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), LaunchTimeout)
	defer cancel()
	loadErr := m.WaitUntilReady(ctx)

	expect := LaunchExpect{State: StateReady}
	if launch.Expect != nil {
		expect = *launch.Expect
	}
	if expect.FirstLaunch != nil && *expect.FirstLaunch != firstLaunch {
		h.result.AddError(fmt.Sprintf("launch %d: first_launch = %v, want %v", n, firstLaunch, *expect.FirstLaunch))
	}

	if loadErr != nil {
		select {
		case code := <-exits:
			h.result.record(TraceEvent{Launch: n, Action: ActionFailed, Outcome: fmt.Sprintf("exit %d", code)})
		case <-ctx.Done():
			return false, fmt.Errorf("load did not finish: %w", loadErr)
		}
		for _, r := range notifier.Reports() {
			h.result.record(TraceEvent{
				Launch:  n,
				Action:  ActionPixel,
				Args:    paramsObject(r.Params),
				Outcome: string(r.Event),
			})
		}
		if expect.State != StateFailed {
			h.result.AddError(fmt.Sprintf("launch %d: store failed to load: %v", n, m.Err()))
		}
		return false, nil
	}

	h.result.record(TraceEvent{Launch: n, Action: ActionReady})
	if expect.State != StateReady {
		h.result.AddError(fmt.Sprintf("launch %d: store loaded, want state %s", n, expect.State))
	}

	c := m.NewContext(store.CallerBound, "harness")
	h.runSteps(ctx, n, c, launch.Steps)

	closing := "clean"
	if c.HasChanges() {
		closing = "discarded"
	}
	c.Close()
	if err := m.Close(); err != nil {
		return false, fmt.Errorf("closing store: %w", err)
	}
	h.result.record(TraceEvent{Launch: n, Action: ActionClose, Outcome: closing})
	return true, nil
}

// runSteps applies steps in order, recording each in the trace.
func (h *Harness) runSteps(ctx context.Context, n int, c *store.Context, steps []Step) {
	for _, step := range steps {
		ev := TraceEvent{Launch: n, Action: step.Op, Entity: step.Entity}

		var err error
		switch step.Op {
		case ActionInsert:
			ev.Args, err = ir.ObjectFromMap(step.Attributes)
			if err == nil {
				_, err = c.Insert(step.Entity, ev.Args)
			}
			ev.Outcome = "ok"
		case ActionUpdate:
			ev.Args, err = ir.ObjectFromMap(step.Attributes)
			var objs []*store.Object
			if err == nil {
				objs, err = h.matching(ctx, c, step.Entity, step.Where)
			}
			for _, obj := range objs {
				if err = c.Update(obj, ev.Args); err != nil {
					break
				}
			}
			ev.Outcome = fmt.Sprintf("matched %d", len(objs))
		case ActionDelete:
			var objs []*store.Object
			objs, err = h.matching(ctx, c, step.Entity, step.Where)
			c.DeleteAll(objs...)
			ev.Outcome = fmt.Sprintf("matched %d", len(objs))
		case ActionPurge:
			descs := make([]*ir.EntityDescriptor, 0, len(step.Entities))
			for _, name := range step.Entities {
				desc, _ := c.Store().Model().Entity(name)
				descs = append(descs, desc)
			}
			c.DeleteAllEntities(ctx, descs...)
			ev.Args = ir.Object{"entities": stringsArray(step.Entities)}
			ev.Outcome = "ok"
		case ActionSave:
			h.save(ctx, n, c, step.ExpectError)
			continue
		case ActionRollback:
			c.Rollback()
		}

		if err != nil {
			ev.Outcome = "error"
		}
		h.result.record(ev)
		h.checkStepError(n, step, err)
	}
}

func (h *Harness) save(ctx context.Context, n int, c *store.Context, expectError bool) {
	err := c.Save(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.result.record(TraceEvent{Launch: n, Action: ActionSave, Outcome: outcome})
	h.checkStepError(n, Step{Op: ActionSave, ExpectError: expectError}, err)
}

func (h *Harness) checkStepError(n int, step Step, err error) {
	switch {
	case err != nil && !step.ExpectError:
		h.result.AddError(fmt.Sprintf("launch %d: %s %s: %v", n, step.Op, step.Entity, err))
	case err == nil && step.ExpectError:
		h.result.AddError(fmt.Sprintf("launch %d: %s %s: expected an error", n, step.Op, step.Entity))
	}
}

// matching fetches the objects of entity whose attributes equal where.
func (h *Harness) matching(ctx context.Context, c *store.Context, entity string, where map[string]any) ([]*store.Object, error) {
	req, err := whereRequest(entity, where)
	if err != nil {
		return nil, err
	}
	return c.Fetch(ctx, req)
}

// snapshotState reopens the store and records every object's attributes.
func (h *Harness) snapshotState(model *ir.Model) error {
	path, err := h.resolver.Resolve(database.GroupID(database.DefaultGroupPrefix), h.name)
	if err != nil {
		return err
	}
	s, err := store.Open(path, model)
	if err != nil {
		return err
	}
	defer s.Close()

	c := s.NewContext(store.CallerBound, "snapshot")
	for _, name := range model.EntityNames() {
		objs, err := c.Fetch(context.Background(), queryir.All(name))
		if err != nil {
			return err
		}
		attrs := make([]ir.Object, 0, len(objs))
		for _, o := range objs {
			attrs = append(attrs, o.Attributes())
		}
		h.result.State[name] = attrs
	}
	return nil
}

// whereRequest builds an equality fetch from a YAML where map.
func whereRequest(entity string, where map[string]any) (queryir.FetchRequest, error) {
	values, err := ir.ObjectFromMap(where)
	if err != nil {
		return queryir.FetchRequest{}, fmt.Errorf("where: %w", err)
	}
	preds := make([]queryir.Predicate, 0, len(values))
	for _, k := range values.SortedKeys() {
		preds = append(preds, queryir.Eq(k, values[k]))
	}
	return queryir.Where(entity, preds...), nil
}

func paramsObject(params map[string]string) ir.Object {
	obj := make(ir.Object, len(params))
	for k, v := range params {
		obj[k] = ir.String(v)
	}
	return obj
}

func stringsArray(ss []string) ir.Array {
	arr := make(ir.Array, len(ss))
	for i, s := range ss {
		arr[i] = ir.String(s)
	}
	return arr
}
