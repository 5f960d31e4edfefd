package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/queryir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] launch %d %s %s %s\n", event.Seq, event.Launch, event.Action, event.Entity, event.Outcome)
		}
	}

	return buf.String()
}

// assertTraceContains checks if the trace contains an event with the
// assertion's action, and its entity when one is given.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Action == assertion.Action && (assertion.Entity == "" || event.Entity == assertion.Entity) {
			return nil
		}
	}

	expected := "action " + assertion.Action
	if assertion.Entity != "" {
		expected += " on " + assertion.Entity
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed),
// and each expected action is matched after the previous match.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Actions {
		start := pos
		found := false
		for pos < len(trace) {
			pos++
			if trace[pos-1].Action == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual:   fmt.Sprintf("no %s after position %d", want, start),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly the specified
// number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == assertion.Action && (assertion.Entity == "" || event.Entity == assertion.Entity) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks that some object of the entity matching where
// carries the expected attributes (subset semantics).
func assertFinalState(state map[string][]ir.Object, assertion Assertion) error {
	matches, err := matchingObjects(state, assertion)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s where %s", assertion.Entity, formatWhereClause(assertion.Where)),
			Actual:   "object not found",
		}
	}

	expected, err := ir.ObjectFromMap(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state expect: %w", err)
	}
	for _, obj := range matches {
		if matchAttrs(obj, expected) {
			return nil
		}
	}

	actual, _ := ir.MarshalCanonical(matches[0])
	want, _ := ir.MarshalCanonical(expected)
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%s where %s to include %s", assertion.Entity, formatWhereClause(assertion.Where), want),
		Actual:   string(actual),
	}
}

// assertObjectCount checks the number of objects matching where.
func assertObjectCount(state map[string][]ir.Object, assertion Assertion) error {
	matches, err := matchingObjects(state, assertion)
	if err != nil {
		return err
	}
	if len(matches) != assertion.Count {
		return &AssertionError{
			Type:     AssertObjectCount,
			Expected: fmt.Sprintf("%d %s where %s", assertion.Count, assertion.Entity, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d objects", len(matches)),
		}
	}
	return nil
}

func matchingObjects(state map[string][]ir.Object, assertion Assertion) ([]ir.Object, error) {
	req, err := whereRequest(assertion.Entity, assertion.Where)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", assertion.Type, err)
	}

	var out []ir.Object
	for _, obj := range state[assertion.Entity] {
		if queryir.Matches(req.Filter, "", obj) {
			out = append(out, obj)
		}
	}
	return out, nil
}

// matchAttrs checks if actual contains all expected attributes (subset
// match). Extra attributes in actual are ignored.
func matchAttrs(actual, expected ir.Object) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || !ir.Equal(got, want) {
			return false
		}
	}
	return true
}

// formatWhereClause creates a human-readable description of where
// conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		case AssertObjectCount:
			err = assertObjectCount(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
