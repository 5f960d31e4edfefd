package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a store lifecycle test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the CUE source of the entity model.
	Schema string `yaml:"schema"`

	// Store names the store file. Defaults to database.DefaultName.
	Store string `yaml:"store,omitempty"`

	// Launches run in order against the same group container.
	Launches []Launch `yaml:"launches"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Launch simulates one process start.
type Launch struct {
	// Schema overrides the scenario schema for this launch, to exercise
	// model changes between releases.
	Schema string `yaml:"schema,omitempty"`

	// Corrupt overwrites the store file with garbage before loading.
	Corrupt bool `yaml:"corrupt,omitempty"`

	// Migrate runs on the migration context on every load.
	Migrate []Step `yaml:"migrate,omitempty"`

	// Seed runs on the migration context only when the store file did not
	// exist before the load.
	Seed []Step `yaml:"seed,omitempty"`

	// Steps run on a caller-bound context once the store is ready.
	Steps []Step `yaml:"steps,omitempty"`

	// Expect checks how the load ended. Defaults to state "ready".
	Expect *LaunchExpect `yaml:"expect,omitempty"`
}

// LaunchExpect specifies the expected load outcome.
type LaunchExpect struct {
	// State is "ready" or "failed".
	State string `yaml:"state"`

	// FirstLaunch, when set, checks whether the file was new.
	FirstLaunch *bool `yaml:"first_launch,omitempty"`
}

// Step is one operation on a store context.
type Step struct {
	// Op is one of insert, update, delete, purge, save, rollback.
	Op string `yaml:"op"`

	// Entity is the target entity (insert, update, delete).
	Entity string `yaml:"entity,omitempty"`

	// Entities lists the entities to purge.
	Entities []string `yaml:"entities,omitempty"`

	// Where selects objects by attribute equality (update, delete).
	// "id" is not usable here since identifiers are random.
	Where map[string]any `yaml:"where,omitempty"`

	// Attributes are inserted or merged.
	Attributes map[string]any `yaml:"attributes,omitempty"`

	// ExpectError marks a step that must be rejected.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check action appears in trace (optionally for entity)
	// - "trace_order": Check actions appear in order
	// - "trace_count": Check action appears exactly N times
	// - "final_state": Check an object's attributes
	// - "object_count": Check the number of matching objects
	Type string `yaml:"type"`

	// Action is the trace action (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Entity scopes trace and state assertions.
	Entity string `yaml:"entity,omitempty"`

	// Where selects objects by attribute equality (final_state,
	// object_count).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected attribute values (final_state).
	// Subset match - only specified attributes are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number (trace_count, object_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertObjectCount   = "object_count"
)

// Launch outcome states.
const (
	StateReady  = "ready"
	StateFailed = "failed"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario is LoadScenario for YAML already in memory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if len(s.Launches) == 0 {
		return fmt.Errorf("launches list is required and must be non-empty")
	}

	for i, l := range s.Launches {
		if l.Expect != nil {
			switch l.Expect.State {
			case StateReady, StateFailed:
			default:
				return fmt.Errorf("launches[%d].expect: state must be %q or %q", i, StateReady, StateFailed)
			}
		}
		for _, group := range []struct {
			name  string
			steps []Step
		}{{"migrate", l.Migrate}, {"seed", l.Seed}, {"steps", l.Steps}} {
			for j, step := range group.steps {
				if err := validateStep(step); err != nil {
					return fmt.Errorf("launches[%d].%s[%d]: %w", i, group.name, j, err)
				}
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case ActionInsert, ActionUpdate, ActionDelete:
		if step.Entity == "" {
			return fmt.Errorf("entity is required for %s", step.Op)
		}
	case ActionPurge:
		if len(step.Entities) == 0 {
			return fmt.Errorf("entities list is required for purge")
		}
	case ActionSave, ActionRollback:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertObjectCount:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for object_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for object_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
