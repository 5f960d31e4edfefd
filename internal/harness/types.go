package harness

import "github.com/roach88/sharedstore/internal/ir"

// Trace actions recorded by the harness.
const (
	ActionLaunch   = "launch"
	ActionReady    = "ready"
	ActionFailed   = "failed"
	ActionPixel    = "pixel"
	ActionClose    = "close"
	ActionInsert   = "insert"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionPurge    = "purge"
	ActionSave     = "save"
	ActionRollback = "rollback"
)

// TraceEvent is one observable step of a scenario run.
type TraceEvent struct {
	Seq     int64     `json:"seq"`
	Launch  int       `json:"launch"`
	Action  string    `json:"action"`
	Entity  string    `json:"entity,omitempty"`
	Args    ir.Object `json:"args,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every launch, step and lifecycle event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the attributes of every object after the last launch,
	// per entity, in fetch order. Empty when the last launch failed.
	State map[string][]ir.Object `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string][]ir.Object),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// record appends an event with the next sequence number.
func (r *Result) record(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
