// Package execute sequences the per-PR git operations of a release run and
// classifies their outcomes.
package execute

import (
	"fmt"
	"time"

	"github.com/cmtonkinson/releasepilot/internal/conflict"
)

// State labels the lifecycle state of one PR within a run.
type State string

const (
	// StatePending indicates the PR has not been operated on yet.
	StatePending State = "PENDING"
	// StateAppliedClean indicates the operation applied without conflict.
	StateAppliedClean State = "APPLIED_CLEAN"
	// StateAppliedNoop indicates the change was already present in the
	// target line. A no-op is a success, not a failure.
	StateAppliedNoop State = "APPLIED_NOOP"
	// StateInConflict indicates the operation stopped on merge conflicts.
	StateInConflict State = "IN_CONFLICT"
	// StateAppliedResolved indicates conflicts were resolved and the
	// operation completed.
	StateAppliedResolved State = "APPLIED_RESOLVED"
	// StateSkipped indicates the PR was abandoned under the skip policy.
	StateSkipped State = "SKIPPED"
	// StateFailedManual indicates the PR needs operator intervention.
	StateFailedManual State = "FAILED_MANUAL"
)

// allowedTransitions defines the permitted state changes. Transitions are
// monotonic: terminal states have no successors.
var allowedTransitions = map[State]map[State]struct{}{
	StatePending: {
		StateAppliedClean: {},
		StateAppliedNoop:  {},
		StateInConflict:   {},
	},
	StateInConflict: {
		StateAppliedResolved: {},
		StateSkipped:         {},
		StateFailedManual:    {},
	},
	StateAppliedClean:    {},
	StateAppliedNoop:     {},
	StateAppliedResolved: {},
	StateSkipped:         {},
	StateFailedManual:    {},
}

// IsValidTransition reports whether the lifecycle allows the requested change.
func IsValidTransition(from State, to State) bool {
	if from == "" || to == "" {
		return false
	}
	allowed, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// ValidateTransition returns an error when a lifecycle change is not allowed.
func ValidateTransition(from State, to State) error {
	if !IsValidTransition(from, to) {
		return fmt.Errorf("invalid execution state transition from %q to %q", from, to)
	}
	return nil
}

// Terminal reports whether no further operation may be attempted on a PR in
// this state.
func (s State) Terminal() bool {
	switch s {
	case StateAppliedClean, StateAppliedNoop, StateAppliedResolved, StateSkipped, StateFailedManual:
		return true
	}
	return false
}

// Applied reports whether the PR's change landed in the release line.
func (s State) Applied() bool {
	switch s {
	case StateAppliedClean, StateAppliedNoop, StateAppliedResolved:
		return true
	}
	return false
}

// Record is the append-only audit entry for one PR's progress through the
// run.
type Record struct {
	PR        int                `json:"pr"`
	Operation string             `json:"operation"`
	State     State              `json:"state"`
	Commit    string             `json:"commit,omitempty"`
	Detail    string             `json:"detail,omitempty"`
	Hunks     []conflict.Summary `json:"hunks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}
