// Package workflow encodes the ordered-stage rules that govern drag-driven
// status changes on a board. Everything here is pure: no I/O, no state.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/boardsync/internal/model"
)

// ErrTerminalStage is returned when a task sits in Done or Closed. Such tasks
// cannot be moved by drag at all.
var ErrTerminalStage = errors.New("tasks cannot be moved out of 'Done' or 'Closed' column")

// TransitionError describes a rejected move between two workflow stages.
type TransitionError struct {
	Current   model.Stage
	Attempted model.Stage
	// Required is the stage the task must reach before Attempted, or empty
	// when Attempted is the first stage or unknown.
	Required model.Stage
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("invalid workflow transition from %q to %q", e.Current, e.Attempted)
	if e.Required != "" {
		msg += fmt.Sprintf(": move to %q first", e.Required)
	}
	return msg
}

// IsValidTransition reports whether a task may be dragged from one stage to
// another. Backward moves of any distance are allowed; forward moves must be
// exactly one step. Tasks in a terminal stage never move.
func IsValidTransition(from, to model.Stage) bool {
	if from.IsTerminal() {
		return false
	}
	fromIdx, toIdx := from.Index(), to.Index()
	if fromIdx < 0 || toIdx < 0 {
		return false
	}
	if toIdx < fromIdx {
		return true
	}
	return toIdx == fromIdx+1
}

// RequiredPredecessor returns the stage immediately before to in the
// workflow order. ok is false when to is the first stage or not part of
// the order.
func RequiredPredecessor(to model.Stage) (stage model.Stage, ok bool) {
	idx := to.Index()
	if idx <= 0 {
		return "", false
	}
	return model.Stages()[idx-1], true
}

// Check validates a move and explains a rejection. It returns nil for a
// legal move, ErrTerminalStage when from is terminal, and a
// *TransitionError otherwise. Moving to the same stage is not a transition
// and is reported as legal.
func Check(from, to model.Stage) error {
	if from.IsTerminal() {
		return ErrTerminalStage
	}
	if from == to || IsValidTransition(from, to) {
		return nil
	}
	required, _ := RequiredPredecessor(to)
	return &TransitionError{Current: from, Attempted: to, Required: required}
}

// Describe renders the workflow order for user-facing messages.
func Describe() string {
	stages := model.Stages()
	parts := make([]string, len(stages))
	for i, st := range stages {
		parts[i] = st.String()
	}
	return strings.Join(parts, " → ")
}
