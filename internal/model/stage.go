package model

import "strings"

// Stage is one position in the board workflow. The wire value is the column
// display name used by the board API ("To Do", "In Progress", ...).
type Stage string

const (
	StageToDo        Stage = "To Do"
	StageInProgress  Stage = "In Progress"
	StageDevComplete Stage = "Dev Complete"
	StageTesting     Stage = "Testing"
	StageDone        Stage = "Done"

	// StageClosed sits outside the ordered workflow. Tasks only reach it
	// through the approval endpoint, never by drag.
	StageClosed Stage = "Closed"
)

var workflowOrder = []Stage{
	StageToDo,
	StageInProgress,
	StageDevComplete,
	StageTesting,
	StageDone,
}

// Stages returns the ordered workflow stages. The returned slice is a copy.
func Stages() []Stage {
	out := make([]Stage, len(workflowOrder))
	copy(out, workflowOrder)
	return out
}

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// Index returns the position of s in the workflow order, or -1 for Closed
// and unknown values.
func (s Stage) Index() int {
	for i, st := range workflowOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// IsValid reports whether s belongs to the declared stage set, including
// the Closed sink.
func (s Stage) IsValid() bool {
	return s == StageClosed || s.Index() >= 0
}

// IsTerminal reports whether no drag-driven transition may leave s.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageClosed
}

// ParseStage resolves a user-supplied stage name. It accepts the display
// form case-insensitively ("in progress") and the snake form ("in_progress").
func ParseStage(name string) (Stage, bool) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.ReplaceAll(norm, "_", " ")
	norm = strings.ReplaceAll(norm, "-", " ")
	if norm == "todo" {
		norm = "to do"
	}
	for _, st := range append(Stages(), StageClosed) {
		if strings.ToLower(string(st)) == norm {
			return st, true
		}
	}
	return "", false
}
