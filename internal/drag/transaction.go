// Package drag coordinates drag-and-drop status changes on a board.
//
// A gesture is a Transaction: Start captures the task's current stage,
// Over gives optimistic feedback while hovering, and Drop validates the
// final target against the workflow and resolves through one remote call
// into Committed or RolledBack. Errors never escape a gesture; they come
// back in the Result and as a notice.
package drag

import (
	"errors"
	"fmt"
	"sync"

	"github.com/alfredjeanlab/boardsync/internal/model"
	"github.com/alfredjeanlab/boardsync/internal/store"
)

// Phase is the lifecycle step of a gesture.
type Phase string

const (
	PhaseStarted    Phase = "started"
	PhaseValidating Phase = "validating"
	PhaseCommitting Phase = "committing"
	PhaseCommitted  Phase = "committed"
	PhaseRolledBack Phase = "rolled_back"
)

// Finished reports whether the phase is terminal.
func (p Phase) Finished() bool {
	return p == PhaseCommitted || p == PhaseRolledBack
}

var (
	// ErrTaskBusy is returned by Start while another gesture holds the task.
	ErrTaskBusy = errors.New("task has a drag in progress")
	// ErrFinished is reported when a finished transaction is used again.
	ErrFinished = errors.New("drag transaction already finished")
)

type targetKind int

const (
	targetNone targetKind = iota
	targetColumn
	targetTask
)

// Target is what the pointer is over: a stage column, a sibling task card,
// or nothing.
type Target struct {
	kind   targetKind
	stage  model.Stage
	taskID string
}

// NoTarget is a drop outside every column. It cancels the gesture.
var NoTarget = Target{}

// ColumnTarget is the column for stage.
func ColumnTarget(stage model.Stage) Target {
	return Target{kind: targetColumn, stage: stage}
}

// TaskTarget is the card of another task; it stands for that task's stage.
func TaskTarget(id string) Target {
	return Target{kind: targetTask, taskID: id}
}

func (t Target) String() string {
	switch t.kind {
	case targetColumn:
		return "column:" + string(t.stage)
	case targetTask:
		return "task:" + t.taskID
	default:
		return "none"
	}
}

// Result is the outcome of a finished gesture.
type Result struct {
	TxID     string
	TaskID   string
	Phase    Phase
	Original model.Stage
	// Status is the stage the task was dropped on; equal to Original for
	// cancelled or no-op gestures.
	Status model.Stage
	// Err is workflow.ErrTerminalStage, a *workflow.TransitionError or a
	// *RemoteError when the gesture was rejected.
	Err error
	// RemoteCalled is true when the mutation API was invoked.
	RemoteCalled bool
	// Noop is true when the drop did not change the stage.
	Noop bool
}

// RemoteError wraps a failed status update. The user may repeat the gesture.
type RemoteError struct {
	TaskID string
	Status model.Stage
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("updating task %s to %q: %v", e.TaskID, e.Status, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Retryable is always true; no remote failure is permanent from the
// board's point of view.
func (e *RemoteError) Retryable() bool { return true }

// Transaction is one drag gesture. It is owned by the goroutine handling the
// gesture; Phase may be read from anywhere.
type Transaction struct {
	ID             string
	TaskID         string
	OriginalStatus model.Stage

	c *Coordinator

	mu       sync.Mutex
	phase    Phase
	proposed model.Stage
	snap     store.Snapshot
	written  model.Stage // status of this gesture's last optimistic write
}

// Phase returns the current lifecycle step.
func (tx *Transaction) Phase() Phase {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.phase
}

// ProposedStatus returns the most recent stage the gesture aimed at.
func (tx *Transaction) ProposedStatus() model.Stage {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.proposed
}

func (tx *Transaction) setPhase(p Phase) {
	tx.mu.Lock()
	tx.phase = p
	tx.mu.Unlock()
}

func (tx *Transaction) result(phase Phase, status model.Stage, err error) Result {
	return Result{
		TxID:     tx.ID,
		TaskID:   tx.TaskID,
		Phase:    phase,
		Original: tx.OriginalStatus,
		Status:   status,
		Err:      err,
	}
}
