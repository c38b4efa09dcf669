package drag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/boardsync/internal/client"
	"github.com/alfredjeanlab/boardsync/internal/idgen"
	"github.com/alfredjeanlab/boardsync/internal/model"
	"github.com/alfredjeanlab/boardsync/internal/notify"
	"github.com/alfredjeanlab/boardsync/internal/store"
	"github.com/alfredjeanlab/boardsync/internal/workflow"
)

// DefaultCommitTimeout bounds the remote call of a drop.
const DefaultCommitTimeout = 10 * time.Second

// TerminalStageText is shown when a Done or Closed task is dropped elsewhere.
const TerminalStageText = "Tasks cannot be moved out of 'Done' or 'Closed' column. Once done, always done!"

// Mutator persists a status change. client.TaskClient satisfies it.
type Mutator interface {
	UpdateTaskStatus(ctx context.Context, id string, status model.Stage) (*model.Task, error)
}

// Config tunes a Coordinator.
type Config struct {
	// CommitTimeout bounds the remote call when the caller's context has no
	// earlier deadline. Default 10s.
	CommitTimeout time.Duration
	// NewID generates transaction ids. Default idgen.Transaction.
	NewID idgen.Func
}

// Coordinator starts drag transactions against one board.
type Coordinator struct {
	store   *store.Store
	mutator Mutator
	notices notify.Sink
	cfg     Config
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]*Transaction
}

// New creates a coordinator. A nil sink discards notices; a nil logger uses
// slog.Default().
func New(st *store.Store, m Mutator, sink notify.Sink, cfg Config, logger *slog.Logger) *Coordinator {
	if sink == nil {
		sink = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = DefaultCommitTimeout
	}
	if cfg.NewID == nil {
		cfg.NewID = idgen.Transaction
	}
	return &Coordinator{
		store:   st,
		mutator: m,
		notices: sink,
		cfg:     cfg,
		logger:  logger,
		active:  make(map[string]*Transaction),
	}
}

// Start begins a gesture on taskID. The original stage is read from the
// store's current value. Start fails with ErrTaskBusy while another gesture
// on the same task is unfinished.
func (c *Coordinator) Start(taskID string) (*Transaction, error) {
	task, ok := c.store.Get(taskID)
	if !ok {
		return nil, fmt.Errorf("starting drag of %s: %w", taskID, store.ErrTaskNotFound)
	}
	id, err := c.cfg.NewID()
	if err != nil {
		return nil, fmt.Errorf("starting drag of %s: %w", taskID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.active[taskID]; busy {
		return nil, fmt.Errorf("starting drag of %s: %w", taskID, ErrTaskBusy)
	}
	tx := &Transaction{
		ID:             id,
		TaskID:         taskID,
		OriginalStatus: task.Status,
		c:              c,
		phase:          PhaseStarted,
		proposed:       task.Status,
	}
	c.active[taskID] = tx
	c.logger.Debug("drag: started", "tx", id, "task", taskID, "status", task.Status)
	return tx, nil
}

// Active reports whether taskID has an unfinished gesture.
func (c *Coordinator) Active(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[taskID]
	return ok
}

// Move runs a complete gesture: start, then drop on the stage column.
func (c *Coordinator) Move(ctx context.Context, taskID string, stage model.Stage) Result {
	tx, err := c.Start(taskID)
	if err != nil {
		return Result{TaskID: taskID, Status: stage, Err: err}
	}
	return tx.Drop(ctx, ColumnTarget(stage))
}

func (c *Coordinator) release(tx *Transaction) {
	c.mu.Lock()
	if c.active[tx.TaskID] == tx {
		delete(c.active, tx.TaskID)
	}
	c.mu.Unlock()
}

// resolve maps a target to a stage. ok is false for NoTarget and for task
// cards the board does not hold.
func (c *Coordinator) resolve(t Target) (model.Stage, bool) {
	switch t.kind {
	case targetColumn:
		return t.stage, true
	case targetTask:
		task, ok := c.store.Get(t.taskID)
		if !ok {
			return "", false
		}
		return task.Status, true
	default:
		return "", false
	}
}

// Over handles hover feedback. It is advisory and may be called any number
// of times. It reports whether the task's displayed stage now reflects the
// target. Hovering is ignored for tasks that started in a terminal stage and
// for targets the workflow rejects.
func (tx *Transaction) Over(target Target) bool {
	if tx.Phase() != PhaseStarted {
		return false
	}
	if tx.OriginalStatus.IsTerminal() {
		return false
	}
	// A card hovering over itself carries no information.
	if target.kind == targetTask && target.taskID == tx.TaskID {
		return false
	}
	candidate, ok := tx.c.resolve(target)
	if !ok {
		return false
	}
	if candidate != tx.OriginalStatus && !workflow.IsValidTransition(tx.OriginalStatus, candidate) {
		return false
	}

	tx.mu.Lock()
	tx.proposed = candidate
	tx.mu.Unlock()

	if current, ok := tx.c.store.Get(tx.TaskID); ok && current.Status == candidate {
		return true
	}
	snap, err := tx.c.store.ApplyOptimistic(tx.TaskID, store.StatusPatch(candidate))
	if err != nil {
		tx.c.logger.Debug("drag: hover not applied", "tx", tx.ID, "task", tx.TaskID, "error", err)
		return false
	}
	tx.keepSnapshot(snap, candidate)
	return true
}

func (tx *Transaction) keepSnapshot(snap store.Snapshot, written model.Stage) {
	tx.mu.Lock()
	if tx.snap.IsZero() {
		tx.snap = snap
	}
	tx.written = written
	tx.mu.Unlock()
}

// restore undoes the optimistic writes made by this gesture. A gesture that
// wrote nothing leaves the task alone, and a status pushed by another session
// after the last write is kept.
func (tx *Transaction) restore() {
	tx.mu.Lock()
	snap, written := tx.snap, tx.written
	tx.mu.Unlock()
	if snap.IsZero() {
		return
	}
	if !tx.c.store.RollbackIfUnchanged(tx.TaskID, snap, written) {
		tx.c.logger.Debug("drag: rollback skipped", "tx", tx.ID, "task", tx.TaskID, "written", written)
	}
}

// Cancel abandons the gesture, undoing its hover writes.
func (tx *Transaction) Cancel() Result {
	if tx.Phase().Finished() {
		return tx.result(tx.Phase(), tx.OriginalStatus, ErrFinished)
	}
	tx.restore()
	tx.setPhase(PhaseRolledBack)
	tx.c.release(tx)
	res := tx.result(PhaseRolledBack, tx.OriginalStatus, nil)
	res.Noop = true
	return res
}

// Drop finishes the gesture on target. It blocks for the remote call when
// the move is legal. The returned Result is always finished.
func (tx *Transaction) Drop(ctx context.Context, target Target) Result {
	if tx.Phase().Finished() {
		return tx.result(tx.Phase(), tx.ProposedStatus(), ErrFinished)
	}
	defer tx.c.release(tx)
	tx.setPhase(PhaseValidating)

	final, ok := tx.c.resolve(target)
	if !ok || (target.kind == targetTask && target.taskID == tx.TaskID) {
		// Dropped outside any column, or back on its own card: keep whatever
		// stage the card is displayed in.
		final = tx.OriginalStatus
		if ok {
			final = tx.ProposedStatus()
		}
	}
	tx.mu.Lock()
	tx.proposed = final
	tx.mu.Unlock()

	log := tx.c.logger.With("tx", tx.ID, "task", tx.TaskID, "from", tx.OriginalStatus, "to", final)

	if final == tx.OriginalStatus {
		tx.restore()
		tx.setPhase(PhaseRolledBack)
		log.Debug("drag: dropped on original stage")
		res := tx.result(PhaseRolledBack, final, nil)
		res.Noop = true
		return res
	}

	if err := workflow.Check(tx.OriginalStatus, final); err != nil {
		tx.restore()
		tx.setPhase(PhaseRolledBack)
		log.Info("drag: rejected by workflow", "error", err)
		tx.c.notices.Notify(notify.Notice{Kind: notify.KindError, Text: rejectionText(err)})
		return tx.result(PhaseRolledBack, final, err)
	}

	return tx.commit(ctx, final, log)
}

func (tx *Transaction) commit(ctx context.Context, final model.Stage, log *slog.Logger) Result {
	c := tx.c
	tx.setPhase(PhaseCommitting)

	snap, err := c.store.ApplyOptimistic(tx.TaskID, store.StatusPatch(final))
	if err != nil {
		// The task vanished between hover and drop; nothing to persist.
		tx.restore()
		tx.setPhase(PhaseRolledBack)
		log.Info("drag: task gone before commit", "error", err)
		return tx.result(PhaseRolledBack, final, err)
	}
	tx.keepSnapshot(snap, final)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CommitTimeout)
	defer cancel()

	updated, err := c.mutator.UpdateTaskStatus(ctx, tx.TaskID, final)
	if err != nil {
		tx.restore()
		tx.setPhase(PhaseRolledBack)
		log.Warn("drag: remote update failed", "error", err)
		remote := &RemoteError{TaskID: tx.TaskID, Status: final, Err: err}
		c.notices.Notify(notify.Notice{
			Kind:      notify.KindError,
			Text:      "Failed to update task: " + remoteMessage(err),
			Retryable: true,
		})
		res := tx.result(PhaseRolledBack, final, remote)
		res.RemoteCalled = true
		return res
	}

	// The response is the authoritative record; subscribers see it before
	// the commit.
	if updated != nil && updated.ID == tx.TaskID {
		if _, err := c.store.Refresh(updated); err != nil {
			log.Debug("drag: ignoring invalid update response", "error", err)
		}
	}
	c.store.Commit(tx.TaskID)
	tx.setPhase(PhaseCommitted)
	log.Info("drag: committed")
	c.notices.Notify(notify.Notice{Kind: notify.KindInfo, Text: "Task moved to " + final.String()})
	res := tx.result(PhaseCommitted, final, nil)
	res.RemoteCalled = true
	return res
}

// rejectionText renders a workflow rejection for the user.
func rejectionText(err error) string {
	if errors.Is(err, workflow.ErrTerminalStage) {
		return TerminalStageText
	}
	var te *workflow.TransitionError
	if !errors.As(err, &te) {
		return err.Error()
	}
	text := fmt.Sprintf("Invalid workflow transition. Current: %s. Attempted: %s. Workflow: %s.",
		te.Current, te.Attempted, workflow.Describe())
	if te.Required != "" {
		text += fmt.Sprintf(" Move to %s first.", te.Required)
	}
	return text
}

// remoteMessage extracts the user-facing part of a mutation failure.
func remoteMessage(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case err.Error() == "":
		return "Unknown error"
	default:
		return err.Error()
	}
}
