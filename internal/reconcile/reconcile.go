// Package reconcile merges push-channel events into the board store.
//
// Updates are last-writer-wins by arrival order: a pushed task replaces the
// whole local record even while a drag holds an optimistic snapshot for it.
// The drag's later commit or rollback only touches the status, so the
// worst case is a brief flicker.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/alfredjeanlab/boardsync/internal/events"
	"github.com/alfredjeanlab/boardsync/internal/model"
	"github.com/alfredjeanlab/boardsync/internal/notify"
	"github.com/alfredjeanlab/boardsync/internal/presence"
	"github.com/alfredjeanlab/boardsync/internal/store"
)

// Identity names the local user so the reconciler can recognize echoes of
// its own changes.
type Identity interface {
	ActorID() string
}

// Stats counts handled frames by outcome.
type Stats struct {
	Applied   int64 `json:"applied"`
	Ignored   int64 `json:"ignored"`
	Malformed int64 `json:"malformed"`
	Unknown   int64 `json:"unknown"`
}

// Reconciler applies inbound events to one board. It is safe for
// concurrent use, though a session feeds it from a single goroutine.
type Reconciler struct {
	store    *store.Store
	notices  notify.Sink
	presence *presence.Tracker
	self     Identity
	board    string
	logger   *slog.Logger

	applied, ignored, malformed, unknown atomic.Int64
}

// ErrBoardMismatch is returned for a task event that belongs to another
// board. Such events are counted as ignored.
var ErrBoardMismatch = errors.New("event belongs to another board")

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithBoard drops task events whose task names a different project.
// Tasks without a project id are accepted.
func WithBoard(boardID string) Option {
	return func(r *Reconciler) { r.board = boardID }
}

// WithPresence records actor activity in t.
func WithPresence(t *presence.Tracker) Option {
	return func(r *Reconciler) { r.presence = t }
}

// WithIdentity suppresses move notices for changes made by self.
func WithIdentity(self Identity) Option {
	return func(r *Reconciler) { r.self = self }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// New creates a reconciler writing into st. A nil sink discards notices.
func New(st *store.Store, sink notify.Sink, opts ...Option) *Reconciler {
	if sink == nil {
		sink = notify.Discard
	}
	r := &Reconciler{store: st, notices: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Stats returns a snapshot of the frame counters.
func (r *Reconciler) Stats() Stats {
	return Stats{
		Applied:   r.applied.Load(),
		Ignored:   r.ignored.Load(),
		Malformed: r.malformed.Load(),
		Unknown:   r.unknown.Load(),
	}
}

// Handle decodes and applies a raw frame. Malformed frames are logged,
// counted and returned as *events.MalformedError; they never touch the
// store.
func (r *Reconciler) Handle(payload []byte) error {
	msg, err := events.Decode(payload)
	if err != nil {
		r.malformed.Add(1)
		r.logger.Warn("reconcile: dropping malformed event", "error", err, "bytes", len(payload))
		return err
	}
	return r.HandleMessage(msg)
}

// HandleMessage applies a decoded message.
func (r *Reconciler) HandleMessage(msg events.Message) error {
	switch m := msg.(type) {
	case events.TaskCreated:
		return r.created(m)
	case events.TaskUpdated:
		return r.updated(m)
	case events.TaskDeleted:
		r.deleted(m)
		return nil
	case events.Connection:
		r.ignored.Add(1)
		r.logger.Info("reconcile: channel acknowledged", "project", m.ProjectID, "user", m.UserID)
		return nil
	case events.Ping, events.Pong:
		r.ignored.Add(1)
		return nil
	case events.UserJoined:
		r.ignored.Add(1)
		r.record(m.Actor, presence.ActivityJoined, "")
		return nil
	case events.UserLeft:
		r.ignored.Add(1)
		r.record(m.Actor, presence.ActivityLeft, "")
		return nil
	case nil:
		r.malformed.Add(1)
		return &events.MalformedError{Reason: "nil message"}
	default:
		r.unknown.Add(1)
		r.logger.Debug("reconcile: ignoring unknown event", "type", msg.MessageType())
		return nil
	}
}

func (r *Reconciler) foreign(t *model.Task) bool {
	if r.board == "" || t.ProjectID == "" || t.ProjectID == r.board {
		return false
	}
	r.ignored.Add(1)
	r.logger.Debug("reconcile: event for another board", "task", t.ID, "project", t.ProjectID, "board", r.board)
	return true
}

func (r *Reconciler) created(m events.TaskCreated) error {
	if r.foreign(m.Task) {
		return ErrBoardMismatch
	}
	added, err := r.store.Insert(m.Task)
	if err != nil {
		r.malformed.Add(1)
		return r.reject(events.TypeTaskCreated, err)
	}
	r.record(m.Actor, presence.ActivityCreated, m.Task.ID)
	if !added {
		r.ignored.Add(1)
		r.logger.Debug("reconcile: duplicate create", "task", m.Task.ID)
		return nil
	}
	r.applied.Add(1)
	r.logger.Debug("reconcile: task created", "task", m.Task.ID, "actor", m.Actor.Name)
	if m.Actor.Name != "" {
		r.notify(m.Actor.Name, fmt.Sprintf("%s created a new task: %s", m.Actor.Name, m.Task.DisplayName("New task")))
	}
	return nil
}

func (r *Reconciler) updated(m events.TaskUpdated) error {
	if r.foreign(m.Task) {
		return ErrBoardMismatch
	}
	pending := r.store.Pending(m.Task.ID)
	if err := r.store.Upsert(m.Task); err != nil {
		r.malformed.Add(1)
		return r.reject(events.TypeTaskUpdated, err)
	}
	r.applied.Add(1)
	r.record(m.Actor, presence.ActivityUpdated, m.Task.ID)
	r.logger.Debug("reconcile: task updated", "task", m.Task.ID, "status", m.Task.Status,
		"fields", m.UpdatedFields, "over_optimistic", pending)

	if !m.Changed("status") || m.Actor.Name == "" || m.Actor.ID == "" || r.isSelf(m.Actor.ID) {
		return nil
	}
	r.notify(m.Actor.Name, fmt.Sprintf("%s moved %q to %s", m.Actor.Name, m.Task.DisplayName("a task"), m.Task.Status))
	return nil
}

func (r *Reconciler) deleted(m events.TaskDeleted) {
	r.record(m.Actor, presence.ActivityDeleted, m.TaskID)
	if !r.store.Remove(m.TaskID) {
		r.ignored.Add(1)
		r.logger.Debug("reconcile: delete for unknown task", "task", m.TaskID)
		return
	}
	r.applied.Add(1)
	r.logger.Debug("reconcile: task deleted", "task", m.TaskID)
	if m.Actor.Name != "" {
		r.notify(m.Actor.Name, m.Actor.Name+" deleted a task")
	}
}

func (r *Reconciler) reject(typ events.Type, err error) error {
	var mErr *events.MalformedError
	if !errors.As(err, &mErr) {
		mErr = &events.MalformedError{Type: typ, Reason: "rejected by store", Err: err}
	}
	r.logger.Warn("reconcile: dropping malformed event", "error", mErr)
	return mErr
}

func (r *Reconciler) isSelf(actorID string) bool {
	return r.self != nil && r.self.ActorID() != "" && r.self.ActorID() == actorID
}

func (r *Reconciler) record(a events.Actor, kind presence.ActivityKind, taskID string) {
	if r.presence == nil || a.ID == "" {
		return
	}
	r.presence.Record(presence.Activity{UserID: a.ID, Name: a.Name, Kind: kind, TaskID: taskID})
}

func (r *Reconciler) notify(actor, text string) {
	r.notices.Notify(notify.Notice{Kind: notify.KindInfo, Text: text, Actor: actor})
}
