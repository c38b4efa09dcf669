// Package board opens a live board: it loads the tasks, keeps the push
// channel connected, merges inbound events and runs drag gestures against
// the same store.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/boardsync/internal/client"
	"github.com/alfredjeanlab/boardsync/internal/conn"
	"github.com/alfredjeanlab/boardsync/internal/drag"
	"github.com/alfredjeanlab/boardsync/internal/idgen"
	"github.com/alfredjeanlab/boardsync/internal/model"
	"github.com/alfredjeanlab/boardsync/internal/presence"
	"github.com/alfredjeanlab/boardsync/internal/reconcile"
	"github.com/alfredjeanlab/boardsync/internal/store"
)

// ErrNotApprovable is returned by Approve for tasks that are not Done.
var ErrNotApprovable = errors.New("only Done tasks can be approved")

// Session is one open board.
type Session struct {
	id      string
	boardID string
	opts    Options
	logger  *slog.Logger

	store      *store.Store
	manager    *conn.Manager
	reconciler *reconcile.Reconciler
	coord      *drag.Coordinator
	presence   *presence.Tracker
	ownsRoster bool

	closeOnce sync.Once
	done      chan struct{}
}

// Open loads boardID through the task API and connects its push channel.
// The returned session is live until Close. Tasks the API returns in an
// invalid shape are skipped and logged.
func Open(ctx context.Context, boardID string, opts Options) (*Session, error) {
	if boardID == "" {
		return nil, errors.New("board: board id is required")
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id, err := idgen.Session()
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	logger = logger.With("board", boardID, "session", id)

	tasks, err := opts.Client.ListProjectTasks(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("board: loading %s: %w", boardID, err)
	}
	st := store.New()
	if err := st.Load(tasks); err != nil {
		logger.Warn("board: skipped invalid tasks on load", "error", err)
	}

	s := &Session{
		id:       id,
		boardID:  boardID,
		opts:     opts,
		logger:   logger,
		store:    st,
		presence: opts.Presence,
		done:     make(chan struct{}),
	}
	if s.presence == nil {
		s.presence = presence.New()
		s.presence.StartReaper(nil)
		s.ownsRoster = true
	}

	rOpts := []reconcile.Option{reconcile.WithBoard(boardID), reconcile.WithPresence(s.presence), reconcile.WithLogger(logger)}
	if opts.Identity != nil {
		rOpts = append(rOpts, reconcile.WithIdentity(opts.Identity))
	}
	s.reconciler = reconcile.New(st, opts.Notices, rOpts...)
	s.coord = drag.New(st, opts.Client, opts.Notices, opts.Drag, logger)

	cc := opts.Conn
	if cc == (conn.Config{}) {
		cc = conn.DefaultConfig()
	}
	s.manager = conn.NewManager(opts.Dialer, cc, logger)
	events, err := s.manager.Connect(boardID, opts.Credential)
	if err != nil {
		_ = s.manager.Close()
		s.stopRoster()
		return nil, fmt.Errorf("board: connecting %s: %w", boardID, err)
	}
	go s.consume(events)

	logger.Info("board: opened", "tasks", st.Len())
	return s, nil
}

// consume drains the connection's event stream until the manager closes it.
func (s *Session) consume(events <-chan conn.Event) {
	defer close(s.done)
	for ev := range events {
		switch e := ev.(type) {
		case conn.InboundMessage:
			// Malformed and foreign frames are logged by the reconciler and dropped.
			_ = s.reconciler.Handle(e.Payload)
		case conn.StatusChanged:
			s.logger.Info("board: connection status", "status", e.Status, "retry", e.RetryCount)
		case conn.Closed:
			s.logger.Debug("board: channel closed", "code", e.Code, "reason", e.Reason, "clean", e.Clean)
		case conn.TransportError:
			s.logger.Debug("board: transport error", "error", e.Err)
		case conn.Opened:
			s.logger.Debug("board: channel opened")
		}
		if s.opts.OnEvent != nil {
			s.opts.OnEvent(ev)
		}
	}
}

// BoardID returns the id the session was opened with.
func (s *Session) BoardID() string { return s.boardID }

// ID identifies this session in logs. It is not sent to the board service.
func (s *Session) ID() string { return s.id }

// Store returns the board's task store. Subscribe to it for changes.
func (s *Session) Store() *store.Store { return s.store }

// Presence returns the board's presence tracker.
func (s *Session) Presence() *presence.Tracker { return s.presence }

// Connection returns the push channel's status and retry count.
func (s *Session) Connection() conn.State { return s.manager.State() }

// Stats returns the reconciler's frame counters.
func (s *Session) Stats() reconcile.Stats { return s.reconciler.Stats() }

// Reconnect asks for a fresh connection, e.g. after the status went Failed.
func (s *Session) Reconnect() error {
	_, err := s.manager.Connect(s.boardID, s.opts.Credential)
	return err
}

// Drag begins a gesture on taskID.
func (s *Session) Drag(taskID string) (*drag.Transaction, error) {
	return s.coord.Start(taskID)
}

// Move runs a complete gesture that drops taskID on the column for stage.
func (s *Session) Move(ctx context.Context, taskID string, stage model.Stage) drag.Result {
	return s.coord.Move(ctx, taskID, stage)
}

// Approve closes a Done task through the approval endpoint, the only path
// into Closed.
func (s *Session) Approve(ctx context.Context, taskID string) (*model.Task, error) {
	task, ok := s.store.Get(taskID)
	if !ok {
		return nil, fmt.Errorf("approving %s: %w", taskID, store.ErrTaskNotFound)
	}
	if task.Status != model.StageDone {
		return nil, fmt.Errorf("approving %s (%s): %w", taskID, task.Status, ErrNotApprovable)
	}
	approved, err := s.opts.Client.ApproveTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("approving %s: %w", taskID, err)
	}
	if approved == nil {
		approved = task
		approved.Status = model.StageClosed
	}
	if err := s.store.Upsert(approved); err != nil {
		return nil, fmt.Errorf("approving %s: %w", taskID, err)
	}
	return approved, nil
}

// Close disconnects the push channel and releases the session. It waits for
// the event consumer to finish.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.manager.Close()
		<-s.done
		s.stopRoster()
		if cerr := s.opts.Client.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.logger.Info("board: closed")
	})
	return err
}

func (s *Session) stopRoster() {
	if s.ownsRoster {
		s.presence.Stop()
	}
}

var _ drag.Mutator = client.TaskClient(nil)
