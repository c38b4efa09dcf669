// Package store holds the authoritative in-memory state of one board.
//
// The Store is the only shared mutable resource in a board session. The drag
// coordinator and the event reconciler touch it exclusively through the
// atomic operations below; callers only ever receive copies of tasks.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/alfredjeanlab/boardsync/internal/model"
)

// ErrTaskNotFound is returned when an operation names a task the board does
// not hold.
var ErrTaskNotFound = errors.New("task not found")

// subscriberBuffer is the channel depth for each change subscriber.
const subscriberBuffer = 64

// Patch lists the task fields an optimistic write may change. Nil fields are
// left alone.
type Patch struct {
	Status *model.Stage
}

// StatusPatch returns a Patch that only moves the task to stage.
func StatusPatch(stage model.Stage) Patch {
	return Patch{Status: &stage}
}

// Snapshot is the pre-mutation copy of a task captured by ApplyOptimistic.
// The zero Snapshot restores nothing.
type Snapshot struct {
	TaskID string
	Task   *model.Task
}

// IsZero reports whether the snapshot carries no task.
func (s Snapshot) IsZero() bool {
	return s.Task == nil
}

// ChangeKind classifies a store mutation.
type ChangeKind string

const (
	ChangeLoaded     ChangeKind = "loaded"
	ChangeCreated    ChangeKind = "created"
	ChangeUpdated    ChangeKind = "updated"
	ChangeRemoved    ChangeKind = "removed"
	ChangeOptimistic ChangeKind = "optimistic"
	ChangeCommitted  ChangeKind = "committed"
	ChangeRolledBack ChangeKind = "rolled_back"
)

// Change is delivered to subscribers after every mutation. Task is a copy of
// the task after the mutation, nil for removals and loads.
type Change struct {
	Kind   ChangeKind
	TaskID string
	Task   *model.Task
}

type entry struct {
	task *model.Task
	seq  uint64 // arrival order, used for column ordering
}

type subscriber struct {
	ch chan Change
}

// Store is the in-memory board. The zero value is not usable; call New.
type Store struct {
	mu      sync.Mutex
	tasks   map[string]*entry
	pending map[string]Snapshot
	nextSeq uint64
	subs    map[*subscriber]struct{}
}

// New creates an empty board store.
func New() *Store {
	return &Store{
		tasks:   make(map[string]*entry),
		pending: make(map[string]Snapshot),
		subs:    make(map[*subscriber]struct{}),
	}
}

// Load replaces the board contents with tasks, in the given arrival order.
// Invalid tasks are skipped and reported in the returned error; valid tasks
// are loaded regardless.
func (s *Store) Load(tasks []*model.Task) error {
	var errs []error

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]*entry, len(tasks))
	s.pending = make(map[string]Snapshot)
	for _, t := range tasks {
		if err := model.ValidateTask(t); err != nil {
			errs = append(errs, fmt.Errorf("loading task: %w", err))
			continue
		}
		if _, dup := s.tasks[t.ID]; dup {
			continue
		}
		s.tasks[t.ID] = &entry{task: t.Clone(), seq: s.seq()}
	}
	s.publish(Change{Kind: ChangeLoaded})
	return errors.Join(errs...)
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (*model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return e.task.Clone(), true
}

// Len returns the number of tasks on the board.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// All returns copies of every task in arrival order.
func (s *Store) All() []*model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(*model.Task) bool { return true })
}

// TasksByStage returns copies of the tasks in stage, in arrival order.
func (s *Store) TasksByStage(stage model.Stage) []*model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(t *model.Task) bool { return t.Status == stage })
}

// Pending reports whether an optimistic snapshot is outstanding for id.
func (s *Store) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// ApplyOptimistic mutates the task in place and returns the snapshot needed
// to undo it. While a snapshot is already outstanding for id, that original
// snapshot is kept and returned, so repeated hover updates within one
// gesture always roll back to the pre-gesture state.
func (s *Store) ApplyOptimistic(id string, p Patch) (Snapshot, error) {
	if p.Status != nil && !p.Status.IsValid() {
		return Snapshot{}, fmt.Errorf("optimistic patch: invalid status %q", *p.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("optimistic patch %s: %w", id, ErrTaskNotFound)
	}
	snap, held := s.pending[id]
	if !held {
		snap = Snapshot{TaskID: id, Task: e.task.Clone()}
		s.pending[id] = snap
	}
	if p.Status != nil {
		e.task.Status = *p.Status
	}
	s.publish(Change{Kind: ChangeOptimistic, TaskID: id, Task: e.task.Clone()})
	return Snapshot{TaskID: id, Task: snap.Task.Clone()}, nil
}

// Commit finalizes the optimistic write for id by discarding its snapshot.
// Committing a task with no snapshot, or one that has since been removed,
// is a no-op.
func (s *Store) Commit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.pending[id]; !held {
		return
	}
	delete(s.pending, id)
	if e, ok := s.tasks[id]; ok {
		s.publish(Change{Kind: ChangeCommitted, TaskID: id, Task: e.task.Clone()})
	}
}

// Rollback restores the status captured in snap and discards any
// outstanding snapshot for the task. Only the status is restored, so fields
// pushed by other sessions in the meantime survive. Rollback is idempotent
// and a no-op when the task is gone.
func (s *Store) Rollback(id string, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, id)
	if snap.IsZero() {
		return
	}
	e, ok := s.tasks[id]
	if !ok {
		return
	}
	if e.task.Status == snap.Task.Status {
		return
	}
	e.task.Status = snap.Task.Status
	s.publish(Change{Kind: ChangeRolledBack, TaskID: id, Task: e.task.Clone()})
}

// RollbackIfUnchanged restores snap only while the task still shows
// written, the status of the caller's last optimistic write. When another
// session changed the status since, the snapshot is discarded and the pushed
// value stays. It reports whether the status was restored.
func (s *Store) RollbackIfUnchanged(id string, snap Snapshot, written model.Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, id)
	if snap.IsZero() {
		return false
	}
	e, ok := s.tasks[id]
	if !ok || e.task.Status != written || e.task.Status == snap.Task.Status {
		return false
	}
	e.task.Status = snap.Task.Status
	s.publish(Change{Kind: ChangeRolledBack, TaskID: id, Task: e.task.Clone()})
	return true
}

// Insert adds a task that the board has not seen. It reports false without
// touching the board when the id is already present.
func (s *Store) Insert(t *model.Task) (bool, error) {
	if err := model.ValidateTask(t); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.tasks[t.ID]; dup {
		return false, nil
	}
	s.tasks[t.ID] = &entry{task: t.Clone(), seq: s.seq()}
	s.publish(Change{Kind: ChangeCreated, TaskID: t.ID, Task: t.Clone()})
	return true, nil
}

// Upsert replaces the whole record for t.ID, or adds it when missing. The
// task keeps its column position when it already existed.
func (s *Store) Upsert(t *model.Task) error {
	if err := model.ValidateTask(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.tasks[t.ID]; ok {
		e.task = t.Clone()
		s.publish(Change{Kind: ChangeUpdated, TaskID: t.ID, Task: t.Clone()})
		return nil
	}
	s.tasks[t.ID] = &entry{task: t.Clone(), seq: s.seq()}
	s.publish(Change{Kind: ChangeCreated, TaskID: t.ID, Task: t.Clone()})
	return nil
}

// Refresh replaces the record for t.ID when the board still holds it. A task
// removed in the meantime stays removed and Refresh reports false.
func (s *Store) Refresh(t *model.Task) (bool, error) {
	if err := model.ValidateTask(t); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[t.ID]
	if !ok {
		return false, nil
	}
	e.task = t.Clone()
	s.publish(Change{Kind: ChangeUpdated, TaskID: t.ID, Task: t.Clone()})
	return true, nil
}

// Remove deletes a task and any snapshot held for it. It reports whether the
// task was present.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, id)
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	s.publish(Change{Kind: ChangeRemoved, TaskID: id})
	return true
}

// Subscribe returns a channel of changes. Delivery is best effort: a
// subscriber that falls more than subscriberBuffer changes behind misses
// changes rather than blocking the board. Call cancel to unsubscribe and
// close the channel.
func (s *Store) Subscribe() (<-chan Change, func()) {
	sub := &subscriber{ch: make(chan Change, subscriberBuffer)}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub)
			close(sub.ch)
			s.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// seq hands out the next arrival number. Caller must hold s.mu.
func (s *Store) seq() uint64 {
	s.nextSeq++
	return s.nextSeq
}

// collect returns sorted copies of matching tasks. Caller must hold s.mu.
func (s *Store) collect(match func(*model.Task) bool) []*model.Task {
	entries := make([]*entry, 0, len(s.tasks))
	for _, e := range s.tasks {
		if match(e.task) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]*model.Task, len(entries))
	for i, e := range entries {
		out[i] = e.task.Clone()
	}
	return out
}

// publish fans a change out to subscribers without blocking. Caller must
// hold s.mu.
func (s *Store) publish(c Change) {
	for sub := range s.subs {
		select {
		case sub.ch <- c:
		default:
		}
	}
}
