package store

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alfredjeanlab/boardsync/internal/model"
)

func task(id string, status model.Stage) *model.Task {
	return &model.Task{
		ID:        id,
		Title:     "Task " + id,
		Status:    status,
		Priority:  model.PriorityMedium,
		Labels:    []string{"backend"},
		CreatedAt: model.NewTimestamp(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)),
	}
}

func loaded(t *testing.T, tasks ...*model.Task) *Store {
	t.Helper()
	s := New()
	if err := s.Load(tasks); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s
}

func ids(tasks []*model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestLoad_SkipsInvalidAndDuplicates(t *testing.T) {
	s := New()
	err := s.Load([]*model.Task{
		task("a", model.StageToDo),
		{ID: "bad", Status: "Blocked"},
		task("a", model.StageDone),
		task("b", model.StageTesting),
	})
	if err == nil {
		t.Fatal("expected error for invalid task")
	}
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected *model.ValidationError in %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	got, _ := s.Get("a")
	if got.Status != model.StageToDo {
		t.Errorf("duplicate overwrote first task: status %q", got.Status)
	}
}

func TestTasksByStage_ArrivalOrder(t *testing.T) {
	s := loaded(t,
		task("c", model.StageToDo),
		task("a", model.StageToDo),
		task("x", model.StageDone),
	)
	if _, err := s.Insert(task("b", model.StageToDo)); err != nil {
		t.Fatal(err)
	}

	got := ids(s.TasksByStage(model.StageToDo))
	want := []string{"c", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TasksByStage(ToDo) = %v, want %v", got, want)
	}

	// An update keeps the column position.
	updated := task("c", model.StageToDo)
	updated.Title = "renamed"
	if err := s.Upsert(updated); err != nil {
		t.Fatal(err)
	}
	got = ids(s.TasksByStage(model.StageToDo))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("after upsert TasksByStage(ToDo) = %v, want %v", got, want)
	}
}

func TestTasksByStage_ClosedSeparate(t *testing.T) {
	s := loaded(t, task("a", model.StageDone), task("b", model.StageClosed))
	if got := ids(s.TasksByStage(model.StageDone)); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Done column = %v", got)
	}
	if got := ids(s.TasksByStage(model.StageClosed)); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Closed list = %v", got)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := loaded(t, task("a", model.StageToDo))
	got, _ := s.Get("a")
	got.Status = model.StageDone
	got.Labels[0] = "mutated"

	again, _ := s.Get("a")
	if again.Status != model.StageToDo || again.Labels[0] != "backend" {
		t.Fatalf("store state leaked through Get: %+v", again)
	}
}

func TestApplyOptimistic_RollbackRoundTrip(t *testing.T) {
	s := loaded(t, task("a", model.StageInProgress))
	before, _ := s.Get("a")

	snap, err := s.ApplyOptimistic("a", StatusPatch(model.StageDevComplete))
	if err != nil {
		t.Fatalf("ApplyOptimistic() error = %v", err)
	}
	mid, _ := s.Get("a")
	if mid.Status != model.StageDevComplete {
		t.Fatalf("status after apply = %q", mid.Status)
	}
	if !s.Pending("a") {
		t.Error("expected pending snapshot")
	}

	s.Rollback("a", snap)
	after, _ := s.Get("a")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("rollback did not restore task:\nbefore %+v\nafter  %+v", before, after)
	}
	if s.Pending("a") {
		t.Error("snapshot still pending after rollback")
	}
}

func TestRollback_Idempotent(t *testing.T) {
	s := loaded(t, task("a", model.StageToDo))
	snap, err := s.ApplyOptimistic("a", StatusPatch(model.StageInProgress))
	if err != nil {
		t.Fatal(err)
	}

	s.Rollback("a", snap)
	once, _ := s.Get("a")
	s.Rollback("a", snap)
	twice, _ := s.Get("a")

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second rollback changed state: %+v vs %+v", once, twice)
	}
}

func TestRollbackIfUnchanged(t *testing.T) {
	tests := []struct {
		name     string
		pushed   model.Stage // empty: no concurrent change
		want     model.Stage
		restored bool
	}{
		{"own write still shown", "", model.StageToDo, true},
		{"pushed status kept", model.StageTesting, model.StageTesting, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loaded(t, task("a", model.StageToDo))
			snap, err := s.ApplyOptimistic("a", StatusPatch(model.StageInProgress))
			if err != nil {
				t.Fatal(err)
			}
			if tt.pushed != "" {
				if err := s.Upsert(task("a", tt.pushed)); err != nil {
					t.Fatal(err)
				}
			}

			if got := s.RollbackIfUnchanged("a", snap, model.StageInProgress); got != tt.restored {
				t.Errorf("RollbackIfUnchanged() = %v, want %v", got, tt.restored)
			}
			if got, _ := s.Get("a"); got.Status != tt.want {
				t.Errorf("status = %q, want %q", got.Status, tt.want)
			}
			if s.Pending("a") {
				t.Error("snapshot still pending")
			}
		})
	}

	s := loaded(t, task("a", model.StageToDo))
	if s.RollbackIfUnchanged("a", Snapshot{}, model.StageToDo) {
		t.Error("zero snapshot restored something")
	}
	if s.RollbackIfUnchanged("missing", Snapshot{TaskID: "missing", Task: task("missing", model.StageToDo)}, model.StageToDo) {
		t.Error("missing task restored")
	}
}

func TestRefresh(t *testing.T) {
	s := loaded(t, task("a", model.StageToDo))

	updated := task("a", model.StageInProgress)
	updated.AssigneeName = "Bo"
	ok, err := s.Refresh(updated)
	if err != nil || !ok {
		t.Fatalf("Refresh() = %v, %v", ok, err)
	}
	if got, _ := s.Get("a"); got.AssigneeName != "Bo" || got.Status != model.StageInProgress {
		t.Errorf("task = %+v", got)
	}

	ok, err = s.Refresh(task("gone", model.StageToDo))
	if err != nil || ok {
		t.Errorf("Refresh(missing) = %v, %v; want false, nil", ok, err)
	}
	if _, present := s.Get("gone"); present {
		t.Error("Refresh inserted a missing task")
	}
	if _, err := s.Refresh(&model.Task{ID: "a", Status: "Blocked"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestApplyOptimistic_KeepsFirstSnapshot(t *testing.T) {
	s := loaded(t, task("a", model.StageTesting))

	first, err := s.ApplyOptimistic("a", StatusPatch(model.StageDevComplete))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.ApplyOptimistic("a", StatusPatch(model.StageInProgress))
	if err != nil {
		t.Fatal(err)
	}
	if first.Task.Status != model.StageTesting || second.Task.Status != model.StageTesting {
		t.Fatalf("snapshots = %q, %q; want both Testing", first.Task.Status, second.Task.Status)
	}

	s.Rollback("a", second)
	got, _ := s.Get("a")
	if got.Status != model.StageTesting {
		t.Errorf("status after rollback = %q, want Testing", got.Status)
	}
}

func TestApplyOptimistic_Errors(t *testing.T) {
	s := loaded(t, task("a", model.StageToDo))

	if _, err := s.ApplyOptimistic("missing", StatusPatch(model.StageDone)); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("missing task error = %v, want ErrTaskNotFound", err)
	}
	if _, err := s.ApplyOptimistic("a", StatusPatch("Blocked")); err == nil {
		t.Error("expected error for invalid status")
	}
	if s.Pending("a") {
		t.Error("failed patch left a snapshot behind")
	}
}

func TestCommit_DiscardsSnapshot(t *testing.T) {
	s := loaded(t, task("a", model.StageToDo))
	if _, err := s.ApplyOptimistic("a", StatusPatch(model.StageInProgress)); err != nil {
		t.Fatal(err)
	}
	s.Commit("a")
	if s.Pending("a") {
		t.Error("snapshot pending after commit")
	}
	got, _ := s.Get("a")
	if got.Status != model.StageInProgress {
		t.Errorf("status = %q, want In Progress", got.Status)
	}
	// Second commit is harmless.
	s.Commit("a")
}

func TestRollback_OnlyRestoresStatus(t *testing.T) {
	s := loaded(t, task("a", model.StageToDo))
	snap, err := s.ApplyOptimistic("a", StatusPatch(model.StageInProgress))
	if err != nil {
		t.Fatal(err)
	}

	pushed := task("a", model.StageInProgress)
	pushed.Title = "pushed title"
	if err := s.Upsert(pushed); err != nil {
		t.Fatal(err)
	}

	s.Rollback("a", snap)
	got, _ := s.Get("a")
	if got.Status != model.StageToDo {
		t.Errorf("status = %q, want To Do", got.Status)
	}
	if got.Title != "pushed title" {
		t.Errorf("title = %q, rollback clobbered pushed fields", got.Title)
	}
}

func TestRemove_WithPendingTransaction(t *testing.T) {
	s := loaded(t, task("a", model.StageToDo))
	snap, err := s.ApplyOptimistic("a", StatusPatch(model.StageInProgress))
	if err != nil {
		t.Fatal(err)
	}
	if !s.Remove("a") {
		t.Fatal("Remove() = false, want true")
	}

	s.Commit("a")
	s.Rollback("a", snap)

	if _, ok := s.Get("a"); ok {
		t.Error("task reappeared after commit/rollback on a removed id")
	}
	if s.Remove("a") {
		t.Error("second Remove() = true, want false")
	}
}

func TestInsert_IgnoresDuplicate(t *testing.T) {
	s := loaded(t, task("a", model.StageToDo))
	dup := task("a", model.StageTesting)
	inserted, err := s.Insert(dup)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("Insert() = true for duplicate id")
	}
	got, _ := s.Get("a")
	if got.Status != model.StageToDo {
		t.Errorf("duplicate create overwrote task: %q", got.Status)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestInsert_RejectsInvalid(t *testing.T) {
	s := New()
	if _, err := s.Insert(&model.Task{ID: "a", Status: "Nope"}); err == nil {
		t.Fatal("expected validation error")
	}
	if err := s.Upsert(&model.Task{Status: model.StageToDo}); err == nil {
		t.Fatal("expected validation error for missing id")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestUpsert_LastWriterWins(t *testing.T) {
	s := loaded(t, task("a", model.StageToDo))
	stages := []model.Stage{model.StageTesting, model.StageToDo, model.StageDone, model.StageInProgress}
	var last *model.Task
	for i, st := range stages {
		last = task("a", st)
		last.Title = fmt.Sprintf("rev %d", i)
		if err := s.Upsert(last); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.Get("a")
	if !reflect.DeepEqual(got, last) {
		t.Errorf("final = %+v, want last payload %+v", got, last)
	}
}

func TestSubscribe_ReceivesChanges(t *testing.T) {
	s := loaded(t, task("a", model.StageToDo))
	ch, cancel := s.Subscribe()
	defer cancel()

	snap, _ := s.ApplyOptimistic("a", StatusPatch(model.StageInProgress))
	s.Rollback("a", snap)
	s.Remove("a")

	want := []ChangeKind{ChangeOptimistic, ChangeRolledBack, ChangeRemoved}
	for _, kind := range want {
		select {
		case c := <-ch:
			if c.Kind != kind {
				t.Errorf("change kind = %q, want %q", c.Kind, kind)
			}
			if c.TaskID != "a" {
				t.Errorf("change task = %q, want a", c.TaskID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", kind)
		}
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	// Mutations after cancel must not panic.
	if _, err := s.Insert(task("a", model.StageToDo)); err != nil {
		t.Fatal(err)
	}
}
