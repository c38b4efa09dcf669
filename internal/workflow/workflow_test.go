package workflow

import (
	"errors"
	"testing"

	"github.com/alfredjeanlab/boardsync/internal/model"
)

func allStages() []model.Stage {
	return append(model.Stages(), model.StageClosed)
}

// expected restates the transition rule independently of the implementation.
func expected(from, to model.Stage) bool {
	if from == model.StageDone || from == model.StageClosed || to == model.StageClosed {
		return false
	}
	fi, ti := from.Index(), to.Index()
	return ti == fi+1 || ti < fi
}

func TestIsValidTransition_CrossProduct(t *testing.T) {
	for _, from := range allStages() {
		for _, to := range allStages() {
			if got, want := IsValidTransition(from, to), expected(from, to); got != want {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestIsValidTransition_Examples(t *testing.T) {
	for _, tc := range []struct {
		from, to model.Stage
		want     bool
	}{
		{model.StageToDo, model.StageInProgress, true},
		{model.StageToDo, model.StageTesting, false},
		{model.StageTesting, model.StageToDo, true},
		{model.StageTesting, model.StageDone, true},
		{model.StageInProgress, model.StageInProgress, false},
		{model.StageDone, model.StageTesting, false},
		{model.StageClosed, model.StageToDo, false},
		{model.StageToDo, model.Stage("Backlog"), false},
		{model.Stage("Backlog"), model.StageToDo, false},
	} {
		if got := IsValidTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRequiredPredecessor(t *testing.T) {
	for _, tc := range []struct {
		to     model.Stage
		want   model.Stage
		wantOK bool
	}{
		{model.StageToDo, "", false},
		{model.StageInProgress, model.StageToDo, true},
		{model.StageDevComplete, model.StageInProgress, true},
		{model.StageTesting, model.StageDevComplete, true},
		{model.StageDone, model.StageTesting, true},
		{model.StageClosed, "", false},
	} {
		got, ok := RequiredPredecessor(tc.to)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("RequiredPredecessor(%q) = (%q, %v), want (%q, %v)", tc.to, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestCheck_TerminalRejectedFirst(t *testing.T) {
	for _, from := range []model.Stage{model.StageDone, model.StageClosed} {
		for _, to := range allStages() {
			if err := Check(from, to); !errors.Is(err, ErrTerminalStage) {
				t.Errorf("Check(%q, %q) = %v, want ErrTerminalStage", from, to, err)
			}
		}
	}
}

func TestCheck_SkipForward(t *testing.T) {
	err := Check(model.StageToDo, model.StageTesting)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("Check() = %v, want *TransitionError", err)
	}
	if te.Current != model.StageToDo || te.Attempted != model.StageTesting {
		t.Errorf("TransitionError = %+v", te)
	}
	if te.Required != model.StageDevComplete {
		t.Errorf("Required = %q, want %q", te.Required, model.StageDevComplete)
	}
}

func TestCheck_LegalMoves(t *testing.T) {
	for _, tc := range [][2]model.Stage{
		{model.StageToDo, model.StageInProgress},
		{model.StageTesting, model.StageToDo},
		{model.StageInProgress, model.StageInProgress},
	} {
		if err := Check(tc[0], tc[1]); err != nil {
			t.Errorf("Check(%q, %q) = %v, want nil", tc[0], tc[1], err)
		}
	}
}

func TestDescribe(t *testing.T) {
	want := "To Do → In Progress → Dev Complete → Testing → Done"
	if got := Describe(); got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}
