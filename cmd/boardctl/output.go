package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/alfredjeanlab/boardsync/internal/conn"
	"github.com/alfredjeanlab/boardsync/internal/drag"
	"github.com/alfredjeanlab/boardsync/internal/model"
	"github.com/alfredjeanlab/boardsync/internal/notify"
	"github.com/alfredjeanlab/boardsync/internal/presence"
	"github.com/alfredjeanlab/boardsync/internal/store"
	"github.com/alfredjeanlab/boardsync/internal/ui"
)

func printJSON(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// printBoardTable prints tasks grouped by column in workflow order, with
// Closed last.
func printBoardTable(w io.Writer, tasks []*model.Task) {
	byStage := make(map[model.Stage][]*model.Task)
	for _, t := range tasks {
		byStage[t.Status] = append(byStage[t.Status], t)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tID\tTICKET\tTITLE\tASSIGNEE")
	for _, stage := range append(model.Stages(), model.StageClosed) {
		for _, t := range byStage[stage] {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				stage,
				t.ID,
				t.TicketID,
				truncate(t.Title, 50),
				t.AssigneeName,
			)
		}
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d tasks\n", len(tasks))
}

// changeLine renders a store change for the watch stream. Loads and
// optimistic flickers are not interesting to a terminal reader.
func changeLine(c store.Change) (string, bool) {
	switch c.Kind {
	case store.ChangeCreated:
		return fmt.Sprintf("+ %s %s [%s]", c.TaskID, c.Task.DisplayName(""), c.Task.Status), true
	case store.ChangeUpdated, store.ChangeCommitted:
		return fmt.Sprintf("~ %s %s [%s]", c.TaskID, c.Task.DisplayName(""), c.Task.Status), true
	case store.ChangeRolledBack:
		return fmt.Sprintf("< %s back to [%s]", c.TaskID, c.Task.Status), true
	case store.ChangeRemoved:
		return fmt.Sprintf("- %s", c.TaskID), true
	default:
		return "", false
	}
}

type changeJSON struct {
	Kind   store.ChangeKind `json:"kind"`
	TaskID string           `json:"task_id,omitempty"`
	Task   *model.Task      `json:"task,omitempty"`
}

type presenceJSON struct {
	Presence presence.Transition `json:"presence"`
}

func presenceLine(tr presence.Transition) string {
	name := tr.Name
	if name == "" {
		name = tr.UserID
	}
	if tr.Online {
		return ui.RenderSuccess("→ ") + name + " is on the board"
	}
	return ui.RenderMuted("← ") + name + " left the board"
}

// printRoster lists the users currently on the board, most recently active
// first. Departed users are left out.
func printRoster(w io.Writer, roster []presence.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  USER\tNAME\tLAST\tIDLE")
	online := 0
	for _, e := range roster {
		if !e.Online {
			continue
		}
		online++
		idle := fmt.Sprintf("%ds", int(e.IdleSecs))
		if e.Idle {
			idle += " (idle)"
		}
		last := string(e.LastActivity)
		if e.LastTaskID != "" {
			last += " " + e.LastTaskID
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", e.UserID, e.Name, last, idle)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d on the board\n", online)
}

func printNotice(w io.Writer, n notify.Notice) {
	if n.Kind == notify.KindError {
		fmt.Fprintln(w, ui.RenderError("! "+n.Text))
		return
	}
	fmt.Fprintln(w, ui.RenderAccent("• ")+n.Text)
}

func printStatus(w io.Writer, sc conn.StatusChanged) {
	line := "connection: " + ui.RenderStatus(string(sc.Status))
	if sc.Status == conn.StatusReconnecting {
		line += ui.RenderMuted(fmt.Sprintf(" (attempt %d)", sc.RetryCount))
	}
	fmt.Fprintln(w, line)
}

type resultJSON struct {
	TxID         string      `json:"tx_id,omitempty"`
	TaskID       string      `json:"task_id"`
	Phase        drag.Phase  `json:"phase,omitempty"`
	From         model.Stage `json:"from,omitempty"`
	To           model.Stage `json:"to"`
	RemoteCalled bool        `json:"remote_called"`
	Error        string      `json:"error,omitempty"`
}

func toResultJSON(r drag.Result) resultJSON {
	out := resultJSON{
		TxID:         r.TxID,
		TaskID:       r.TaskID,
		Phase:        r.Phase,
		From:         r.Original,
		To:           r.Status,
		RemoteCalled: r.RemoteCalled,
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

func printResult(w io.Writer, r drag.Result) {
	fmt.Fprintf(w, "Transaction: %s\n", r.TxID)
	fmt.Fprintf(w, "Task:        %s\n", r.TaskID)
	fmt.Fprintf(w, "From:        %s\n", r.Original)
	fmt.Fprintf(w, "To:          %s\n", r.Status)
	fmt.Fprintf(w, "Phase:       %s\n", r.Phase)
	if r.Err != nil {
		fmt.Fprintf(w, "Error:       %v\n", r.Err)
	}
}
