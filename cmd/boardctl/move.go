package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alfredjeanlab/boardsync/internal/client"
	"github.com/alfredjeanlab/boardsync/internal/drag"
	"github.com/alfredjeanlab/boardsync/internal/model"
	"github.com/alfredjeanlab/boardsync/internal/notify"
	"github.com/spf13/cobra"
)

var moveCmd = &cobra.Command{
	Use:     "move <board> <task> <stage>",
	Short:   "Move a task to another column",
	GroupID: "board",
	Args:    cobra.ExactArgs(3),
	Long: `Moves a task the way a drag and drop on the board does. The move is
checked against the workflow first: forward one stage at a time, backward any
distance, and never out of Done or Closed.

Stages may be given as "In Progress", "in_progress" or "in-progress".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		boardID, taskID := args[0], args[1]
		stage, ok := model.ParseStage(args[2])
		if !ok {
			return fmt.Errorf("unknown stage %q (one of: %s)", args[2], stageNames())
		}

		sink := notify.Discard
		if !jsonOutput {
			sink = notify.SinkFunc(func(n notify.Notice) { printNotice(os.Stderr, n) })
		}
		s, err := openSession(cmd.Context(), boardID, sink, nil)
		if err != nil {
			return err
		}
		defer s.Close()

		res := s.Move(cmd.Context(), taskID, stage)
		if jsonOutput {
			printJSON(os.Stdout, toResultJSON(res))
		} else {
			printResult(os.Stdout, res)
		}
		if res.Phase != drag.PhaseCommitted && !res.Noop {
			return fmt.Errorf("task %s not moved", taskID)
		}
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:     "approve <task>",
	Short:   "Approve a Done task, moving it to Closed",
	GroupID: "board",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewHTTPClient(cfg.APIURL, cfg.Token)
		defer c.Close()

		task, err := c.ApproveTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if task == nil {
			fmt.Printf("task %s approved\n", args[0])
			return nil
		}
		if jsonOutput {
			printJSON(os.Stdout, task)
			return nil
		}
		fmt.Printf("task %s approved: %s\n", task.ID, task.Status)
		if task.ApprovedByName != "" {
			fmt.Printf("approved by %s\n", task.ApprovedByName)
		}
		return nil
	},
}

func stageNames() string {
	var names []string
	for _, s := range append(model.Stages(), model.StageClosed) {
		names = append(names, fmt.Sprintf("%q", s))
	}
	return strings.Join(names, ", ")
}
