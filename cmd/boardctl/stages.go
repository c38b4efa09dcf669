package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/alfredjeanlab/boardsync/internal/model"
	"github.com/alfredjeanlab/boardsync/internal/ui"
	"github.com/alfredjeanlab/boardsync/internal/workflow"
	"github.com/spf13/cobra"
)

var stagesCmd = &cobra.Command{
	Use:     "stages",
	Short:   "Show the workflow stages and allowed moves",
	GroupID: "board",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			printJSON(os.Stdout, stageRows())
			return nil
		}
		if !ui.ShouldUseColor() {
			printStages(os.Stdout)
			return nil
		}
		var buf bytes.Buffer
		printStages(&buf)
		fmt.Print(colorizeStages(buf.String()))
		return nil
	},
}

type stageRow struct {
	Stage    model.Stage   `json:"stage"`
	Terminal bool          `json:"terminal"`
	MovesTo  []model.Stage `json:"moves_to"`
}

func stageRows() []stageRow {
	all := append(model.Stages(), model.StageClosed)
	rows := make([]stageRow, 0, len(all))
	for _, from := range all {
		row := stageRow{Stage: from, Terminal: from.IsTerminal(), MovesTo: []model.Stage{}}
		for _, to := range all {
			if workflow.IsValidTransition(from, to) {
				row.MovesTo = append(row.MovesTo, to)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func printStages(w io.Writer) {
	fmt.Fprintf(w, "Workflow: %s\n\n", workflow.Describe())
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tMOVES TO")
	for _, row := range stageRows() {
		targets := "-"
		if len(row.MovesTo) > 0 {
			targets = ""
			for i, s := range row.MovesTo {
				if i > 0 {
					targets += ", "
				}
				targets += string(s)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\n", row.Stage, targets)
	}
	tw.Flush()
	fmt.Fprintln(w, "\nClosed is reached only through approve.")
}
