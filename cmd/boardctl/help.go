package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/boardsync/internal/model"
	"github.com/alfredjeanlab/boardsync/internal/ui"
	"github.com/spf13/cobra"
)

// Patterns used to colorize Cobra's default help output.
var (
	// Section headers: unindented line ending with ":" (e.g. "Board:", "Flags:").
	reGroupHeader = regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`)

	// Command names: two-space indent, then a word, then two-or-more spaces
	// before the description.
	reCommand = regexp.MustCompile(`(?m)^(  )(\S+)(  )`)

	// Flag type annotations: e.g. "--token string", "--interval duration".
	reFlagType = regexp.MustCompile(`(--?\S+\s+)(string|int|duration|stringSlice)`)

	reDefault = regexp.MustCompile(`\(default "[^"]*"\)`)

	// Workflow stage names and the arrows between them, as they appear in
	// the move and stages texts.
	reStage = regexp.MustCompile(stagePattern())
)

func stagePattern() string {
	var names []string
	for _, st := range append(model.Stages(), model.StageClosed) {
		names = append(names, regexp.QuoteMeta(st.String()))
	}
	return `\b(` + strings.Join(names, "|") + `)\b|→`
}

// colorizeStages paints open stages in the accent color, Done and Closed in
// the success color, and arrows muted.
func colorizeStages(s string) string {
	return reStage.ReplaceAllStringFunc(s, func(match string) string {
		if match == "→" {
			return ui.RenderMuted(match)
		}
		if model.Stage(match).IsTerminal() {
			return ui.RenderSuccess(match)
		}
		return ui.RenderAccent(match)
	})
}

// colorizedHelpFunc returns a Cobra help function that post-processes the
// default help text with ANSI colors when the terminal supports it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if !ui.ShouldUseColor() {
			cmd.SetOut(cmd.OutOrStdout())
			_ = cmd.Usage()
			return
		}

		orig := cmd.OutOrStdout()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(orig)

		fmt.Fprint(orig, colorizeHelpOutput(buf.String()))
	}
}

// colorizeHelpOutput applies ANSI styling to Cobra's plain-text help,
// including the stage names in command descriptions.
func colorizeHelpOutput(s string) string {
	s = reGroupHeader.ReplaceAllStringFunc(s, func(match string) string {
		return ui.RenderAccent(strings.TrimSpace(match))
	})
	s = reCommand.ReplaceAllStringFunc(s, func(match string) string {
		parts := reCommand.FindStringSubmatch(match)
		if len(parts) == 4 {
			return parts[1] + ui.RenderCommand(parts[2]) + parts[3]
		}
		return match
	})
	s = reFlagType.ReplaceAllStringFunc(s, func(match string) string {
		parts := reFlagType.FindStringSubmatch(match)
		if len(parts) == 3 {
			return parts[1] + ui.RenderMuted(parts[2])
		}
		return match
	})
	s = reDefault.ReplaceAllStringFunc(s, ui.RenderMuted)
	return colorizeStages(s)
}
