package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/boardsync/internal/board"
	"github.com/alfredjeanlab/boardsync/internal/conn"
	"github.com/alfredjeanlab/boardsync/internal/notify"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch <board>",
	Short:   "Show a board and stream live changes",
	GroupID: "board",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		retry, _ := cmd.Flags().GetBool("retry")
		who, _ := cmd.Flags().GetBool("who")
		return runWatch(ctx, args[0], watchOptions{retry: retry, who: who}, os.Stdout, os.Stderr)
	},
}

func init() {
	watchCmd.Flags().Bool("retry", false, "reconnect with a fresh budget after the connection fails")
	watchCmd.Flags().Bool("who", false, "print who is on the board whenever someone arrives or leaves")
}

func openSession(ctx context.Context, boardID string, sink notify.Sink, onEvent func(conn.Event)) (*board.Session, error) {
	opts, err := board.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts.Logger = logger
	opts.Notices = sink
	opts.OnEvent = onEvent
	return board.Open(ctx, boardID, opts)
}

type watchOptions struct {
	retry bool
	who   bool
}

func runWatch(ctx context.Context, boardID string, wo watchOptions, out, errOut io.Writer) error {
	statusCh := make(chan conn.StatusChanged, 16)
	onEvent := func(ev conn.Event) {
		if sc, ok := ev.(conn.StatusChanged); ok {
			select {
			case statusCh <- sc:
			default:
			}
		}
	}
	sink := notify.SinkFunc(func(n notify.Notice) { printNotice(errOut, n) })

	s, err := openSession(ctx, boardID, sink, onEvent)
	if err != nil {
		return err
	}
	defer s.Close()

	changes, cancel := s.Store().Subscribe()
	defer cancel()
	arrivals, stopPresence := s.Presence().Subscribe()
	defer stopPresence()

	enc := json.NewEncoder(out)
	if jsonOutput {
		_ = enc.Encode(s.Store().All())
	} else {
		printBoardTable(out, s.Store().All())
	}

	// After a failure, wait one reconnect interval before asking for a
	// fresh budget so a dead server is not hammered.
	var retryTimer <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if jsonOutput {
				_ = enc.Encode(changeJSON{Kind: c.Kind, TaskID: c.TaskID, Task: c.Task})
				continue
			}
			if line, ok := changeLine(c); ok {
				fmt.Fprintln(out, line)
			}
		case tr, ok := <-arrivals:
			if !ok {
				arrivals = nil
				continue
			}
			if jsonOutput {
				_ = enc.Encode(presenceJSON{Presence: tr})
				continue
			}
			fmt.Fprintln(errOut, presenceLine(tr))
			if wo.who {
				printRoster(errOut, s.Presence().Roster(0))
			}
		case sc := <-statusCh:
			printStatus(errOut, sc)
			if sc.Status != conn.StatusFailed {
				continue
			}
			if !wo.retry {
				return fmt.Errorf("connection to board %s failed after %d attempts", boardID, sc.RetryCount)
			}
			retryTimer = time.After(cfg.ReconnectInterval)
		case <-retryTimer:
			retryTimer = nil
			if err := s.Reconnect(); err != nil {
				return err
			}
		}
	}
}
