package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"jordanella.com/linewatch/internal/bot"
	"jordanella.com/linewatch/internal/events"
	"jordanella.com/linewatch/internal/session"
)

const intentInterval = 100 * time.Millisecond

const commandHelp = "Commands: r restart, s save overlay, x stop, q quit"

func newRunCmd(opts *rootOptions) *cobra.Command {
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the automation loop against the device",
		Long: `Run taps the three configured regions, swipes, captures the screen and
looks for three separated green lines. When they appear the loop pauses and
an overlay is saved.

Commands are read from stdin, one per line:
  r  restart after a pause
  s  save the current overlay
  x  stop the loop
  q  quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout(), assumeYes)
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "start without asking for confirmation")
	return cmd
}

func runLoop(ctx context.Context, opts *rootOptions, in io.Reader, w io.Writer, assumeYes bool) error {
	logger := opts.logger.Named("run")
	out := &lockedWriter{w: w}

	sess, err := session.Open(session.Options{
		Settings: opts.settings,
		Logger:   opts.logger,
		Runner:   opts.runner,
		Sleeper:  opts.sleeper,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printIntents(sess.Queue, out)
	lines := readLines(ctx, in)

	confirmer := bot.ConfirmFunc(func(title, message string) bool {
		if assumeYes {
			return true
		}
		out.Printf("%s %s [y/N] ", title, message)
		select {
		case line, ok := <-lines:
			return ok && isYes(line)
		case <-ctx.Done():
			return false
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sess.Queue.Run(gctx, intentInterval, nil)
		return nil
	})
	g.Go(func() error {
		return sess.Monitor(gctx)
	})
	g.Go(func() error {
		defer cancel()
		if err := sess.Start(gctx, confirmer); err != nil {
			if errors.Is(err, bot.ErrCanceled) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		out.Println(commandHelp)
		return commandLoop(gctx, sess, lines, out, logger)
	})

	err = g.Wait()
	closeErr := sess.Close()
	sess.Queue.Drain()
	if err != nil {
		return err
	}
	return closeErr
}

// commandLoop applies stdin commands until quit or ctx ends
func commandLoop(ctx context.Context, sess *session.Session, lines <-chan string, out *lockedWriter, logger *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep running until interrupted
				lines = nil
				continue
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "":
			case "r", "restart":
				if err := sess.Loop.Restart(); err != nil {
					logger.Debug("Restart rejected", zap.Error(err))
				}
			case "s", "save":
				if _, err := sess.SaveOverlay(""); err != nil {
					if errors.Is(err, bot.ErrNoOverlay) {
						out.Println("No overlay to save yet.")
					} else {
						out.Printf("Save failed: %v\n", err)
					}
				}
			case "x", "stop":
				sess.Loop.Stop()
			case "q", "quit", "exit":
				return nil
			default:
				out.Println(commandHelp)
			}
		}
	}
}

// printIntents renders loop intents as terminal lines
func printIntents(q *events.Queue, out *lockedWriter) {
	q.Subscribe(events.EventTypeStatusChanged, func(e events.Event) {
		out.Printf("[%s] %s\n", e.Status, e.Message)
	})
	q.Subscribe(events.EventTypeNotify, func(e events.Event) {
		out.Println(e.Message)
	})
	q.Subscribe(events.EventTypeOverlayReady, func(e events.Event) {
		if e.Path != "" {
			out.Printf("Overlay: %s\n", e.Path)
		}
		out.Println(commandHelp)
	})
	q.Subscribe(events.EventTypeError, func(e events.Event) {
		if e.Err != nil {
			out.Printf("Error: %s (%v)\n", e.Message, e.Err)
			return
		}
		out.Printf("Error: %s\n", e.Message)
	})
}

// readLines feeds stdin lines to a channel that closes on EOF.
// The scanner goroutine cannot be interrupted and may outlive ctx while blocked on a read.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// lockedWriter serializes writes from the intent and command goroutines
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}

func (l *lockedWriter) Println(args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, args...)
}
