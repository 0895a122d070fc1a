package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmynk/pollchat/internal/models"
	"github.com/mmynk/pollchat/internal/roster"
	"github.com/mmynk/pollchat/internal/syncloop"
	"github.com/mmynk/pollchat/internal/timeline"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <peer-email | group:ID>",
	Short: "Follow a conversation, redrawing it on every poll",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

// terminalView redraws the whole timeline on every render.
type terminalView struct {
	out    io.Writer
	redraw bool
	self   string
	names  *roster.Cache
}

func (v terminalView) Show(conv models.Conversation, items []timeline.Item) {
	if v.redraw {
		fmt.Fprint(v.out, "\033[H\033[2J")
	}
	fmt.Fprintf(v.out, "%s\n", conv.Title())
	fmt.Fprint(v.out, timeline.Format(items, timeline.FormatOptions{
		Viewer: v.self,
		Name:   v.names.Name,
	}))
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	redraw := false
	if f, ok := out.(*os.File); ok {
		redraw = term.IsTerminal(int(f.Fd()))
	}

	// The queue goroutine is the only one that touches the terminal.
	queue := syncloop.NewQueue(16)
	view := &terminalView{out: out, redraw: redraw}
	sess, store, err := openSession(view, queue)
	if err != nil {
		return err
	}
	defer store.Close()
	view.self = sess.Self()
	view.names = sess.Roster()

	if err := sess.Open(ctx); err != nil {
		slog.Warn("Session open incomplete", "error", err)
	}
	defer func() {
		// ctx is already cancelled here
		if err := sess.Close(context.Background()); err != nil {
			slog.Warn("Failed to go offline", "error", err)
		}
	}()

	refresher, err := roster.NewRefresher(sess.Roster(), cfg.Client.RosterCron)
	if err != nil {
		return err
	}
	go refresher.Run(ctx)

	conv, err := resolveTarget(ctx, sess, args[0])
	if err != nil {
		return err
	}
	if err := sess.Select(conv); err != nil {
		return err
	}

	queue.Run(ctx)
	return nil
}
