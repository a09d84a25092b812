package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appLog "icalkit/internal/log"
	"icalkit/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch FILE...",
	Short: "Reprint the agenda whenever a calendar file changes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func init() {
	addAgendaFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	for _, f := range args {
		if f == "-" {
			return errors.New("watch needs files, not stdin")
		}
	}
	cfg, sources, err := agendaSources(args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r := &agendaRenderer{out: out, print: func(w io.Writer) error {
		return printAgenda(ctx, w, cfg, sources, time.Now())
	}}

	w, err := watch.New(func(name string) {
		appLog.Debug("calendar changed", "path", name)
		r.render(true)
	})
	if err != nil {
		return err
	}
	defer w.Close()
	for _, f := range args {
		if err := w.Add(f); err != nil {
			return err
		}
	}

	r.render(false)
	<-ctx.Done()
	return nil
}

// agendaRenderer serializes agenda output; file events arrive on the
// watcher goroutine while the first render runs on the caller's.
type agendaRenderer struct {
	mu    sync.Mutex
	out   io.Writer
	print func(io.Writer) error
}

// render prints the agenda, preceded by a blank line when separate.
func (r *agendaRenderer) render(separate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if separate {
		fmt.Fprintln(r.out)
	}
	if err := r.print(r.out); err != nil {
		fmt.Fprintln(r.out, errorStyle.Render(err.Error()))
	}
}
