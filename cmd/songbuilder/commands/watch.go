package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/songbuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	BuildFlags `embed:""`
	Debounce   time.Duration `help:"Quiet period before a rebuild starts" default:"500ms" env:"SONGBUILDER_DEBOUNCE"`
}

func (w *WatchCmd) Run(g *Global) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return w.run(ctx, g)
}

func (w *WatchCmd) run(ctx context.Context, g *Global) error {
	s := newSession(&w.BuildFlags, g)
	watcher, err := watch.New(w.Songbook, s.run,
		watch.WithDebounce(w.Debounce),
		watch.WithLogger(g.Logger))
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}
