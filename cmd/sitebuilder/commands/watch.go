package commands

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	"git.home.luguber.info/inful/sitebuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Output   string        `short:"o" help:"Output folder (overrides output_folder)"`
	Journal  string        `help:"Record passes in this sqlite database (overrides the journal key)"`
	Interval time.Duration `help:"Also rebuild on this interval (0 disables)" default:"0s"`
}

func (c *WatchCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return runWatch(ctx, root, g, buildOptions{output: c.Output, journal: c.Journal}, c.Interval)
}

// runWatch builds once, then keeps rebuilding on changes until ctx is done.
// A failing pass is reported and the next change retries.
func runWatch(ctx context.Context, root *CLI, g *Global, bo buildOptions, interval time.Duration) error {
	if _, err := buildOnce(ctx, root, g, bo); err != nil {
		g.Logger.Error("Initial build failed", "error", err, "source", errors.SourceOf(err))
	}
	outputDir, err := resolveOutputDir(root.Project, bo.output)
	if err != nil {
		return err
	}
	opts := []watch.Option{
		watch.WithSkip(outputDir),
		watch.WithInterval(interval),
		watch.WithLogger(g.Logger),
	}
	// The journal is written on every pass and must not retrigger one.
	if cfg, err := config.LoadProject(root.Project); err == nil {
		if p := journalPath(root.Project, cfg, bo.journal); p != "" {
			opts = append(opts, watch.WithIgnore(filepath.Base(p)+"*"))
		}
	}
	w := watch.New(root.Project,
		func(ctx context.Context) error {
			_, err := buildOnce(ctx, root, g, bo)
			return err
		},
		opts...,
	)
	return w.Run(ctx)
}

// resolveOutputDir mirrors the builder's choice of output folder so the
// watcher can ignore its own writes.
func resolveOutputDir(projectDir, flag string) (string, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return "", err
	}
	out := flag
	if out == "" {
		cfg, err := config.LoadProject(abs)
		if err != nil {
			return "", err
		}
		out = cfg.RootGetString("output_folder", site.DefaultOutputFolder)
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(abs, out)
	}
	return out, nil
}
