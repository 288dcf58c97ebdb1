package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output      string `short:"o" help:"Output folder (overrides output_folder)"`
	Force       bool   `short:"f" help:"Rebuild every file, not only stale ones"`
	Journal     string `help:"Record the pass in this sqlite database (overrides the journal key)"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics in textfile format after the pass"`
}

func (c *BuildCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bo := buildOptions{output: c.Output, force: c.Force, journal: c.Journal}
	var writeMetrics func() error
	if c.MetricsFile != "" {
		reg, rec := newPrometheus()
		bo.recorder = rec
		writeMetrics = func() error { return metrics.WriteTextfile(reg, c.MetricsFile) }
	}

	res, err := buildOnce(ctx, root, g, bo)
	if writeMetrics != nil {
		if merr := writeMetrics(); merr != nil {
			g.Logger.Warn("Failed to write metrics file", "path", c.MetricsFile, "error", merr)
		}
	}
	if err != nil {
		return err
	}
	if len(res.Built) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "Nothing to build")
	}
	return nil
}
