package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// ServeCmd implements the 'serve' command: the output folder over HTTP plus
// the same rebuild loop as watch.
type ServeCmd struct {
	Output   string        `short:"o" help:"Output folder (overrides output_folder)"`
	Journal  string        `help:"Record passes in this sqlite database (overrides the journal key)"`
	Interval time.Duration `help:"Also rebuild on this interval (0 disables)" default:"0s"`
	Addr     string        `short:"a" help:"Listen address" default:"127.0.0.1:8000"`
}

func (c *ServeCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	outputDir, err := resolveOutputDir(root.Project, c.Output)
	if err != nil {
		return err
	}
	reg, rec := newPrometheus()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	mux.Handle("/", http.FileServer(http.Dir(outputDir)))
	srv := &http.Server{Handler: mux, ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second, IdleTimeout: 120 * time.Second}

	ln, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.Addr, err)
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	g.Logger.Info("Serving site", "addr", "http://"+ln.Addr().String(), "output", outputDir)

	watchErr := runWatch(ctx, root, g, buildOptions{output: c.Output, journal: c.Journal, recorder: rec}, c.Interval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		g.Logger.Warn("Server shutdown failed", "error", err)
	}
	if watchErr != nil {
		return watchErr
	}
	return <-serveErr
}
