// Package commands implements the sitebuilder command line.
package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/journal"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/modules/blog"
	"git.home.luguber.info/inful/sitebuilder/internal/modules/disqus"
	"git.home.luguber.info/inful/sitebuilder/internal/modules/gitinfo"
	"git.home.luguber.info/inful/sitebuilder/internal/modules/highlight"
	"git.home.luguber.info/inful/sitebuilder/internal/modules/notify"
	"git.home.luguber.info/inful/sitebuilder/internal/modules/tags"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// journalKey names the root config key holding the history database path.
const journalKey = "journal"

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Project string           `short:"p" help:"Project directory" default:"." type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build every file that is out of date"`
	Status  StatusCmd  `cmd:"" help:"Report whether anything needs to be built"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild whenever the project changes"`
	Serve   ServeCmd   `cmd:"" help:"Serve the output folder and rebuild on changes"`
	History HistoryCmd `cmd:"" help:"Show recorded build passes"`
	Init    InitCmd    `cmd:"" help:"Create a config.yml and a sample page"`
	Routes  RoutesCmd  `cmd:"" help:"List the URL routes registered by the active modules"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return nil
}

// availableModules lists every module a project may activate via active_modules.
func availableModules() []site.Module {
	return []site.Module{blog.New(), tags.New(), notify.New(), gitinfo.New(), highlight.New(), disqus.New()}
}

// buildOptions carries the flags shared by the commands that build.
type buildOptions struct {
	output   string
	force    bool
	journal  string
	recorder metrics.Recorder
}

// newBuilder loads the project configuration and prepares a builder with
// every available module.
func newBuilder(root *CLI, g *Global, bo buildOptions) (*site.Builder, error) {
	cfg, err := config.LoadProject(root.Project)
	if err != nil {
		return nil, err
	}
	opts := []site.Option{
		site.WithLogger(g.Logger),
		site.WithModules(availableModules()...),
		site.WithForce(bo.force),
	}
	if bo.output != "" {
		opts = append(opts, site.WithOutputDir(bo.output))
	}
	if bo.recorder != nil {
		opts = append(opts, site.WithRecorder(bo.recorder))
	}
	return site.New(root.Project, cfg, opts...)
}

// journalPath resolves the history database: the flag wins over the root
// journal key. Relative paths are taken from the project directory.
func journalPath(projectDir string, cfg *config.Node, flag string) string {
	p := flag
	if p == "" {
		p = cfg.RootGetString(journalKey, "")
	}
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(projectDir, p)
}

// buildOnce runs a single pass with a freshly loaded configuration, so edits
// to config.yml take effect on the next rebuild.
func buildOnce(ctx context.Context, root *CLI, g *Global, bo buildOptions) (*site.Result, error) {
	b, err := newBuilder(root, g, bo)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			g.Logger.Warn("Failed to close builder", "error", cerr)
		}
	}()

	var j *journal.Journal
	if p := journalPath(b.ProjectDir(), b.Config(), bo.journal); p != "" {
		j, err = journal.Open(p)
		if err != nil {
			return nil, err
		}
		defer func() { _ = j.Close() }()
		j.Attach(b)
	}

	res, err := b.Run(ctx)
	if err != nil && j != nil && res != nil {
		if jerr := j.MarkFailed(ctx, res.BuildID, err); jerr != nil {
			g.Logger.Warn("Failed to record failed pass", "error", jerr)
		}
	}
	return res, err
}

// newPrometheus returns a registry with the build recorder registered on it.
func newPrometheus() (*prom.Registry, *metrics.PrometheusRecorder) {
	reg := prom.NewRegistry()
	return reg, metrics.NewPrometheusRecorder(reg)
}

// requireJournal opens the history database or explains how to configure one.
func requireJournal(root *CLI, flag string) (*journal.Journal, error) {
	cfg, err := config.LoadProject(root.Project)
	if err != nil {
		return nil, err
	}
	p := journalPath(root.Project, cfg, flag)
	if p == "" {
		return nil, errors.ConfigError("no journal configured").
			WithContext("hint", "set the journal key in config.yml or pass --journal").Build()
	}
	return journal.Open(p)
}
