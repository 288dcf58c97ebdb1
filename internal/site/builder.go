// Package site is the build orchestrator: it walks a project, builds a
// Context per source file, decides what is stale, drives each file's program
// and announces every step on an event bus that aggregation modules observe.
package site

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/program"
	"git.home.luguber.info/inful/sitebuilder/internal/routing"
)

// Defaults for root configuration keys.
const (
	DefaultOutputFolder   = "_build"
	DefaultTemplatePath   = "_templates"
	DefaultStaticFolder   = "static"
	DefaultCanonicalURL   = "http://localhost/"
	RoutePage             = "page"
	routePagePattern      = "/<path:slug>"
	activeModulesKey      = "active_modules"
	respectGitignoreKey   = "respect_gitignore"
	templateAutoescapeKey = "template_autoescape"
)

// Module is an aggregation module. Setup registers its routes, template
// functions and event subscriptions; it runs once when the builder is created.
type Module interface {
	Name() string
	Setup(b *Builder) error
}

// Builder owns everything one project needs across build passes.
type Builder struct {
	projectDir string
	outputDir  string
	config     *config.Node

	router    *routing.Router
	bus       *events.Bus
	registry  *program.Registry
	storage   *Storage
	templates *Templates
	logger    *slog.Logger
	recorder  metrics.Recorder
	out       io.Writer
	force     bool

	available []Module
	modules   []Module
}

// Option configures a Builder.
type Option func(*Builder)

// WithOutput sets where build markers are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(b *Builder) { b.out = w }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithModules makes modules available for activation via `active_modules`.
func WithModules(mods ...Module) Option {
	return func(b *Builder) { b.available = append(b.available, mods...) }
}

// WithRegistry replaces the program registry, e.g. one holding extensions.
func WithRegistry(r *program.Registry) Option {
	return func(b *Builder) { b.registry = r }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) { b.recorder = r }
}

// WithForce treats every file as stale.
func WithForce(force bool) Option {
	return func(b *Builder) { b.force = force }
}

// WithOutputDir overrides the `output_folder` setting.
func WithOutputDir(dir string) Option {
	return func(b *Builder) { b.outputDir = dir }
}

// New prepares a builder for the project at projectDir configured by cfg, the
// project's root node. Active modules are set up before New returns.
func New(projectDir string, cfg *config.Node, opts ...Option) (*Builder, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot resolve project directory").
			WithSource(projectDir).Fatal().Build()
	}
	b := &Builder{
		projectDir: abs,
		config:     cfg,
		bus:        events.NewBus(),
		storage:    newStorage(),
		logger:     slog.Default(),
		recorder:   metrics.NoopRecorder{},
		out:        os.Stdout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.registry == nil {
		b.registry = program.NewRegistry()
	}
	if b.outputDir == "" {
		b.outputDir = filepath.Join(abs, cfg.RootGetString("output_folder", DefaultOutputFolder))
	} else if !filepath.IsAbs(b.outputDir) {
		b.outputDir = filepath.Join(abs, b.outputDir)
	}
	if err := b.registry.Validate(cfg); err != nil {
		return nil, err
	}

	prefix := routing.PrefixFromURL(cfg.RootGetString("canonical_url", ""))
	b.router = routing.New(prefix, b.outputDir, func(key string) (string, bool) {
		v := cfg.RootGetString(key, "")
		return v, v != ""
	})
	if err := b.router.Register(RoutePage, routePagePattern); err != nil {
		return nil, err
	}

	templateDir := filepath.Join(abs, cfg.RootGetString("template_path", DefaultTemplatePath))
	b.templates = newTemplates(templateDir, cfg.Root().GetBool(templateAutoescapeKey, true))
	b.templates.addFuncs(b.defaultFuncs())

	if err := b.activateModules(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Builder) activateModules() error {
	names := b.config.GetStrings(activeModulesKey, nil)
	for _, name := range names {
		var mod Module
		for _, m := range b.available {
			if m.Name() == name {
				mod = m
				break
			}
		}
		if mod == nil {
			return errors.ConfigError(fmt.Sprintf("unknown module %q", name)).
				WithSource(b.config.Origin()).WithContext("module", name).Build()
		}
		if err := mod.Setup(b); err != nil {
			if errors.IsClassified(err) {
				return err
			}
			return errors.WrapError(err, errors.CategoryModule, "module setup failed").
				WithContext("module", name).Fatal().Build()
		}
		b.logger.Debug("Module activated", logfields.Module(name))
		b.modules = append(b.modules, mod)
	}
	return nil
}

// ProjectDir is the absolute project directory.
func (b *Builder) ProjectDir() string { return b.projectDir }

// OutputDir is the absolute output folder.
func (b *Builder) OutputDir() string { return b.outputDir }

// Config is the project's root configuration node.
func (b *Builder) Config() *config.Node { return b.config }

// Bus is the event bus modules subscribe to.
func (b *Builder) Bus() *events.Bus { return b.bus }

// Router is the builder's URL router.
func (b *Builder) Router() *routing.Router { return b.router }

// Registry is the program registry.
func (b *Builder) Registry() *program.Registry { return b.registry }

// Logger is the builder's structured logger.
func (b *Builder) Logger() *slog.Logger { return b.logger }

// Modules lists the activated modules in activation order.
func (b *Builder) Modules() []Module { return append([]Module(nil), b.modules...) }

// Storage returns module's keyed storage for the current pass.
func (b *Builder) Storage(module string) *Store { return b.storage.For(module) }

// RegisterURL adds a named route. When configKey is set in the root
// configuration its value replaces pattern; opts may supply defaults.
func (b *Builder) RegisterURL(name, pattern, configKey string, opts ...routing.Option) error {
	if configKey != "" {
		opts = append(opts, routing.WithConfigKey(configKey))
	}
	return b.router.Register(name, pattern, opts...)
}

// LinkTo builds the URL of a named route.
func (b *Builder) LinkTo(name string, params map[string]any) (string, error) {
	return b.router.Build(name, params)
}

// LinkFilename maps a named route to a file below the output folder.
func (b *Builder) LinkFilename(name string, params map[string]any) (string, error) {
	return b.router.LinkFilename(name, params)
}

// OpenLinkFile creates the output file for a named route.
func (b *Builder) OpenLinkFile(name string, params map[string]any) (io.WriteCloser, error) {
	return b.router.OpenLinkFile(name, params)
}

func (b *Builder) staticFolder() string {
	return b.config.RootGetString("static_folder", DefaultStaticFolder)
}

// StaticURL is the URL of a file in the static folder.
func (b *Builder) StaticURL(name string) string {
	return b.router.Prefix() + "/" + path.Join(b.staticFolder(), name)
}

// StaticFilename is the output filename of a file in the static folder.
func (b *Builder) StaticFilename(name string) string {
	return filepath.Join(b.outputDir, filepath.FromSlash(b.staticFolder()), filepath.FromSlash(name))
}

// OpenStaticFile creates a file in the static output folder.
func (b *Builder) OpenStaticFile(name string) (io.WriteCloser, error) {
	filename := b.StaticFilename(name)
	if err := os.MkdirAll(filepath.Dir(filename), 0o750); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot create static directory").
			WithSource(filename).Fatal().Build()
	}
	f, err := os.Create(filepath.Clean(filename))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot create static file").
			WithSource(filename).Fatal().Build()
	}
	return f, nil
}

// AddTemplateFunc exposes fn to every template under name.
func (b *Builder) AddTemplateFunc(name string, fn any) {
	b.templates.addFuncs(map[string]any{name: fn})
}

// RenderTemplate renders a template. The root configuration is available as
// `config` unless vars sets it, and `builder` is always the builder.
// Subscribers of TemplateRendering may extend vars before execution.
func (b *Builder) RenderTemplate(ctx context.Context, name string, vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	vars["builder"] = b
	if _, ok := vars["config"]; !ok {
		vars["config"] = b.config
	}
	if err := b.publish(ctx, TemplateRendering{Name: name, Vars: vars}); err != nil {
		return "", err
	}
	out, err := b.templates.render(name, vars)
	if err != nil {
		return "", err
	}
	b.logger.Debug("Template rendered", logfields.Template(name))
	return out, nil
}

// WriteTemplate renders a template into the file of a named route.
func (b *Builder) WriteTemplate(ctx context.Context, tmpl, route string, params, vars map[string]any) error {
	out, err := b.RenderTemplate(ctx, tmpl, vars)
	if err != nil {
		return err
	}
	return b.WriteLinkFile(route, params, []byte(out+"\n"))
}

// WriteLinkFile writes data to the file of a named route.
func (b *Builder) WriteLinkFile(route string, params map[string]any, data []byte) error {
	f, err := b.OpenLinkFile(route, params)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot write output file").
			WithContext("route", route).Fatal().Build()
	}
	if err := f.Close(); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot write output file").
			WithContext("route", route).Fatal().Build()
	}
	return nil
}

// CanonicalURL is the root canonical URL with a trailing slash.
func (b *Builder) CanonicalURL() string {
	u := b.config.RootGetString("canonical_url", DefaultCanonicalURL)
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

func (b *Builder) publish(ctx context.Context, evt any) error {
	name := eventName(evt)
	b.recorder.IncEvent(name)
	return b.bus.Publish(ctx, evt)
}

// Close releases activated modules that hold resources and shuts the bus.
func (b *Builder) Close() error {
	var first error
	for _, m := range b.modules {
		if c, ok := m.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	b.bus.Close()
	return first
}
