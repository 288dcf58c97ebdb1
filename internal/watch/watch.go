// Package watch reruns a build when the project changes, optionally also on
// a fixed interval.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/sitebuilder/internal/globs"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// DefaultDebounce coalesces bursts of file events into one rebuild.
const DefaultDebounce = 300 * time.Millisecond

// RebuildFunc runs one build pass.
type RebuildFunc func(ctx context.Context) error

// Watcher triggers rebuilds from file system events and an optional interval.
type Watcher struct {
	root     string
	skip     []string
	ignores  []string
	debounce time.Duration
	interval time.Duration
	rebuild  RebuildFunc
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
	req   chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSkip ignores events below dir (typically the output folder).
func WithSkip(dir string) Option {
	return func(w *Watcher) { w.skip = append(w.skip, filepath.Clean(dir)) }
}

// WithIgnore drops events whose base name matches one of the glob patterns.
func WithIgnore(patterns ...string) Option {
	return func(w *Watcher) { w.ignores = append(w.ignores, patterns...) }
}

// WithDebounce sets the quiet period before a rebuild starts.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithInterval also rebuilds every d, regardless of events.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New returns a watcher for the tree at root.
func New(root string, rebuild RebuildFunc, opts ...Option) *Watcher {
	w := &Watcher{
		root:     filepath.Clean(root),
		debounce: DefaultDebounce,
		rebuild:  rebuild,
		logger:   slog.Default(),
		req:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Trigger requests a rebuild after the debounce period.
func (w *Watcher) Trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.request)
}

func (w *Watcher) request() {
	select {
	case w.req <- struct{}{}:
	default:
	}
}

// Run watches until ctx is done. Rebuilds run one at a time on the calling
// goroutine; a failed rebuild is logged and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fw.Close() }()
	w.addDirsRecursive(fw, w.root)

	if w.interval > 0 {
		s, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create gocron scheduler: %w", err)
		}
		if _, err := s.NewJob(
			gocron.DurationJob(w.interval),
			gocron.NewTask(w.request),
			gocron.WithName("periodic-rebuild"),
		); err != nil {
			return fmt.Errorf("failed to create periodic rebuild job: %w", err)
		}
		s.Start()
		defer func() { _ = s.Shutdown() }()
	}

	w.logger.Info("Watching for changes", "root", w.root, "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logfields.Error(err))
		case <-w.req:
			start := time.Now()
			if err := w.rebuild(ctx); err != nil {
				w.logger.Error("Rebuild failed", logfields.Error(err))
				continue
			}
			w.logger.Debug("Rebuild finished", logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
		}
	}
}

func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) {
	if w.skipped(ev.Name) || w.ignored(ev.Name) || ShouldIgnore(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addDirsRecursive(fw, ev.Name)
		}
	}
	w.logger.Debug("File change detected", "path", ev.Name, "op", ev.Op.String())
	w.Trigger()
}

func (w *Watcher) skipped(path string) bool {
	path = filepath.Clean(path)
	for _, s := range w.skip {
		if path == s || strings.HasPrefix(path, s+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, p := range w.ignores {
		if ok, err := globs.Match(p, base); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if w.skipped(path) || (path != w.root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			w.logger.Warn("watch add failed", "dir", path, logfields.Error(err))
		}
		return nil
	})
}

// ShouldIgnore reports whether an event on path should not trigger a rebuild:
// hidden files and editor swap or backup files.
func ShouldIgnore(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	}
	return false
}
