package site

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// Build markers printed for each built file.
const (
	MarkerAdded   = "A"
	MarkerUpdated = "U"
)

// BuiltFile describes one file written during a pass.
type BuiltFile struct {
	Source      string
	Destination string
	Program     string
	Marker      string
	Duration    time.Duration
}

// Result summarizes a build pass.
type Result struct {
	BuildID  string
	Visited  int
	UpToDate int
	Built    []BuiltFile
	Duration time.Duration
}

// Run executes one build pass. Module storage is cleared first; every stale
// file then goes through its full lifecycle before the next one is looked at,
// and BuildFinishing is published once after the walk. The first error aborts
// the pass.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{BuildID: uuid.NewString()}
	log := b.logger.With(logfields.BuildID(res.BuildID))
	log.Info("Build started", "project", b.projectDir, "output", b.outputDir)

	b.storage.Clear()
	var visited []*Context
	defer func() {
		for _, c := range visited {
			c.Release()
		}
	}()

	err := b.runPass(ctx, res, &visited)
	res.Duration = time.Since(start)
	b.recorder.ObserveBuildDuration(res.Duration)
	b.recorder.SetFilesVisited(res.Visited)
	if err != nil {
		b.recorder.IncBuildOutcome(metrics.OutcomeFailed)
		log.Error("Build failed", logfields.Error(err), logfields.Source(errors.SourceOf(err)))
		return res, err
	}
	b.recorder.IncBuildOutcome(metrics.OutcomeSuccess)
	log.Info("Build finished",
		"built", len(res.Built),
		"up_to_date", res.UpToDate,
		logfields.DurationMS(float64(res.Duration.Microseconds())/1000))
	return res, nil
}

func (b *Builder) runPass(ctx context.Context, res *Result, visited *[]*Context) error {
	if err := b.publish(ctx, BuildStarted{BuildID: res.BuildID, Builder: b}); err != nil {
		return err
	}

	err := b.walk(func(c *Context) error {
		*visited = append(*visited, c)
		res.Visited++
		if err := ctx.Err(); err != nil {
			return errors.WrapError(err, errors.CategoryRuntime, "build canceled").Build()
		}

		stale := b.force
		if !stale {
			var err error
			if stale, err = c.NeedsBuild(); err != nil {
				return err
			}
		}
		if !stale {
			res.UpToDate++
			b.recorder.IncFileResult(c.ProgramName(), metrics.ResultUpToDate)
			b.logger.Debug("Up to date", logfields.Source(c.Source()))
			return nil
		}

		marker := MarkerUpdated
		if c.IsNew() {
			marker = MarkerAdded
		}
		fileStart := time.Now()
		if err := b.buildFile(ctx, c, marker); err != nil {
			b.recorder.IncFileResult(c.ProgramName(), metrics.ResultFailed)
			b.logger.Error("Failed to process file", logfields.Source(c.Source()), logfields.Error(err))
			return withSource(err, c.Source())
		}
		d := time.Since(fileStart)
		b.recorder.ObserveFileDuration(c.ProgramName(), d)
		b.recorder.IncFileResult(c.ProgramName(), metrics.ResultBuilt)
		res.Built = append(res.Built, BuiltFile{
			Source:      c.Source(),
			Destination: c.Destination(),
			Program:     c.ProgramName(),
			Marker:      marker,
			Duration:    d,
		})
		_, _ = fmt.Fprintf(b.out, "%s %s\n", marker, c.Source())
		return nil
	})
	if err != nil {
		return err
	}

	return b.publish(ctx, BuildFinishing{BuildID: res.BuildID, Builder: b, Built: res.Built})
}

// buildFile drives one stale file through prepare and run, publishing the
// lifecycle events around each step.
func (b *Builder) buildFile(ctx context.Context, c *Context, marker string) error {
	if err := b.publish(ctx, FileProcessing{Context: c}); err != nil {
		return err
	}
	if !c.doc.Prepared() {
		if err := c.program.Prepare(ctx); err != nil {
			return err
		}
	}
	if err := b.publish(ctx, FilePrepared{Context: c}); err != nil {
		return err
	}
	if c.Public() {
		if err := b.publish(ctx, FilePublished{Context: c}); err != nil {
			return err
		}
	}
	if err := b.publish(ctx, FileBuilding{Context: c}); err != nil {
		return err
	}
	if err := c.program.Run(ctx); err != nil {
		return err
	}
	b.logger.Debug("Built",
		logfields.Source(c.Source()),
		logfields.Destination(c.Destination()),
		logfields.Program(c.ProgramName()))
	return b.publish(ctx, FileBuilt{Context: c, Marker: marker})
}

// Stale lists the sources a pass would rebuild. No events are published and
// no program runs.
func (b *Builder) Stale(ctx context.Context) ([]string, error) {
	var stale []string
	err := b.walk(func(c *Context) error {
		defer c.Release()
		if err := ctx.Err(); err != nil {
			return errors.WrapError(err, errors.CategoryRuntime, "status canceled").Build()
		}
		needs, err := c.NeedsBuild()
		if err != nil {
			return err
		}
		if needs || b.force {
			stale = append(stale, c.Source())
		}
		return nil
	})
	return stale, err
}

// AnythingNeedsBuild reports whether any file is stale.
func (b *Builder) AnythingNeedsBuild(ctx context.Context) (bool, error) {
	stale, err := b.Stale(ctx)
	return len(stale) > 0, err
}

// withSource attaches the failing file to err unless it already names one.
func withSource(err error, source string) error {
	if errors.SourceOf(err) != "" {
		return err
	}
	category := errors.CategoryBuild
	if errors.IsClassified(err) {
		category = errors.GetCategory(err)
	}
	return errors.WrapError(err, category, fmt.Sprintf("failed to process %s", source)).
		WithSource(source).Fatal().Build()
}
