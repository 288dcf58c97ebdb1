package site

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/globs"
)

// DefaultIgnores apply when no configuration level declares `ignore_files`.
var DefaultIgnores = []string{".*", "_*", "*.yml", "Makefile", "README", "*.conf"}

// FilterFiles returns the names that survive patterns. The first pattern
// matching a name decides: `!pattern` keeps it, any other pattern drops it.
// Names no pattern matches are kept.
func FilterFiles(names, patterns []string) ([]string, error) {
	var kept []string
	for _, name := range names {
		keep := true
		for _, p := range patterns {
			negated := strings.HasPrefix(p, "!")
			ok, err := globs.Match(strings.TrimPrefix(p, "!"), name)
			if err != nil {
				return nil, errors.ConfigError("invalid ignore pattern").
					WithContext("pattern", p).WithCause(err).Build()
			}
			if ok {
				keep = negated
				break
			}
		}
		if keep {
			kept = append(kept, name)
		}
	}
	return kept, nil
}

func ignorePatterns(node *config.Node) []string {
	patterns, declared := node.MergedGet("ignore_files")
	if !declared {
		return DefaultIgnores
	}
	return patterns
}

// walk visits every non-ignored file depth first, subdirectories before the
// files beside them, and hands each one's Context to fn.
func (b *Builder) walk(fn func(*Context) error) error {
	var gi *ignore.GitIgnore
	if b.config.Root().GetBool(respectGitignoreKey, false) {
		if compiled, err := ignore.CompileIgnoreFile(filepath.Join(b.projectDir, ".gitignore")); err == nil {
			gi = compiled
		}
	}
	return b.walkDir(b.config, "", gi, fn)
}

func (b *Builder) walkDir(node *config.Node, rel string, gi *ignore.GitIgnore, fn func(*Context) error) error {
	abs := filepath.Join(b.projectDir, filepath.FromSlash(rel))
	entries, err := os.ReadDir(abs)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "cannot read directory").
			WithSource(abs).Fatal().Build()
	}

	var dirs, files []string
	for _, e := range entries {
		child := filepath.Join(abs, e.Name())
		if child == b.outputDir {
			continue
		}
		if gi != nil && gi.MatchesPath(path.Join(rel, e.Name())) {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	patterns := ignorePatterns(node)
	if dirs, err = FilterFiles(dirs, patterns); err != nil {
		return err
	}
	if files, err = FilterFiles(files, patterns); err != nil {
		return err
	}

	for _, d := range dirs {
		sub := node
		cfgPath := filepath.Join(abs, d, config.FileName)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			if sub, err = node.AddFromFile(cfgPath); err != nil {
				return err
			}
			if err := b.registry.Validate(sub); err != nil {
				return err
			}
		}
		if err := b.walkDir(sub, path.Join(rel, d), gi, fn); err != nil {
			return err
		}
	}

	for _, f := range files {
		ctx, err := newContext(b, node, path.Join(rel, f))
		if err != nil {
			return err
		}
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}
