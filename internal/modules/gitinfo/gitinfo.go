// Package gitinfo looks up the last commit touching each built page so
// templates can show when and by whom it was changed.
package gitinfo

import (
	"context"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Name is the module name used in `active_modules`.
const Name = "gitinfo"

const commitsKey = "commits"

// Commit is the subset of a commit exposed to templates.
type Commit struct {
	Hash    string
	Short   string
	Author  string
	Email   string
	When    time.Time
	Subject string
}

// Module is the gitinfo module.
type Module struct {
	builder *site.Builder
	repo    *git.Repository
	root    string
}

// New returns the gitinfo module.
func New() *Module { return &Module{} }

func (m *Module) Name() string { return Name }

// Setup opens the repository containing the project and registers the
// last_commit template function.
func (m *Module) Setup(b *site.Builder) error {
	repo, err := git.PlainOpenWithOptions(b.ProjectDir(), &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "gitinfo needs the project inside a git repository").
			WithSource(b.ProjectDir()).WithContext("module", Name).Fatal().Build()
	}
	wt, err := repo.Worktree()
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "gitinfo needs a non-bare repository").
			WithSource(b.ProjectDir()).WithContext("module", Name).Fatal().Build()
	}
	m.builder = b
	m.repo = repo
	m.root = wt.Filesystem.Root()

	events.Subscribe(b.Bus(), m.onPrepared)
	b.AddTemplateFunc("last_commit", m.LastCommit)
	return nil
}

func (m *Module) commits() map[string]*Commit {
	return site.Value(m.builder.Storage(Name), commitsKey, func() map[string]*Commit {
		return map[string]*Commit{}
	})
}

func (m *Module) onPrepared(_ context.Context, e site.FilePrepared) error {
	c := e.Context
	if !c.Config().GetBool("modules.gitinfo.enabled", true) {
		return nil
	}
	_, err := m.LastCommit(c)
	return err
}

// LastCommit returns the newest commit touching the page's source, or nil
// when the file was never committed.
func (m *Module) LastCommit(c *site.Context) (*Commit, error) {
	cache := m.commits()
	if commit, ok := cache[c.Source()]; ok {
		return commit, nil
	}
	commit, err := m.lookup(c.Document().FullSource())
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryModule, "cannot read git history").
			WithSource(c.Source()).WithContext("module", Name).Fatal().Build()
	}
	cache[c.Source()] = commit
	return commit, nil
}

func (m *Module) lookup(full string) (*Commit, error) {
	rel, err := filepath.Rel(m.root, full)
	if err != nil {
		return nil, err
	}
	rel = filepath.ToSlash(rel)
	if _, err := m.repo.Head(); err != nil {
		// no commits yet
		return nil, nil
	}
	iter, err := m.repo.Log(&git.LogOptions{FileName: &rel})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var found *object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if found == nil || c.Author.When.After(found.Author.When) {
			found = c
		}
		return nil
	})
	if err != nil || found == nil {
		return nil, err
	}
	hash := found.Hash.String()
	return &Commit{
		Hash:    hash,
		Short:   hash[:7],
		Author:  found.Author.Name,
		Email:   found.Author.Email,
		When:    found.Author.When,
		Subject: subject(found.Message),
	}, nil
}

func subject(msg string) string {
	for i, r := range msg {
		if r == '\n' {
			return msg[:i]
		}
	}
	return msg
}
