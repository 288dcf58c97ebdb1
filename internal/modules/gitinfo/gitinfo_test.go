package gitinfo

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	helpers "git.home.luguber.info/inful/sitebuilder/internal/testutil/testutils"
)

func newBuilder(t *testing.T, dir string, mod *Module) (*site.Builder, error) {
	t.Helper()
	layer, err := config.ParseLayer("config.yml", []byte("active_modules: [gitinfo]\n"))
	require.NoError(t, err)
	root, err := config.NewRoot(filepath.Join(dir, config.FileName), layer, nil)
	require.NoError(t, err)
	return site.New(dir, root,
		site.WithOutput(&bytes.Buffer{}),
		site.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		site.WithModules(mod))
}

func TestLastCommitInTemplates(t *testing.T) {
	_, w, dir := helpers.SetupTestGitRepo(t)
	first := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	helpers.CommitFile(t, w, dir, "post.md", "---\ntitle: Post\n---\n\nv1\n", "Add post", first)
	last := helpers.CommitFile(t, w, dir, "post.md", "---\ntitle: Post\n---\n\nv2\n", "Fix typo\n\nlonger body", first.Add(24*time.Hour))
	helpers.CommitFile(t, w, dir, "other.md", "---\ntitle: Other\n---\n\nother\n", "Add other", first.Add(48*time.Hour))
	helpers.WriteTree(t, dir, map[string]string{
		"_templates/page.html": `{{define "body"}}{{with last_commit .ctx}}{{.Short}}|{{.Author}}|{{.Subject}}|{{format_date .When}}{{else}}uncommitted{{end}}{{end}}{{template "layout" .}}`,
		"draft.md":             "---\ntitle: Draft\n---\n\nnot committed\n",
	})

	mod := New()
	b, err := newBuilder(t, dir, mod)
	require.NoError(t, err)
	_, err = b.Run(context.Background())
	require.NoError(t, err)

	fa := helpers.NewFileAssertions(t, filepath.Join(dir, site.DefaultOutputFolder))
	fa.AssertFileContains("post/index.html", last.String()[:7]+"|Test Author|Fix typo|May 2, 2023").
		AssertFileContains("draft/index.html", "uncommitted")

	commits := mod.commits()
	require.Contains(t, commits, "post.md")
	assert.Equal(t, last.String(), commits["post.md"].Hash)
	assert.Nil(t, commits["draft.md"])
}

func TestSetupOutsideRepository(t *testing.T) {
	_, err := newBuilder(t, t.TempDir(), New())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "one", subject("one\ntwo"))
	assert.Equal(t, "single", subject("single"))
}
