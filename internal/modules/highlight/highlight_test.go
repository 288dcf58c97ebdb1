package highlight

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/chroma/v2/styles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/program"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	helpers "git.home.luguber.info/inful/sitebuilder/internal/testutil/testutils"
)

func newBuilder(t *testing.T, dir, yml string) (*site.Builder, error) {
	t.Helper()
	layer, err := config.ParseLayer("config.yml", []byte("active_modules: [highlight]\n"+yml))
	require.NoError(t, err)
	root, err := config.NewRoot(filepath.Join(dir, config.FileName), layer, nil)
	require.NoError(t, err)
	return site.New(dir, root,
		site.WithOutput(&bytes.Buffer{}),
		site.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		site.WithModules(New()))
}

func TestCodeBlocksAreHighlighted(t *testing.T) {
	dir := t.TempDir()
	helpers.WriteTree(t, dir, map[string]string{
		"post.md": "---\ntitle: Post\n---\n\nIntro\n\n.. code-block:: python\n\n    def f():\n\n        return 1 < 2\n\nAfter\n",
		"raw.md":  "---\ntitle: Raw\n---\n\n.. sourcecode:: no-such-language\n\n    <b>plain</b>\n",
	})

	b, err := newBuilder(t, dir, "")
	require.NoError(t, err)
	_, err = b.Run(context.Background())
	require.NoError(t, err)

	out := filepath.Join(dir, site.DefaultOutputFolder)
	fa := helpers.NewFileAssertions(t, out)
	fa.AssertFileContains("post/index.html", `class="chroma"`).
		AssertFileContains("post/index.html", `<link rel="stylesheet" href="/static/_highlight.css" type="text/css">`).
		AssertFileContains("post/index.html", "<p>After</p>").
		AssertFileContains("raw/index.html", "&lt;b&gt;plain&lt;/b&gt;").
		AssertFileExists("static/_highlight.css").
		AssertFileContains("static/_highlight.css", ".chroma")

	page, err := os.ReadFile(filepath.Join(out, "post", "index.html"))
	require.NoError(t, err)
	assert.NotContains(t, string(page), "code-block")
	assert.NotContains(t, string(page), "1 < 2")
}

func TestMissingLanguageIsConfigError(t *testing.T) {
	dir := t.TempDir()
	helpers.WriteTree(t, dir, map[string]string{
		"post.md": "---\ntitle: Post\n---\n\n.. code-block::\n\n    x\n",
	})

	b, err := newBuilder(t, dir, "")
	require.NoError(t, err)
	_, err = b.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.Equal(t, "post.md", errors.SourceOf(err))
}

func TestUnknownStyle(t *testing.T) {
	_, err := newBuilder(t, t.TempDir(), "modules:\n  highlight:\n    style: nope\n")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestLineNumbers(t *testing.T) {
	m := &Module{style: styles.Get(DefaultStyle)}
	html, err := m.codeBlock(context.Background(), program.Directive{
		Name:     "code-block",
		Argument: "go",
		Options:  map[string]string{"linenos": "table"},
		Content:  "a := 1\nb := 2",
	})
	require.NoError(t, err)
	assert.Contains(t, string(html), "<table")
	assert.Contains(t, string(html), `class="lnt"`)
}
