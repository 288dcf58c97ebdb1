package site

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/routing"
	helpers "git.home.luguber.info/inful/sitebuilder/internal/testutil/testutils"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBuilder(t *testing.T, dir, yml string, opts ...Option) (*Builder, *bytes.Buffer) {
	t.Helper()
	layer, err := config.ParseLayer("config.yml", []byte(yml))
	require.NoError(t, err)
	root, err := config.NewRoot(filepath.Join(dir, config.FileName), layer, nil)
	require.NoError(t, err)
	var out bytes.Buffer
	base := []Option{WithOutput(&out), WithLogger(quietLogger())}
	b, err := New(dir, root, append(base, opts...)...)
	require.NoError(t, err)
	return b, &out
}

// collector records what it observes, the way an aggregation module would.
type collector struct {
	titles    []string
	published []string
	kept      []*Context
	events    []string
	finished  int
}

func (m *collector) Name() string { return "collector" }

func (m *collector) Setup(b *Builder) error {
	events.Subscribe(b.Bus(), func(_ context.Context, e FilePublished) error {
		m.titles = append(m.titles, e.Context.Title())
		m.published = append(m.published, e.Context.Source())
		m.kept = append(m.kept, e.Context)
		return nil
	})
	events.Subscribe(b.Bus(), func(_ context.Context, e FileEvent) error {
		m.events = append(m.events, e.File().Source()+":"+eventName(e))
		return nil
	})
	events.Subscribe(b.Bus(), func(_ context.Context, _ BuildFinishing) error {
		m.finished++
		return nil
	})
	return nil
}

func TestNeedsBuild(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"page.md": "---\ntitle: Page\n---\n\nbody\n",
	})
	b, _ := newBuilder(t, dir, "")

	past := time.Now().Add(-2 * time.Hour)
	helpers.SetMTime(t, dir, "page.md", past)

	c, err := newContext(b, b.Config(), "page.md")
	require.NoError(t, err)
	require.Equal(t, "page/index.html", c.Destination())

	// destination absent
	stale, err := c.NeedsBuild()
	require.NoError(t, err)
	assert.True(t, stale)
	assert.True(t, c.IsNew())

	// destination newer than source, no sidecar
	dst := c.FullDestination()
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o750))
	require.NoError(t, os.WriteFile(dst, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(dst, past.Add(time.Hour), past.Add(time.Hour)))
	stale, err = c.NeedsBuild()
	require.NoError(t, err)
	assert.False(t, stale)
	assert.False(t, c.IsNew())

	// sidecar newer than destination, source still older
	helpers.WriteTree(t, dir, map[string]string{"page.yml": "tags: [go]\n"})
	stale, err = c.NeedsBuild()
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestFilterFiles(t *testing.T) {
	names := []string{".git", "_build", "config.yml", "index.md", "keep.yml", "Makefile", "notes.txt"}

	kept, err := FilterFiles(names, DefaultIgnores)
	require.NoError(t, err)
	assert.Equal(t, []string{"index.md", "notes.txt"}, kept)

	kept, err = FilterFiles(names, []string{"!keep.yml", "*.yml", "*.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{".git", "_build", "index.md", "keep.yml", "Makefile"}, kept)

	// first match decides, so a later negation cannot rescue
	kept, err = FilterFiles([]string{"a.txt"}, []string{"*.txt", "!a.txt"})
	require.NoError(t, err)
	assert.Empty(t, kept)
}

func TestIgnorePatternsMergeAcrossDirectories(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"root.bak":       "x",
		"root.txt":       "x",
		"sub/config.yml": "ignore_files: ['*.tmp']\n",
		"sub/a.bak":      "x",
		"sub/a.tmp":      "x",
		"sub/a.txt":      "x",
	})
	b, _ := newBuilder(t, dir, "ignore_files: ['*.bak', '.*', '_*', '*.yml']\n")

	var seen []string
	require.NoError(t, b.walk(func(c *Context) error {
		seen = append(seen, c.Source())
		return nil
	}))
	assert.Equal(t, []string{"sub/a.txt", "root.txt"}, seen)
}

func TestOnlyStaleFilesArePublished(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"a.md": "---\ntitle: A\n---\n\na\n",
		"b.md": "---\ntitle: B\n---\n\nb\n",
	})
	past := time.Now().Add(-time.Hour)
	helpers.SetMTime(t, dir, "b.md", past)
	helpers.WriteTree(t, dir, map[string]string{"_build/b/index.html": "old"})

	mod := &collector{}
	b, out := newBuilder(t, dir, "active_modules: [collector]\n", WithModules(mod))

	res, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, mod.published)
	assert.Equal(t, 2, res.Visited)
	assert.Equal(t, 1, res.UpToDate)
	assert.Equal(t, "A a.md\n", out.String())
	assert.Equal(t, 1, mod.finished)
}

func TestEndToEndBuildAndRerun(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"2020/01/01/post.md": "---\ntitle: Hi\n---\n\nHello *world*.\n",
		"README":             "not part of the site",
	})
	mod := &collector{}
	b, out := newBuilder(t, dir, "active_modules: [collector]\n", WithModules(mod))

	_, err := b.Run(context.Background())
	require.NoError(t, err)

	fa := helpers.NewFileAssertions(t, filepath.Join(dir, DefaultOutputFolder))
	fa.AssertFileExists("2020/01/01/post/index.html").
		AssertFileContains("2020/01/01/post/index.html", "<h1>Hi</h1>").
		AssertFileContains("2020/01/01/post/index.html", "<em>world</em>").
		AssertFileNotExists("README")
	assert.Equal(t, []string{"Hi"}, mod.titles)
	assert.Equal(t, "A 2020/01/01/post.md\n", out.String())

	out.Reset()
	mod.titles = nil
	res, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Empty(t, res.Built)
	assert.Empty(t, mod.titles)
}

func TestEventOrderPerFile(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"a.md":     "---\ntitle: A\npublic: false\n---\n\na\n",
		"sub/b.md": "---\ntitle: B\n---\n\nb\n",
	})
	mod := &collector{}
	b, _ := newBuilder(t, dir, "active_modules: [collector]\n", WithModules(mod))

	_, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"sub/b.md:FileProcessing",
		"sub/b.md:FilePrepared",
		"sub/b.md:FilePublished",
		"sub/b.md:FileBuilding",
		"sub/b.md:FileBuilt",
		"a.md:FileProcessing",
		"a.md:FilePrepared",
		"a.md:FileBuilding",
		"a.md:FileBuilt",
	}, mod.events)
}

func TestProgramFailsAfterPass(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"page.md": "---\ntitle: Page\n---\n\nbody\n",
	})
	mod := &collector{}
	b, _ := newBuilder(t, dir, "active_modules: [collector]\n", WithModules(mod))

	_, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, mod.kept, 1)

	_, err = mod.kept[0].RenderContents()
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryInternal))
}

func TestMalformedFrontMatterNamesFile(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"bad.md": "---\ntitle: [unclosed\n---\n\nbody\n",
	})
	b, out := newBuilder(t, dir, "")

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.Contains(t, errors.SourceOf(err), "bad.md")
	assert.Empty(t, out.String())
}

func TestSubscriberErrorAbortsPass(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"a.txt": "a",
		"b.txt": "b",
	})
	b, out := newBuilder(t, dir, "")
	events.Subscribe(b.Bus(), func(_ context.Context, e FileBuilt) error {
		return errors.ModuleError("boom").Build()
	})

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryModule))
	assert.Equal(t, "a.txt", errors.SourceOf(err))
	assert.Empty(t, out.String())
}

func TestPrefixAndDestinationOverride(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"posts/hello.md": "---\ntitle: Hello\ndestination_filename: hello.html\n---\n\nhi\n",
		"logo.png":       "png",
	})
	b, _ := newBuilder(t, dir, "canonical_url: https://example.com/site/\n")

	_, err := b.Run(context.Background())
	require.NoError(t, err)
	fa := helpers.NewFileAssertions(t, filepath.Join(dir, DefaultOutputFolder))
	fa.AssertFileExists("site/hello.html").AssertFileContains("site/logo.png", "png")

	url, err := b.LinkTo(RoutePage, map[string]any{"slug": "posts/hello"})
	require.NoError(t, err)
	assert.Equal(t, "/site/posts/hello", url)
	assert.Equal(t, "/site/static/app.css", b.StaticURL("app.css"))
}

func TestRegisterURLWithDefaults(t *testing.T) {
	b, _ := newBuilder(t, t.TempDir(), "canonical_url: https://example.com/site/\narchive_url: /archive/page/<int:page>/\n")
	require.NoError(t, b.RegisterURL("archive", "/blog/page/<int:page>/", "archive_url",
		routing.WithDefaults(map[string]any{"page": 1})))
	require.NoError(t, b.RegisterURL("plain", "/plain/<int:page>/", "",
		routing.WithDefaults(map[string]any{"page": 3})))

	url, err := b.LinkTo("archive", nil)
	require.NoError(t, err)
	assert.Equal(t, "/site/archive/page/1/", url)

	url, err = b.LinkTo("archive", map[string]any{"page": 2})
	require.NoError(t, err)
	assert.Equal(t, "/site/archive/page/2/", url)

	url, err = b.LinkTo("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "/site/plain/3/", url)
}

func TestDirectoryConfigSelectsProgram(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"raw/config.yml": "program: copy\n",
		"raw/page.md":    "# verbatim\n",
		"page.md":        "# rendered\n",
	})
	b, _ := newBuilder(t, dir, "")

	res, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Built, 2)
	assert.Equal(t, "copy", res.Built[0].Program)
	assert.Equal(t, "md", res.Built[1].Program)

	fa := helpers.NewFileAssertions(t, filepath.Join(dir, DefaultOutputFolder))
	fa.AssertFileContains("raw/page.md", "# verbatim").
		AssertFileContains("page/index.html", "rendered")
}

func TestUnknownModuleIsConfigError(t *testing.T) {
	layer, err := config.ParseLayer("config.yml", []byte("active_modules: [nope]\n"))
	require.NoError(t, err)
	root, err := config.NewRoot("config.yml", layer, nil)
	require.NoError(t, err)

	_, err = New(t.TempDir(), root, WithLogger(quietLogger()))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestStorageIsClearedEachPass(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{"a.txt": "a"})
	b, _ := newBuilder(t, dir, "")

	b.Storage("blog").Set("2020", 1)
	_, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, b.Storage("blog").Len())

	list := Value(b.Storage("tags"), "by_tag", func() map[string][]string { return map[string][]string{} })
	list["go"] = append(list["go"], "a")
	again := Value(b.Storage("tags"), "by_tag", func() map[string][]string { return nil })
	assert.Equal(t, []string{"a"}, again["go"])
}

func TestStaleDoesNotPublish(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{"a.md": "x\n", "b.txt": "b"})
	mod := &collector{}
	b, _ := newBuilder(t, dir, "active_modules: [collector]\n", WithModules(mod))

	stale, err := b.Stale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.txt"}, stale)
	assert.Empty(t, mod.events)

	_, err = b.Run(context.Background())
	require.NoError(t, err)
	needed, err := b.AnythingNeedsBuild(context.Background())
	require.NoError(t, err)
	assert.False(t, needed)
}

func TestForceRebuildsEverything(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{"a.txt": "a"})
	b, _ := newBuilder(t, dir, "")
	_, err := b.Run(context.Background())
	require.NoError(t, err)

	forced, out := newBuilder(t, dir, "", WithForce(true))
	res, err := forced.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Built, 1)
	assert.Equal(t, MarkerUpdated, res.Built[0].Marker)
	assert.Equal(t, "U a.txt\n", out.String())
}

func TestProjectTemplatesOverrideBuiltins(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"_templates/page.html": `{{define "body"}}<main>{{.page.fragment}}|{{.extra}}</main>{{end}}{{template "layout" .}}`,
		"page.md":              "---\ntitle: T\ntags: [go]\n---\n\ntext\n",
	})
	b, _ := newBuilder(t, dir, "")
	events.Subscribe(b.Bus(), func(_ context.Context, e TemplateRendering) error {
		e.Vars["extra"] = "from-subscriber"
		return nil
	})

	_, err := b.Run(context.Background())
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, DefaultOutputFolder, "page", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<main><p>text</p>")
	assert.Contains(t, string(data), "|from-subscriber</main>")
	assert.True(t, strings.HasPrefix(string(data), "<!doctype html>"))
}

func TestContextTagsAndStylesheets(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"blog/config.yml": "tags: [site]\n",
		"blog/post.md":    "---\ntags: [go, site]\n---\n\nx\n",
	})
	b, _ := newBuilder(t, dir, "")
	blog, err := b.Config().AddFromFile(filepath.Join(dir, "blog", "config.yml"))
	require.NoError(t, err)

	c, err := newContext(b, blog, "blog/post.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"site", "go"}, c.Tags())
	assert.True(t, c.IsText())
	assert.Equal(t, DefaultTitle, c.Title())

	c.AddStylesheet("code.css", "", "screen")
	require.Len(t, c.Links(), 1)
	assert.Equal(t, "/static/code.css", c.Links()[0].Href)
	assert.Equal(t, "text/css", c.Links()[0].Type)
}
