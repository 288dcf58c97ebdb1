package routing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

func TestBuildTagRoundTrip(t *testing.T) {
	r := New("", t.TempDir(), nil)
	require.NoError(t, r.Register("tag", "/tags/<tag>/"))

	got, err := r.Build("tag", map[string]any{"tag": "python"})
	require.NoError(t, err)
	assert.Equal(t, "/tags/python/", got)

	_, err = r.Build("tag", nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryRouting))
}

func TestBuildUnknownRoute(t *testing.T) {
	r := New("", "", nil)
	_, err := r.Build("nope", nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryRouting))
}

func TestConfigKeyOverridesPattern(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "modules.blog.archive_url" {
			return "/archive/", true
		}
		return "", false
	}
	r := New("", "", lookup)
	require.NoError(t, r.Register("blog_archive", "/blog/", WithConfigKey("modules.blog.archive_url")))
	require.NoError(t, r.Register("blog_feed", "/feed.atom", WithConfigKey("modules.blog.feed_url")))

	got, err := r.Build("blog_archive", nil)
	require.NoError(t, err)
	assert.Equal(t, "/archive/", got)

	got, err = r.Build("blog_feed", nil)
	require.NoError(t, err)
	assert.Equal(t, "/feed.atom", got)
}

func TestPrefixAndConverters(t *testing.T) {
	r := New(PrefixFromURL("https://example.com/site/"), "", nil)
	require.NoError(t, r.Register("year", "/blog/<int:year>/"))
	require.NoError(t, r.Register("page", "/<path:slug>"))

	got, err := r.Build("year", map[string]any{"year": 2020})
	require.NoError(t, err)
	assert.Equal(t, "/site/blog/2020/", got)

	_, err = r.Build("year", map[string]any{"year": "twenty"})
	require.Error(t, err)

	got, err = r.Build("page", map[string]any{"slug": "2020/01/01/hello world"})
	require.NoError(t, err)
	assert.Equal(t, "/site/2020/01/01/hello%20world", got)
}

func TestFirstSatisfiedRuleWins(t *testing.T) {
	r := New("", "", nil)
	require.NoError(t, r.Register("archive", "/blog/<int:year>/"))
	require.NoError(t, r.Register("archive", "/blog/"))

	got, err := r.Build("archive", nil)
	require.NoError(t, err)
	assert.Equal(t, "/blog/", got)

	got, err = r.Build("archive", map[string]any{"year": 2021})
	require.NoError(t, err)
	assert.Equal(t, "/blog/2021/", got)
}

func TestDefaultsFillParameters(t *testing.T) {
	r := New("", "", nil)
	require.NoError(t, r.Register("feed", "/<name>.atom", WithDefaults(map[string]any{"name": "feed"})))

	got, err := r.Build("feed", nil)
	require.NoError(t, err)
	assert.Equal(t, "/feed.atom", got)
}

func TestRegisterRejectsBadPatterns(t *testing.T) {
	r := New("", "", nil)
	assert.Error(t, r.Register("x", "no-slash"))
	assert.Error(t, r.Register("x", "/<float:v>/"))
	assert.Error(t, r.Register("x", "/<a>/<a>/"))
}

func TestResolveMatchesPattern(t *testing.T) {
	pattern := "/<int:year>/<int:month>/<int:day>/<path:extra>"

	values, ok := Resolve(pattern, "2020/01/02/post")
	require.True(t, ok)
	assert.Equal(t, 2020, values["year"])
	assert.Equal(t, 1, values["month"])
	assert.Equal(t, 2, values["day"])
	assert.Equal(t, "post", values["extra"])

	_, ok = Resolve(pattern, "about/me")
	assert.False(t, ok)

	_, ok = Resolve("broken", "anything")
	assert.False(t, ok)
}

func TestMatchStripsPrefix(t *testing.T) {
	r := New("/site", "", nil)
	require.NoError(t, r.Register("tag", "/tags/<tag>/"))

	name, values, ok := r.Match("/site/tags/go/")
	require.True(t, ok)
	assert.Equal(t, "tag", name)
	assert.Equal(t, "go", values["tag"])
}

func TestLinkFilename(t *testing.T) {
	out := t.TempDir()
	r := New("", out, nil)
	require.NoError(t, r.Register("tags", "/tags/"))
	require.NoError(t, r.Register("tagfeed", "/tags/<tag>/feed.atom"))
	require.NoError(t, r.Register("root", "/"))

	got, err := r.LinkFilename("tags", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "tags", "index.html"), got)

	got, err = r.LinkFilename("tagfeed", map[string]any{"tag": "c sharp"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "tags", "c sharp", "feed.atom"), got)

	got, err = r.LinkFilename("root", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "index.html"), got)
}

func TestOpenLinkFileCreatesDirectories(t *testing.T) {
	out := t.TempDir()
	r := New("", out, nil)
	require.NoError(t, r.Register("tag", "/tags/<tag>/"))

	for i := 0; i < 2; i++ {
		f, err := r.OpenLinkFile("tag", map[string]any{"tag": "go"})
		require.NoError(t, err)
		_, err = f.Write([]byte("ok"))
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	data, err := os.ReadFile(filepath.Join(out, "tags", "go", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}
