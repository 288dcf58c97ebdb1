package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

func mustLayer(t *testing.T, yml string) *Layer {
	t.Helper()
	l, err := ParseLayer("test.yml", []byte(yml))
	require.NoError(t, err)
	return l
}

func mustRoot(t *testing.T, yml string) *Node {
	t.Helper()
	n, err := NewRoot("config.yml", mustLayer(t, yml), nil)
	require.NoError(t, err)
	return n
}

func TestLocalGetNeverSeesAncestors(t *testing.T) {
	root := mustRoot(t, "title: Root\nauthor: Someone\n")
	child, err := root.Child("sub/config.yml", mustLayer(t, "title: Child\n"))
	require.NoError(t, err)

	_, ok := child.LocalGet("author")
	assert.False(t, ok, "author exists only on the root")

	v, ok := child.LocalGet("title")
	require.True(t, ok)
	assert.Equal(t, "Child", v)
}

func TestGetNearestWins(t *testing.T) {
	root := mustRoot(t, "title: Root\nauthor: Someone\n")
	child, err := root.Child("sub", mustLayer(t, "title: Child\n"))
	require.NoError(t, err)

	assert.Equal(t, "Child", child.GetString("title", ""))
	assert.Equal(t, "Someone", child.GetString("author", ""))
	assert.Equal(t, "fallback", child.GetString("missing", "fallback"))
}

func TestRootGetIsSameFromAnyDescendant(t *testing.T) {
	root := mustRoot(t, "canonical_url: https://example.com/\n")
	a, err := root.Child("a", mustLayer(t, "canonical_url: https://a.example.com/\n"))
	require.NoError(t, err)
	b, err := a.Child("a/b", nil)
	require.NoError(t, err)

	for _, n := range []*Node{root, a, b} {
		v, ok := n.RootGet("canonical_url")
		require.True(t, ok)
		assert.Equal(t, "https://example.com/", v)
	}
	assert.Same(t, root, b.Root())
}

func TestMergedGetAncestorToDescendant(t *testing.T) {
	root := mustRoot(t, "ignore_files: ['*.bak']\n")
	child, err := root.Child("sub", mustLayer(t, "ignore_files: ['*.tmp']\n"))
	require.NoError(t, err)

	merged, declared := child.MergedGet("ignore_files")
	assert.True(t, declared)
	assert.Equal(t, []string{"*.bak", "*.tmp"}, merged)

	rootOnly, _ := root.MergedGet("ignore_files")
	assert.Equal(t, []string{"*.bak"}, rootOnly)

	_, declared = child.MergedGet("tags")
	assert.False(t, declared)
}

func TestOverlayDoesNotLeakToSiblings(t *testing.T) {
	root := mustRoot(t, "title: Root\n")
	overlay, err := root.Overlay("a.md", mustLayer(t, "title: Page A\n"))
	require.NoError(t, err)
	sibling, err := root.Overlay("b.md", nil)
	require.NoError(t, err)

	assert.True(t, overlay.Transient())
	assert.Equal(t, "Page A", overlay.GetString("title", ""))
	assert.Equal(t, "Root", sibling.GetString("title", ""))
	assert.Equal(t, "Root", root.GetString("title", ""))
}

func TestListEntriesKeepsOrderAndOverrides(t *testing.T) {
	root := mustRoot(t, `
programs:
  "*.md": md
  "*.txt": copy
  "*.html": html
`)
	child, err := root.Child("sub", mustLayer(t, `
programs:
  "*.txt": md
  "*.scss": scss
`))
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Key: "*.md", Value: "md"},
		{Key: "*.txt", Value: "md"},
		{Key: "*.html", Value: "html"},
		{Key: "*.scss", Value: "scss"},
	}, child.ListEntries("programs"))
	assert.Empty(t, root.ListEntries("nothing"))
}

func TestSchemaCoercion(t *testing.T) {
	root := mustRoot(t, `
tags: python
public: false
day-order: 2
pub_date: 2020-01-02
feed:
  limit: 5
scss:
  command: sassc -t compact
`)
	assert.Equal(t, []string{"python"}, root.GetStrings("tags", nil))
	assert.False(t, root.GetBool("public", true))
	assert.Equal(t, 2, root.GetInt("day-order", 0))
	assert.Equal(t, 5, root.GetInt("feed.limit", 10))

	ts, ok := root.GetTime("pub_date")
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), ts)
}

func TestSchemaRejectsStructuralMismatch(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"bool as string", "public: maybe\n"},
		{"mapping expected", "feed: 10\n"},
		{"programs must be a mapping", "programs: [md]\n"},
		{"bad date", "pub_date: yesterday\n"},
		{"list of mappings", "tags:\n  - a: b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRoot("site/config.yml", mustLayer(t, tt.yml), nil)
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
			assert.Equal(t, "site/config.yml", errors.SourceOf(err))
		})
	}
}

func TestParseLayerRejectsNonMapping(t *testing.T) {
	_, err := ParseLayer("bad.yml", []byte("- a\n- b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yml")

	_, err = ParseLayer("broken.yml", []byte("title: [unclosed\n"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))

	empty, err := ParseLayer("empty.yml", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestAddFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("title: From File\n"), 0o600))

	root := mustRoot(t, "")
	child, err := root.AddFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "From File", child.GetString("title", ""))
	assert.Same(t, root, child.Parent())
	assert.Equal(t, path, child.Origin())
}

func TestLoadProjectExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SITEBUILDER_TEST_AUTHOR=Env Author\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("author: ${SITEBUILDER_TEST_AUTHOR}\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SITEBUILDER_TEST_AUTHOR") })

	root, err := LoadProject(dir)
	require.NoError(t, err)
	assert.Equal(t, "Env Author", root.GetString("author", ""))
}

func TestLoadProjectWithoutConfig(t *testing.T) {
	root, err := LoadProject(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, root.LocalKeys())
}
