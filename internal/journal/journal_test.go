package journal

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
	helpers "git.home.luguber.info/inful/sitebuilder/internal/testutil/testutils"
)

func newBuilder(t *testing.T, dir string) *site.Builder {
	t.Helper()
	root, err := config.NewRoot(filepath.Join(dir, config.FileName), config.NewLayer(), nil)
	require.NoError(t, err)
	b, err := site.New(dir, root,
		site.WithOutput(&bytes.Buffer{}),
		site.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return b
}

func TestJournalRecordsPasses(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"page.md":  "---\ntitle: Page\n---\n\nbody\n",
		"logo.png": "png",
	})
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	b := newBuilder(t, dir)
	j.Attach(b)

	ctx := context.Background()
	first, err := b.Run(ctx)
	require.NoError(t, err)
	second, err := b.Run(ctx)
	require.NoError(t, err)

	passes, err := j.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.Equal(t, second.BuildID, passes[0].BuildID)
	assert.Equal(t, StatusFinished, passes[0].Status)
	assert.Equal(t, 0, passes[0].Built)
	assert.Equal(t, 2, passes[1].Built)
	assert.False(t, passes[1].FinishedAt.IsZero())

	files, err := j.Files(ctx, first.BuildID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "logo.png", files[0].Source)
	assert.Empty(t, files[0].Fingerprint)
	assert.Equal(t, "page.md", files[1].Source)
	assert.Equal(t, "page/index.html", files[1].Destination)
	assert.Equal(t, "A", files[1].Marker)
	assert.NotEmpty(t, files[1].Fingerprint)
}

func TestMarkFailed(t *testing.T) {
	j, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	require.NoError(t, j.begin(ctx, "build-1", "/project"))
	require.NoError(t, j.MarkFailed(ctx, "build-1", stderrors.New("boom")))

	passes, err := j.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, StatusFailed, passes[0].Status)
	assert.Equal(t, "boom", passes[0].Error)
}

func TestFingerprintTracksContent(t *testing.T) {
	dir := helpers.WriteTree(t, t.TempDir(), map[string]string{
		"a.md": "---\ntitle: Same\n---\n\nbody\n",
		"b.md": "---\ntitle: Same\n---\n\nbody\n",
		"c.md": "---\ntitle: Same\n---\n\nother\n",
	})
	j, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = j.Close() }()
	b := newBuilder(t, dir)
	j.Attach(b)

	res, err := b.Run(context.Background())
	require.NoError(t, err)
	files, err := j.Files(context.Background(), res.BuildID)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, files[0].Fingerprint, files[1].Fingerprint)
	assert.NotEqual(t, files[0].Fingerprint, files[2].Fingerprint)
}
