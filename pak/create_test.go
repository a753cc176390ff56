package pak_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pakstream/pak"
	"github.com/meigma/pakstream/pak/paktest"
)

func TestCreateSummary(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{
		"Maps/a.umap":     []byte(strings.Repeat("a", 4096)),
		"Movies/b.bk2":    []byte(strings.Repeat("b", 4096)),
		"Sounds/tiny.wem": []byte("t"),
	}
	var events []pak.ProgressEvent
	var buf bytes.Buffer
	summary, err := pak.Create(context.Background(), paktest.MapFS(files), &buf,
		pak.CreateWithCompression(pak.CompressionZstd),
		pak.CreateWithSkipCompression(pak.DefaultSkipCompression(0)),
		pak.CreateWithProgress(func(ev pak.ProgressEvent) { events = append(events, ev) }),
	)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Files)
	assert.Equal(t, 1, summary.Compressed)
	assert.False(t, summary.Signed)

	p, err := pak.Open(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, summary.IndexDigest, p.IndexDigest())
	dataDigest, ok := p.DataDigest()
	require.True(t, ok)
	assert.Equal(t, summary.DataDigest, dataDigest)
	assert.Equal(t, summary.DataSize, p.DataSize())

	e, ok := p.Entry("Movies/b.bk2")
	require.True(t, ok)
	assert.Equal(t, pak.CompressionNone, e.Compression)
	e, ok = p.Entry("Maps/a.umap")
	require.True(t, ok)
	assert.Equal(t, pak.CompressionZstd, e.Compression)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, pak.StageFinalizing, last.Stage)
	assert.Equal(t, 3, last.FilesTotal)
}

func TestCreateMaxFiles(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{"a": nil, "b": nil, "c": nil}
	var buf bytes.Buffer
	_, err := pak.Create(context.Background(), paktest.MapFS(files), &buf, pak.CreateWithMaxFiles(2))
	require.ErrorIs(t, err, pak.ErrTooManyFiles)

	_, err = pak.Create(context.Background(), paktest.MapFS(files), &buf, pak.CreateWithMaxFiles(-1))
	require.NoError(t, err)
}

func TestCreateCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	_, err := pak.Create(ctx, paktest.MapFS(map[string][]byte{"a": nil}), &buf)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCreateDirAndWriteFile(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "Maps"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Maps", "a.umap"), []byte("map"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.uasset"), []byte("asset"), 0o600))

	var buf bytes.Buffer
	summary, err := pak.CreateDir(context.Background(), src, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Files)

	out := filepath.Join(t.TempDir(), "nested", "Game.pak")
	_, err = pak.WriteFile(context.Background(), os.DirFS(src), out)
	require.NoError(t, err)

	p, err := pak.OpenFile(out)
	require.NoError(t, err)
	defer p.Close()

	got, err := p.ReadFile("Maps/a.umap")
	require.NoError(t, err)
	assert.Equal(t, []byte("map"), got)

	info, err := p.Stat("b.uasset")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(out), ".pak-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestOpenFileMissing(t *testing.T) {
	t.Parallel()

	_, err := pak.OpenFile(filepath.Join(t.TempDir(), "missing.pak"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
