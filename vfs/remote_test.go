package vfs_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pakstream/pak"
	"github.com/meigma/pakstream/pak/paktest"
	"github.com/meigma/pakstream/server"
	"github.com/meigma/pakstream/vfs"
)

// newHost starts a file host over a temporary directory holding files and
// one archive at Engine/Content/Level01.pak.
func newHost(t *testing.T, files map[string]string) (*httptest.Server, string) {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Engine", "Content"), 0o755))
	paktest.WriteFile(t, filepath.Join(root, "Engine", "Content"), "Level01.pak", map[string][]byte{
		"Maps/Level01.umap": []byte("map data"),
		"Props/Tree.uasset": []byte(strings.Repeat("tree", 512)),
	})

	s, err := server.New(context.Background(), root)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, strings.TrimPrefix(ts.URL, "http://")
}

func newRemote(t *testing.T, host string) *vfs.RemoteProvider {
	t.Helper()
	p := vfs.NewRemoteProvider(host)
	require.NoError(t, p.Initialize(context.Background(), ""))
	return p
}

func TestRemoteInitialize(t *testing.T) {
	t.Parallel()

	_, host := newHost(t, nil)
	p := newRemote(t, host)
	assert.Equal(t, "remote", p.Name())
	assert.Equal(t, "http://"+host, p.BaseURL())
}

func TestRemoteInitializeOverride(t *testing.T) {
	t.Parallel()

	_, host := newHost(t, nil)
	p := vfs.NewRemoteProvider("127.0.0.1:1")
	require.NoError(t, p.Initialize(context.Background(), "-FileHostIP="+host))
	assert.Equal(t, "http://"+host, p.BaseURL())
}

func TestRemoteInitializeUnavailable(t *testing.T) {
	t.Parallel()

	down := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(down.Close)

	tests := []struct {
		name string
		host string
	}{
		{name: "empty", host: ""},
		{name: "bad scheme", host: "ftp://example.com"},
		{name: "unhealthy", host: down.URL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := vfs.NewRemoteProvider(tt.host)
			err := p.Initialize(context.Background(), "")
			require.ErrorIs(t, err, vfs.ErrProviderUnavailable)
			assert.Empty(t, p.BaseURL())
		})
	}
}

func TestRemoteNotInitialized(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := vfs.NewRemoteProvider("127.0.0.1:1")
	_, err := p.Stat(ctx, "a")
	require.ErrorIs(t, err, vfs.ErrNotInitialized)
	_, err = p.Open(ctx, "a")
	require.ErrorIs(t, err, vfs.ErrNotInitialized)
	_, err = p.OpenSource(ctx, "a")
	require.ErrorIs(t, err, vfs.ErrNotInitialized)
	_, err = p.FindFiles(ctx, "a", true)
	require.ErrorIs(t, err, vfs.ErrNotInitialized)
}

func TestRemoteStatAndOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, host := newHost(t, map[string]string{"Config/Game.ini": "[Game]\nName=Demo\n"})
	p := newRemote(t, host)

	info, err := p.Stat(ctx, "/Config/Game.ini")
	require.NoError(t, err)
	assert.Equal(t, "Game.ini", info.Name())
	assert.Equal(t, int64(17), info.Size())
	assert.False(t, info.IsDir())

	rc, err := p.Open(ctx, "Config/Game.ini")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "[Game]\nName=Demo\n", string(data))

	_, err = p.Stat(ctx, "Config/Missing.ini")
	assert.True(t, vfs.IsNotExist(err))
	_, err = p.Open(ctx, "Config/Missing.ini")
	assert.True(t, vfs.IsNotExist(err))

	assert.True(t, vfs.FileExists(ctx, p, "Engine/Content/Level01.pak"))
	assert.False(t, vfs.FileExists(ctx, p, "Engine/Content/Level02.pak"))
}

func TestRemoteFindFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, host := newHost(t, map[string]string{
		"Engine/Content/Sub/a.uasset": "a",
		"Engine/Other.txt":            "o",
	})
	p := newRemote(t, host)

	files, err := p.FindFiles(ctx, "Engine/Content", true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Engine/Content/Level01.pak", "Engine/Content/Sub/a.uasset"}, files)

	files, err = p.FindFiles(ctx, "Engine/Content", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Engine/Content/Level01.pak"}, files)

	files, err = p.FindFiles(ctx, "Missing", true)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRemoteArchiveOverRanges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, host := newHost(t, nil)
	p := newRemote(t, host)

	src, err := p.OpenSource(ctx, "Engine/Content/Level01.pak")
	require.NoError(t, err)
	defer src.Close()

	archive, err := pak.Open(src, pak.WithMountPoint("Engine/Content"))
	require.NoError(t, err)
	defer archive.Close()

	assert.Equal(t, 2, archive.Len())
	data, err := archive.ReadFile("Props/Tree.uasset")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("tree", 512), string(data))

	assert.Equal(t,
		[]string{"Engine/Content/Maps/Level01.umap", "Engine/Content/Props/Tree.uasset"},
		archive.FindFiles("Engine/Content", true),
	)
}

func TestRemoteMountLayer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, host := newHost(t, map[string]string{"Engine/Content/Loose.uasset": "loose"})

	layer := vfs.NewMountLayer()
	require.NoError(t, layer.Initialize(ctx, vfs.NewRemoteProvider(host), ""))
	assert.Equal(t, "remote", layer.Name())

	src, err := layer.OpenSource(ctx, "Engine/Content/Level01.pak")
	require.NoError(t, err)
	archive, err := pak.Open(src, pak.WithMountPoint("Engine/Content"))
	require.NoError(t, err)
	require.NoError(t, layer.Mount("Level01.pak", archive, 0))

	files, err := layer.FindFiles(ctx, "Engine/Content", true)
	require.NoError(t, err)
	assert.Contains(t, files, "Engine/Content/Maps/Level01.umap")
	assert.Contains(t, files, "Engine/Content/Loose.uasset")

	rc, err := layer.Open(ctx, "Engine/Content/Maps/Level01.umap")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "map data", string(data))
}

func TestRemoteStatSharedRequestOutlivesCaller(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 4)
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == vfs.HealthPath:
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodHead && r.URL.Path == "/files/Maps/slow.umap":
			started <- struct{}{}
			<-release
			w.Header().Set("Content-Length", "42")
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	unblock := sync.OnceFunc(func() { close(release) })
	t.Cleanup(unblock)

	p := newRemote(t, strings.TrimPrefix(ts.URL, "http://"))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := p.Stat(ctx, "Maps/slow.umap")
		first <- err
	}()
	<-started

	type statResult struct {
		size int64
		err  error
	}
	second := make(chan statResult, 1)
	go func() {
		info, err := p.Stat(context.Background(), "Maps/slow.umap")
		if err != nil {
			second <- statResult{err: err}
			return
		}
		second <- statResult{size: info.Size()}
	}()

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	unblock()
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, int64(42), res.size)
}
