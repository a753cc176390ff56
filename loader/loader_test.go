package loader

import (
	"context"
	"io"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pakstream/metrics"
	"github.com/meigma/pakstream/vfs"
)

// memFS is an in-memory vfs.FileSystem.
type memFS struct {
	files fstest.MapFS
}

func newMemFS(files map[string]string) *memFS {
	m := &memFS{files: fstest.MapFS{}}
	for name, data := range files {
		m.files[name] = &fstest.MapFile{Data: []byte(data)}
	}
	return m
}

func (m *memFS) Stat(_ context.Context, name string) (fs.FileInfo, error) {
	return m.files.Stat(name)
}

func (m *memFS) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return m.files.Open(name)
}

func (m *memFS) OpenSource(context.Context, string) (vfs.ReadSource, error) {
	return nil, fs.ErrInvalid
}

func (m *memFS) FindFiles(context.Context, string, bool) ([]string, error) {
	return nil, nil
}

// collect is a Sink that records what it receives.
type collect struct {
	mu    sync.Mutex
	paths map[string]string
}

func (c *collect) Deliver(_ context.Context, path string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paths == nil {
		c.paths = make(map[string]string)
	}
	c.paths[path] = string(data)
	return nil
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("done was not called")
	}
}

func TestRequestAsyncLoad(t *testing.T) {
	t.Parallel()

	fsys := newMemFS(map[string]string{
		"Maps/a.umap":    "map",
		"Props/b.uasset": "prop",
	})
	sink := &collect{}
	l := New(WithSink(sink), WithWorkers(2))

	_, ok := l.LastResult()
	assert.False(t, ok)

	done := make(chan struct{})
	var calls atomic.Int32
	err := l.RequestAsyncLoad(context.Background(), fsys, []string{"Maps/a.umap", "Props/b.uasset"}, func() {
		calls.Add(1)
		close(done)
	})
	require.NoError(t, err)
	waitDone(t, done)
	l.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, map[string]string{"Maps/a.umap": "map", "Props/b.uasset": "prop"}, sink.paths)
	assert.False(t, l.Busy())

	res, ok := l.LastResult()
	require.True(t, ok)
	assert.Equal(t, 2, res.Requested)
	assert.Equal(t, 2, res.Loaded)
	assert.Equal(t, int64(7), res.Bytes)
	assert.Empty(t, res.Failed)
	require.NoError(t, res.Err)
}

func TestRequestAsyncLoadRecordsFailures(t *testing.T) {
	t.Parallel()

	fsys := newMemFS(map[string]string{"a.uasset": "a"})
	l := New()

	done := make(chan struct{})
	require.NoError(t, l.RequestAsyncLoad(context.Background(), fsys, []string{"a.uasset", "missing.uasset"}, func() { close(done) }))
	waitDone(t, done)
	l.Wait()

	res, ok := l.LastResult()
	require.True(t, ok)
	assert.Equal(t, 1, res.Loaded)
	assert.Equal(t, []string{"missing.uasset"}, res.Failed)
	require.ErrorIs(t, res.Err, fs.ErrNotExist)
}

func TestRequestAsyncLoadBusy(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	sink := SinkFunc(func(context.Context, string, []byte) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	fsys := newMemFS(map[string]string{"a.uasset": "a"})
	l := New(WithSink(sink))

	done := make(chan struct{})
	require.NoError(t, l.RequestAsyncLoad(context.Background(), fsys, []string{"a.uasset"}, func() { close(done) }))
	<-started
	assert.True(t, l.Busy())

	err := l.RequestAsyncLoad(context.Background(), fsys, []string{"a.uasset"}, func() {
		t.Error("rejected request must not call done")
	})
	require.ErrorIs(t, err, ErrBusy)

	close(release)
	waitDone(t, done)
	l.Wait()
}

func TestRequestAsyncLoadNoFileSystem(t *testing.T) {
	t.Parallel()

	err := New().RequestAsyncLoad(context.Background(), nil, nil, nil)
	require.ErrorIs(t, err, ErrNoFileSystem)
}

func TestRequestAsyncLoadEmpty(t *testing.T) {
	t.Parallel()

	l := New()
	done := make(chan struct{})
	require.NoError(t, l.RequestAsyncLoad(context.Background(), newMemFS(nil), nil, func() { close(done) }))
	waitDone(t, done)
	l.Wait()

	res, ok := l.LastResult()
	require.True(t, ok)
	assert.Zero(t, res.Requested)
	require.NoError(t, res.Err)
}

func TestDoneMayStartNextRequest(t *testing.T) {
	t.Parallel()

	fsys := newMemFS(map[string]string{"a.uasset": "a"})
	l := New()

	second := make(chan error, 1)
	finished := make(chan struct{})
	require.NoError(t, l.RequestAsyncLoad(context.Background(), fsys, []string{"a.uasset"}, func() {
		second <- l.RequestAsyncLoad(context.Background(), fsys, []string{"a.uasset"}, func() { close(finished) })
	}))
	require.NoError(t, <-second)
	waitDone(t, finished)
	l.Wait()
}

func TestWorkerLimit(t *testing.T) {
	t.Parallel()

	files := make(map[string]string)
	var assets []string
	for _, c := range "abcdefghij" {
		name := string(c) + ".uasset"
		files[name] = name
		assets = append(assets, name)
	}

	var active, peak atomic.Int32
	sink := SinkFunc(func(context.Context, string, []byte) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	})

	l := New(WithSink(sink), WithWorkers(3))
	done := make(chan struct{})
	require.NoError(t, l.RequestAsyncLoad(context.Background(), newMemFS(files), assets, func() { close(done) }))
	waitDone(t, done)
	l.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
	res, _ := l.LastResult()
	assert.Equal(t, 10, res.Loaded)
}

func TestMemoryBudget(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"a.uasset": strings.Repeat("a", 60),
		"b.uasset": strings.Repeat("b", 60),
		"c.uasset": strings.Repeat("c", 200),
	}

	var held, peak atomic.Int64
	sink := SinkFunc(func(_ context.Context, _ string, data []byte) error {
		n := held.Add(int64(min(len(data), 100)))
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		held.Add(-int64(min(len(data), 100)))
		return nil
	})

	l := New(WithSink(sink), WithWorkers(3), WithMemoryBudget(100))
	done := make(chan struct{})
	require.NoError(t, l.RequestAsyncLoad(context.Background(), newMemFS(files), []string{"a.uasset", "b.uasset", "c.uasset"}, func() { close(done) }))
	waitDone(t, done)
	l.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(100))
	res, _ := l.LastResult()
	assert.Equal(t, 3, res.Loaded)
}

func TestProgressAndMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var mu sync.Mutex
	var seen []int
	l := New(
		WithMetrics(m),
		WithWorkers(1),
		WithProgress(func(done, total int, _ string) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 3, total)
			seen = append(seen, done)
		}),
	)

	fsys := newMemFS(map[string]string{"a.uasset": "aa", "b.uasset": "bbb"})
	done := make(chan struct{})
	require.NoError(t, l.RequestAsyncLoad(context.Background(), fsys, []string{"a.uasset", "b.uasset", "c.uasset"}, func() { close(done) }))
	waitDone(t, done)
	l.Wait()

	assert.Equal(t, []int{1, 2, 3}, seen)
	expected := `
# HELP pakstream_asset_bytes_total Uncompressed asset bytes delivered by the loader
# TYPE pakstream_asset_bytes_total counter
pakstream_asset_bytes_total 5
# HELP pakstream_asset_load_errors_total Assets the loader failed to read
# TYPE pakstream_asset_load_errors_total counter
pakstream_asset_load_errors_total 1
# HELP pakstream_assets_loaded_total Assets read and verified by the loader
# TYPE pakstream_assets_loaded_total counter
pakstream_assets_loaded_total 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"pakstream_assets_loaded_total",
		"pakstream_asset_load_errors_total",
		"pakstream_asset_bytes_total",
	))
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := New()
	done := make(chan struct{})
	require.NoError(t, l.RequestAsyncLoad(ctx, newMemFS(map[string]string{"a.uasset": "a"}), []string{"a.uasset"}, func() { close(done) }))
	waitDone(t, done)
	l.Wait()

	res, _ := l.LastResult()
	assert.Equal(t, []string{"a.uasset"}, res.Failed)
	require.ErrorIs(t, res.Err, context.Canceled)
}
