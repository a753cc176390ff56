// Package loader reads streamed assets in the background.
//
// A Loader accepts one request at a time. Each request reads every asset
// through a vfs.FileSystem on a bounded pool of workers and hands the bytes
// to a Sink. Archive-backed reads are hash-verified by the pak package, so a
// delivered asset is known to match its archive entry.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/pakstream/metrics"
	"github.com/meigma/pakstream/vfs"
)

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 4

var (
	// ErrBusy is returned when a request is made while another is in flight.
	ErrBusy = errors.New("loader: request already in flight")

	// ErrNoFileSystem is returned when a request has no file system to read from.
	ErrNoFileSystem = errors.New("loader: no file system")
)

// Sink receives loaded assets. Deliver may be called from several
// goroutines at once; data is owned by the sink after the call.
type Sink interface {
	Deliver(ctx context.Context, path string, data []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, path string, data []byte) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, path string, data []byte) error {
	return f(ctx, path, data)
}

// Discard is a Sink that drops every asset.
var Discard Sink = SinkFunc(func(context.Context, string, []byte) error { return nil })

// ProgressFunc is called after each asset finishes, successfully or not.
type ProgressFunc func(done, total int, path string)

// Result describes a finished request.
type Result struct {
	Requested int
	Loaded    int
	Bytes     int64
	Failed    []string
	Duration  time.Duration

	// Err joins the per-asset errors, or is nil when every asset loaded.
	Err error
}

// Loader reads assets asynchronously with a bounded worker pool.
type Loader struct {
	workers  int
	budget   int64
	sink     Sink
	logger   *slog.Logger
	metrics  *metrics.Metrics
	progress ProgressFunc

	busy atomic.Bool
	wg   sync.WaitGroup

	mu      sync.Mutex
	last    Result
	hasLast bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithWorkers sets the number of concurrent reads. Values < 1 use
// DefaultWorkers.
func WithWorkers(n int) Option {
	return func(l *Loader) {
		l.workers = n
	}
}

// WithMemoryBudget caps the bytes held by in-flight reads. An asset larger
// than the budget is read alone. Zero disables the cap.
func WithMemoryBudget(bytes int64) Option {
	return func(l *Loader) {
		l.budget = bytes
	}
}

// WithSink sets where loaded assets go (default: Discard).
func WithSink(sink Sink) Option {
	return func(l *Loader) {
		l.sink = sink
	}
}

// WithLogger sets the logger for load operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithMetrics records per-asset outcomes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithProgress sets a callback invoked after each asset.
func WithProgress(fn ProgressFunc) Option {
	return func(l *Loader) {
		l.progress = fn
	}
}

// New returns a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.workers < 1 {
		l.workers = DefaultWorkers
	}
	if l.sink == nil {
		l.sink = Discard
	}
	return l
}

func (l *Loader) log() *slog.Logger {
	if l.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.logger
}

// RequestAsyncLoad starts reading assets from fsys and returns immediately.
//
// done is called exactly once, from the loader's goroutine, after every
// asset has been read or has failed. The loader accepts a new request
// before done runs, so done may start the next one. A request made while
// another is in flight fails with ErrBusy and done is not called.
//
// ctx bounds the reads; assets not yet started when it ends are recorded
// as failed.
func (l *Loader) RequestAsyncLoad(ctx context.Context, fsys vfs.FileSystem, assets []string, done func()) error {
	if fsys == nil {
		return ErrNoFileSystem
	}
	if !l.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}

	assets = slices.Clone(assets)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		res := l.load(ctx, fsys, assets)

		l.mu.Lock()
		l.last = res
		l.hasLast = true
		l.mu.Unlock()
		l.busy.Store(false)

		if done != nil {
			done()
		}
	}()
	return nil
}

// Busy reports whether a request is in flight.
func (l *Loader) Busy() bool {
	return l.busy.Load()
}

// Wait blocks until the in-flight request, if any, has called done.
func (l *Loader) Wait() {
	l.wg.Wait()
}

// LastResult returns the result of the most recent finished request.
func (l *Loader) LastResult() (Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, l.hasLast
}

func (l *Loader) load(ctx context.Context, fsys vfs.FileSystem, assets []string) Result {
	start := time.Now()
	l.log().Debug("asset load started", "assets", len(assets), "workers", l.workers)

	var budget *semaphore.Weighted
	if l.budget > 0 {
		budget = semaphore.NewWeighted(l.budget)
	}

	var (
		mu       sync.Mutex
		res      = Result{Requested: len(assets)}
		errs     []error
		finished atomic.Int64
	)

	var g errgroup.Group
	g.SetLimit(l.workers)
	for _, path := range assets {
		g.Go(func() error {
			n, err := l.loadOne(ctx, fsys, budget, path)
			l.metrics.RecordAssetLoad(n, err)

			mu.Lock()
			if err != nil {
				res.Failed = append(res.Failed, path)
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
			} else {
				res.Loaded++
				res.Bytes += n
			}
			mu.Unlock()

			if err != nil {
				l.log().Warn("asset load failed", "path", path, "error", err)
			}
			if l.progress != nil {
				l.progress(int(finished.Add(1)), len(assets), path)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers record their errors in res

	res.Err = errors.Join(errs...)
	res.Duration = time.Since(start)
	l.log().Info("asset load finished",
		"loaded", res.Loaded,
		"failed", len(res.Failed),
		"bytes", res.Bytes,
		"duration", res.Duration,
	)
	return res
}

func (l *Loader) loadOne(ctx context.Context, fsys vfs.FileSystem, budget *semaphore.Weighted, path string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if budget != nil {
		info, err := fsys.Stat(ctx, path)
		if err != nil {
			return 0, err
		}
		weight := min(max(info.Size(), 1), l.budget)
		if err := budget.Acquire(ctx, weight); err != nil {
			return 0, err
		}
		defer budget.Release(weight)
	}

	rc, err := fsys.Open(ctx, path)
	if err != nil {
		return 0, err
	}
	data, err := io.ReadAll(rc)
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}

	if err := l.sink.Deliver(ctx, path, data); err != nil {
		return 0, fmt.Errorf("deliver: %w", err)
	}
	return int64(len(data)), nil
}
