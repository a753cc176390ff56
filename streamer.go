package pakstream

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meigma/pakstream/config"
	"github.com/meigma/pakstream/loader"
	"github.com/meigma/pakstream/metrics"
	"github.com/meigma/pakstream/pak"
	"github.com/meigma/pakstream/vfs"
)

// mountOrder is the priority streamed archives are mounted at.
const mountOrder = 0

// Loader reads the assets of a manifest in the background.
//
// RequestAsyncLoad returns once the request is accepted and calls done
// exactly once when every asset has been handled. A rejected request
// returns an error and never calls done.
type Loader interface {
	RequestAsyncLoad(ctx context.Context, fsys vfs.FileSystem, assets []string, done func()) error
}

// waiter is implemented by loaders that can wait for an in-flight request,
// such as *loader.Loader. Close uses it so no read outlives the mounts.
type waiter interface {
	Wait()
}

// Settings are the resolved streamer settings.
type Settings = config.Streamer

// Streamer runs asset streaming sessions, one at a time.
//
// The zero value is not usable; create Streamers with New. A Streamer is
// safe for concurrent use.
type Streamer struct {
	source      config.Source
	logger      *slog.Logger
	metrics     *metrics.Metrics
	normalize   Normalizer
	trustedKeys []ed25519.PublicKey
	client      *http.Client
	local       vfs.Provider
	remote      vfs.Provider

	initMu      sync.Mutex
	initialized atomic.Bool
	settings    Settings
	keys        []ed25519.PublicKey
	layer       *vfs.MountLayer

	gate gate

	mu        sync.Mutex
	loader    Loader
	session   uint64
	started   time.Time
	mode      Mode
	active    vfs.FileSystem
	manifest  Manifest
	listener  Listener
	mountName string
	cancel    context.CancelFunc
}

// New returns a Streamer. Call Initialize before streaming.
func New(opts ...Option) *Streamer {
	s := &Streamer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Streamer) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Initialize reads settings and builds the providers, the mount layer and
// the default loader. Calling it again after success does nothing.
func (s *Streamer) Initialize() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized.Load() {
		return nil
	}

	settings := config.ReadStreamer(s.source)
	if err := settings.Validate(); err != nil {
		s.log().Error("failed to initialize streamer", "error", err)
		return fmt.Errorf("pakstream: configuration: %w", err)
	}
	keys := slices.Clone(s.trustedKeys)
	if len(settings.TrustedKeys) > 0 {
		loaded, err := pak.LoadPublicKeys(settings.TrustedKeys...)
		if err != nil {
			s.log().Error("failed to load trusted keys", "error", err)
			return fmt.Errorf("pakstream: trusted keys: %w", err)
		}
		keys = append(keys, loaded...)
	}

	if s.local == nil {
		s.local = vfs.NewLocalProvider(settings.ContentDir, vfs.WithLocalLogger(s.logger))
	}
	if s.remote == nil {
		opts := []vfs.RemoteOption{vfs.WithRemoteLogger(s.logger)}
		if s.client != nil {
			opts = append(opts, vfs.WithRemoteClient(s.client))
		}
		s.remote = vfs.NewRemoteProvider(settings.ServerHost, opts...)
	}
	if s.layer == nil {
		s.layer = vfs.NewMountLayer(vfs.WithMountLogger(s.logger))
	}

	s.mu.Lock()
	if s.loader == nil {
		s.loader = loader.New(
			loader.WithWorkers(settings.LoaderWorkers),
			loader.WithLogger(s.logger),
			loader.WithMetrics(s.metrics),
		)
	}
	s.mu.Unlock()

	s.settings = settings
	s.keys = keys
	s.initialized.Store(true)
	s.log().Info("streamer initialized",
		"server_host", settings.ServerHost,
		"signed", settings.Signed,
		"content_dir", settings.ContentDir,
		"mount_point", settings.MountPoint,
		"trusted_keys", len(keys),
	)
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (s *Streamer) Initialized() bool {
	return s.initialized.Load()
}

// Settings returns the resolved settings. Before Initialize it returns
// what Initialize would resolve.
func (s *Streamer) Settings() Settings {
	if s.initialized.Load() {
		return s.settings
	}
	return config.ReadStreamer(s.source)
}

// RegisterLoader replaces the loader. A nil loader makes StreamPackage fail
// with ErrLoaderUnavailable.
func (s *Streamer) RegisterLoader(l Loader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loader = l
}

// ResolveLocalPath returns the local provider path of the archive name.
func (s *Streamer) ResolveLocalPath(name string) string {
	return name + s.Settings().PakExtension
}

// ResolveRemotePath returns the file host path of the archive name.
func (s *Streamer) ResolveRemotePath(name string) string {
	return name + s.Settings().PakExtension
}

// StreamPackage streams the archive name from the provider for mode.
//
// On success the archive is mounted, listener (which may be nil) has
// received the manifest and the loader is running; the session ends when
// the loader completes. cmdLine is forwarded to the provider's Initialize.
// Any error wraps one of the package's sentinel errors and leaves no
// session running.
func (s *Streamer) StreamPackage(ctx context.Context, name string, listener Listener, mode Mode, cmdLine string) error {
	if !s.initialized.Load() {
		s.log().Error("stream package called before initialize", "name", name)
		return ErrNotInitialized
	}
	if !s.gate.tryAcquire() {
		s.log().Warn("stream package rejected", "name", name, "reason", "stream in progress")
		s.metrics.RecordSession(mode.String(), result(ErrStreamInProgress))
		return ErrStreamInProgress
	}
	s.metrics.SetStreaming(true)

	s.mu.Lock()
	s.session++
	session := s.session
	s.started = time.Now()
	s.listener = nil
	s.manifest = nil
	s.mountName = ""
	s.mu.Unlock()

	log := s.log().With("name", name, "mode", mode.String())
	manifest, mounted, err := s.prepare(ctx, log, name, mode, cmdLine)
	if err == nil {
		err = s.start(ctx, log, session, manifest, mounted, listener)
	}
	if err != nil {
		s.abort(log, mode, err)
		return err
	}

	s.metrics.RecordSession(mode.String(), metrics.ResultOK)
	return nil
}

// prepare initializes the provider for mode, opens and mounts the archive
// and builds the manifest. It also returns the mounted path of every
// manifest entry.
func (s *Streamer) prepare(ctx context.Context, log *slog.Logger, name string, mode Mode, cmdLine string) (Manifest, []string, error) {
	inner, err := s.provider(mode)
	if err == nil {
		if ierr := s.layer.Initialize(ctx, inner, cmdLine); ierr != nil {
			err = fmt.Errorf("%w: %s provider: %w", ErrModeInitFailed, mode, ierr)
		}
	}
	if err != nil {
		// Archives from an earlier session must not outlive a failed switch.
		s.layer.UnmountAll()
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
		return nil, nil, err
	}

	s.mu.Lock()
	s.mode = mode
	s.active = s.layer
	s.mu.Unlock()

	path := s.ResolveLocalPath(name)
	if mode == ModeRemote {
		path = s.ResolveRemotePath(name)
	}
	log = log.With("path", path)

	if !vfs.FileExists(ctx, s.layer, path) {
		return nil, nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	archive, err := s.openArchive(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	if err := archive.SetMountPoint(s.settings.MountPoint); err != nil {
		archive.Close()
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrMountFailed, path, err)
	}
	if err := s.layer.Mount(path, archive, mountOrder); err != nil {
		archive.Close()
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrMountFailed, path, err)
	}
	s.mu.Lock()
	s.mountName = path
	s.mu.Unlock()

	mountPoint := archive.MountPoint()
	files := archive.FindFiles(mountPoint, true)
	exts := slices.Concat(s.settings.AssetExtensions, s.settings.MapExtensions)
	manifest, mounted := buildManifest(files, mountPoint, exts, s.normalize)
	log.Info("archive mounted",
		"mount_point", mountPoint,
		"files", len(files),
		"assets", len(manifest),
		"signed", archive.Signed(),
	)
	return manifest, mounted, nil
}

// openArchive opens and validates the archive at path. The archive owns
// the source once opened.
func (s *Streamer) openArchive(ctx context.Context, path string) (*pak.Pak, error) {
	src, err := s.layer.OpenSource(ctx, path)
	if err != nil {
		if vfs.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrPathNotFound, path, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArchive, path, err)
	}
	archive, err := pak.Open(src,
		pak.WithSignedOnly(s.settings.Signed),
		pak.WithTrustedKeys(s.keys...),
		pak.WithLogger(s.logger),
		pak.WithCloser(src),
	)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArchive, path, err)
	}
	return archive, nil
}

// start publishes the manifest, notifies the listener and hands the
// mounted asset paths to the loader. The load runs under a context that
// ignores the caller's cancellation and is cancelled by Close.
func (s *Streamer) start(ctx context.Context, log *slog.Logger, session uint64, manifest Manifest, mounted []string, listener Listener) error {
	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.manifest = manifest
	s.listener = listener
	s.cancel = cancel
	ld := s.loader
	s.mu.Unlock()
	s.metrics.ObserveManifest(len(manifest))

	if listener != nil {
		listener.OnPrepareAssetStreaming(manifest.Clone())
	}

	if ld == nil {
		return ErrLoaderUnavailable
	}
	done := func() { s.complete(session) }
	if err := ld.RequestAsyncLoad(loadCtx, s.layer, slices.Clone(mounted), done); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadRequestFailed, err)
	}
	log.Debug("asset load requested", "assets", len(manifest))
	return nil
}

// abort unwinds a failed StreamPackage and frees the gate.
func (s *Streamer) abort(log *slog.Logger, mode Mode, err error) {
	s.mu.Lock()
	s.manifest = nil
	s.listener = nil
	mounted := s.mountName
	s.mountName = ""
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if mounted != "" {
		if uerr := s.layer.Unmount(mounted); uerr != nil {
			log.Warn("failed to unmount archive", "error", uerr)
		}
	}
	log.Error("stream package failed", "error", err)
	s.metrics.RecordSession(mode.String(), result(err))
	if s.gate.release() {
		s.metrics.SetStreaming(false)
	}
}

func (s *Streamer) provider(mode Mode) (vfs.Provider, error) {
	switch mode {
	case ModeLocal:
		return s.local, nil
	case ModeRemote:
		return s.remote, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %s", ErrModeInitFailed, mode)
	}
}

// OnStreamingComplete ends the current session: the listener is notified
// and cleared, then the gate is released. The loader calls it when the
// manifest has been loaded; calling it with no session in flight only
// clears the listener.
func (s *Streamer) OnStreamingComplete() {
	s.finish(0, true)
}

// complete ends session if it is still the current one. A loader that
// finishes after its session was ended by Close does not touch a newer
// session.
func (s *Streamer) complete(session uint64) {
	s.finish(session, false)
}

func (s *Streamer) finish(session uint64, force bool) {
	s.mu.Lock()
	if !force && session != s.session {
		s.mu.Unlock()
		s.log().Debug("ignoring completion of a finished session", "session", session)
		return
	}
	listener := s.listener
	s.listener = nil
	cancel := s.cancel
	s.cancel = nil
	started := s.started
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if listener != nil {
		listener.OnAssetStreamComplete()
	}
	if s.gate.release() {
		s.metrics.SetStreaming(false)
		s.metrics.ObserveSessionDuration(time.Since(started))
		s.log().Info("streaming complete", "duration", time.Since(started))
	}
}

// IsStreaming reports whether a session is in flight.
func (s *Streamer) IsStreaming() bool {
	return s.gate.held()
}

// BlockUntilStreamingFinished waits until no session is in flight or ctx
// ends, in which case it returns ctx.Err().
func (s *Streamer) BlockUntilStreamingFinished(ctx context.Context) error {
	return s.gate.wait(ctx)
}

// Manifest returns a copy of the current manifest. It is empty before the
// first successful StreamPackage and after a failed one.
func (s *Streamer) Manifest() Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest.Clone()
}

// CurrentMode returns the mode of the latest session.
func (s *Streamer) CurrentMode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// ActiveFS returns the mount context of the latest session: the mounted
// archive layered over the mode's provider. It is nil before the first
// session initializes a provider.
func (s *Streamer) ActiveFS() vfs.FileSystem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Mounts lists the archives currently mounted.
func (s *Streamer) Mounts() []vfs.MountInfo {
	if !s.initialized.Load() {
		return nil
	}
	return s.layer.Mounts()
}

// Close ends any session in flight, notifying its listener, and unmounts
// every archive. An in-flight load is cancelled and, when the loader can
// wait, Close waits for it before unmounting. The Streamer must be
// initialized again before reuse.
func (s *Streamer) Close() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if !s.initialized.Load() {
		return nil
	}

	s.mu.Lock()
	// A completion from the closed session must not end a later one.
	s.session++
	cancel := s.cancel
	s.cancel = nil
	ld := s.loader
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if w, ok := ld.(waiter); ok {
		w.Wait()
	}

	s.finish(0, true)
	s.layer.UnmountAll()

	s.mu.Lock()
	s.manifest = nil
	s.active = nil
	s.mountName = ""
	s.mu.Unlock()
	s.initialized.Store(false)

	var errs []error
	for _, p := range []vfs.Provider{s.local, s.remote} {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	s.log().Info("streamer closed")
	return errors.Join(errs...)
}
