package pakstream

import (
	"crypto/ed25519"
	"log/slog"
	"net/http"

	"github.com/meigma/pakstream/config"
	"github.com/meigma/pakstream/metrics"
	"github.com/meigma/pakstream/vfs"
)

// Option configures a Streamer.
type Option func(*Streamer)

// WithConfigSource sets where Initialize reads settings from.
// Without a source, every setting takes its default.
func WithConfigSource(src config.Source) Option {
	return func(s *Streamer) {
		s.source = src
	}
}

// WithLogger sets the logger for the streamer and the components it builds.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Streamer) {
		s.logger = logger
	}
}

// WithLocalProvider replaces the provider used by ModeLocal.
// By default a vfs.LocalProvider rooted at AssetStreamer.ContentDir is used.
func WithLocalProvider(p vfs.Provider) Option {
	return func(s *Streamer) {
		s.local = p
	}
}

// WithRemoteProvider replaces the provider used by ModeRemote.
// By default a vfs.RemoteProvider pointed at AssetStreamer.ServerHost is used.
func WithRemoteProvider(p vfs.Provider) Option {
	return func(s *Streamer) {
		s.remote = p
	}
}

// WithLoader registers the loader that receives manifests.
// By default Initialize registers a loader.Loader.
func WithLoader(l Loader) Option {
	return func(s *Streamer) {
		s.loader = l
	}
}

// WithMetrics records session metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Streamer) {
		s.metrics = m
	}
}

// WithManifestNormalizer sets how mounted paths are rewritten for the
// manifest (default: IdentityNormalizer).
func WithManifestNormalizer(fn Normalizer) Option {
	return func(s *Streamer) {
		s.normalize = fn
	}
}

// WithTrustedKeys adds public keys accepted for archive signatures, in
// addition to the AssetStreamer.TrustedKeys files.
func WithTrustedKeys(keys ...ed25519.PublicKey) Option {
	return func(s *Streamer) {
		s.trustedKeys = append(s.trustedKeys, keys...)
	}
}

// WithHTTPClient sets the HTTP client of the default remote provider.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Streamer) {
		s.client = client
	}
}
