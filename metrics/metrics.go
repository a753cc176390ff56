// Package metrics defines the Prometheus collectors for streaming sessions,
// asset loads and the file host.
//
// A nil *Metrics is valid and records nothing, so components take an
// optional *Metrics without guarding every call.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session results recorded by RecordSession.
const (
	ResultOK = "ok"
)

// Metrics holds the pakstream collectors.
type Metrics struct {
	sessions        *prometheus.CounterVec
	streamingActive prometheus.Gauge
	manifestAssets  prometheus.Histogram
	sessionDuration prometheus.Histogram
	assetsLoaded    prometheus.Counter
	assetLoadErrors prometheus.Counter
	assetBytes      prometheus.Counter
	hostRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors, which is useful in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pakstream_sessions_total",
				Help: "Streaming sessions started, by mode and result",
			},
			[]string{"mode", "result"},
		),
		streamingActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pakstream_streaming_active",
			Help: "1 while a streaming session holds the gate",
		}),
		manifestAssets: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pakstream_manifest_assets",
			Help:    "Number of assets in each streaming manifest",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1 .. 16384
		}),
		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pakstream_session_duration_seconds",
			Help:    "Time from gate acquisition to streaming completion",
			Buckets: prometheus.DefBuckets,
		}),
		assetsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "pakstream_assets_loaded_total",
			Help: "Assets read and verified by the loader",
		}),
		assetLoadErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "pakstream_asset_load_errors_total",
			Help: "Assets the loader failed to read",
		}),
		assetBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "pakstream_asset_bytes_total",
			Help: "Uncompressed asset bytes delivered by the loader",
		}),
		hostRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pakstream_host_requests_total",
				Help: "File host requests, by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// RecordSession counts a StreamPackage outcome. result is ResultOK or a
// short failure reason.
func (m *Metrics) RecordSession(mode, result string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(mode, result).Inc()
}

// SetStreaming sets the active-session gauge.
func (m *Metrics) SetStreaming(active bool) {
	if m == nil {
		return
	}
	if active {
		m.streamingActive.Set(1)
		return
	}
	m.streamingActive.Set(0)
}

// ObserveManifest records the size of a built manifest.
func (m *Metrics) ObserveManifest(assets int) {
	if m == nil {
		return
	}
	m.manifestAssets.Observe(float64(assets))
}

// ObserveSessionDuration records how long a session held the gate.
func (m *Metrics) ObserveSessionDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.sessionDuration.Observe(d.Seconds())
}

// RecordAssetLoad counts one loader read; err marks a failure.
func (m *Metrics) RecordAssetLoad(bytes int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.assetLoadErrors.Inc()
		return
	}
	m.assetsLoaded.Inc()
	m.assetBytes.Add(float64(bytes))
}

// RecordHostRequest counts a file host response.
func (m *Metrics) RecordHostRequest(route string, code int) {
	if m == nil {
		return
	}
	m.hostRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
