package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// radar overlay engine.
type Metrics struct {
	CatalogFetches  *prometheus.CounterVec // labels: outcome={success,error}
	FramesLoaded    prometheus.Gauge
	PlaybackRunning prometheus.Gauge
	FrameRenders    prometheus.Counter
	StaleDiscards   prometheus.Counter

	// Preload metrics.
	TileLoads       *prometheus.CounterVec // labels: outcome={success,error,timeout}
	FramesWarmed    prometheus.Counter
	FramesDegraded  prometheus.Counter
	PreloadDuration prometheus.Histogram

	// Alert metrics.
	AlertFetches    *prometheus.CounterVec // labels: outcome={success,error,throttled,empty}
	AlertsActive    prometheus.Gauge
	AlertRenders    prometheus.Counter
	CacheRecoveries prometheus.Counter // re-renders triggered by the resilience monitor
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CatalogFetches,
		m.FramesLoaded,
		m.PlaybackRunning,
		m.FrameRenders,
		m.StaleDiscards,
		m.TileLoads,
		m.FramesWarmed,
		m.FramesDegraded,
		m.PreloadDuration,
		m.AlertFetches,
		m.AlertsActive,
		m.AlertRenders,
		m.CacheRecoveries,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CatalogFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar_overlay",
			Name:      "catalog_fetches_total",
			Help:      "Frame catalog fetches by outcome.",
		}, []string{"outcome"}),
		FramesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radar_overlay",
			Name:      "frames_loaded",
			Help:      "Number of frames in the current playback window.",
		}),
		PlaybackRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radar_overlay",
			Name:      "playback_running",
			Help:      "1 while frame animation is playing, 0 when stopped.",
		}),
		FrameRenders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar_overlay",
			Name:      "frame_renders_total",
			Help:      "Total frame layer swaps.",
		}),
		StaleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar_overlay",
			Name:      "stale_results_discarded_total",
			Help:      "Async results dropped due to generation mismatch.",
		}),
		TileLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar_overlay",
			Name:      "tile_loads_total",
			Help:      "Preload tile fetches by outcome.",
		}, []string{"outcome"}),
		FramesWarmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar_overlay",
			Name:      "frames_warmed_total",
			Help:      "Frames marked warm by the preloader.",
		}),
		FramesDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar_overlay",
			Name:      "frames_degraded_total",
			Help:      "Frames marked warm with zero resolved tiles.",
		}),
		PreloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radar_overlay",
			Name:      "preload_duration_seconds",
			Help:      "Duration of a complete preload pass across all frames.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}),
		AlertFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar_overlay",
			Name:      "alert_fetches_total",
			Help:      "Alert fetch attempts by outcome.",
		}, []string{"outcome"}),
		AlertsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radar_overlay",
			Name:      "alerts_active",
			Help:      "Alerts in the last-known-good cache.",
		}),
		AlertRenders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar_overlay",
			Name:      "alert_renders_total",
			Help:      "Full alert polygon redraws.",
		}),
		CacheRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar_overlay",
			Name:      "cache_recoveries_total",
			Help:      "Re-renders from cache triggered by the resilience monitor.",
		}),
	}
}
