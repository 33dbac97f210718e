// Package radar implements the frame cache and playback engine: catalog
// refresh, viewport tile preloading, the playback state machine, frame
// layer swapping, and the resilience monitor, all against an injectable
// map surface.
package radar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/radar-overlay/internal/alerts"
	"github.com/couchcryptid/radar-overlay/internal/domain"
	"github.com/couchcryptid/radar-overlay/internal/observability"
)

var (
	// ErrNoRenderTarget means Init was given no surface to render onto.
	// This is the one unrecoverable failure: it is not retried.
	ErrNoRenderTarget = errors.New("radar: no render target")
	// ErrNotInitialized guards operations invoked before Init.
	ErrNotInitialized = errors.New("radar: engine not initialized")
	// ErrAlreadyInitialized guards double Init on one instance.
	ErrAlreadyInitialized = errors.New("radar: engine already initialized")
	// ErrDisposed rejects Init on an instance Dispose has already torn down.
	ErrDisposed = errors.New("radar: engine disposed")
)

// CatalogClient retrieves the list of available frame timestamps and
// builds per-frame tile URL templates.
type CatalogClient interface {
	FetchCatalog(ctx context.Context) ([]int64, error)
	FrameURLTemplate(ts int64) string
}

// Options wires an Engine. Catalog, Tiles, and Alerts are required;
// AlertStore and AlertPublisher are optional; Clock, Logger, and Metrics
// default to real implementations when nil.
type Options struct {
	Catalog        CatalogClient
	Tiles          TileFetcher
	Alerts         alerts.Client
	AlertStore     alerts.CacheStore
	AlertPublisher alerts.Publisher

	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics

	// ReturnToLatestOnStop parks playback on the newest frame when
	// animation stops.
	ReturnToLatestOnStop bool
}

// Engine owns all mutable radar state for one map instance: the frame
// set, playback, renderers, alert fetching, and the resilience monitor.
// Multiple engines can be constructed and disposed independently.
type Engine struct {
	catalog        CatalogClient
	preloader      *Preloader
	alertsClient   alerts.Client
	alertStore     alerts.CacheStore
	alertPublisher alerts.Publisher
	clock          clockwork.Clock
	logger         *slog.Logger
	metrics        *observability.Metrics
	returnToLatest bool

	mu            sync.Mutex
	surface       domain.MapSurface
	frames        domain.FrameSet
	playback      *Controller
	frameRenderer *FrameRenderer
	alertRenderer *alerts.Renderer
	alertFetcher  *alerts.Fetcher
	monitor       *Monitor
	offs          []func()
	firstSettle   bool
	disposed      bool

	// generation versions async catalog/preload work; results from a
	// superseded generation are discarded rather than cancelled.
	generation  atomic.Uint64
	initialized atomic.Bool
	ready       atomic.Bool
}

// New creates an engine. Call Init before any other operation.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}
	return &Engine{
		catalog:        opts.Catalog,
		preloader:      NewPreloader(opts.Tiles, opts.Clock, opts.Logger, opts.Metrics),
		alertsClient:   opts.Alerts,
		alertStore:     opts.AlertStore,
		alertPublisher: opts.AlertPublisher,
		clock:          opts.Clock,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		returnToLatest: opts.ReturnToLatestOnStop,
	}
}

// Init binds the engine to its render target and arms the alert fetch
// triggers and resilience watches. A nil surface is fatal for this
// instance and is not retried.
func (e *Engine) Init(ctx context.Context, surface domain.MapSurface) error {
	if surface == nil {
		return ErrNoRenderTarget
	}

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return ErrDisposed
	}
	if !e.initialized.CompareAndSwap(false, true) {
		e.mu.Unlock()
		return ErrAlreadyInitialized
	}
	e.surface = surface
	e.frameRenderer = NewFrameRenderer(surface, e.clock, e.logger, e.metrics)
	e.alertRenderer = alerts.NewRenderer(surface, e.clock, e.logger, e.metrics)
	e.alertFetcher = alerts.NewFetcher(e.alertsClient, e.alertRenderer, surface,
		e.alertStore, e.alertPublisher, e.clock, e.logger, e.metrics)
	e.playback = NewController(e.clock, e.returnToLatest,
		func(index int) { e.renderFrameLocked(index) },
		func() { e.onPlaybackTick() },
	)
	e.monitor = NewMonitor(surface, e.clock, e.logger, e.metrics,
		e.alertFetcher.RenderCache, e.alertFetcher.CacheLen, e.alertRenderer.LastRender)
	e.offs = append(e.offs, surface.On(domain.EventViewSettled, func() { e.onViewSettled(ctx) }))
	e.mu.Unlock()

	e.monitor.Start()
	e.alertFetcher.RestoreFromStore(ctx)

	e.logger.Info("radar engine initialized")
	return nil
}

// IsInitialized reports whether Init has succeeded and Dispose has not run.
func (e *Engine) IsInitialized() bool {
	return e.initialized.Load()
}

// CheckReadiness returns nil once the first frame catalog has loaded.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("no frame catalog loaded yet")
	}
	return nil
}

// UpdateLocation rescopes alert queries to the coordinate and refreshes
// frames and alerts for the new view.
func (e *Engine) UpdateLocation(ctx context.Context, lat, lon float64) error {
	if !e.initialized.Load() {
		return ErrNotInitialized
	}
	e.alertFetcher.SetLocation(domain.LatLng{Lat: lat, Lng: lon})
	err := e.RefreshFrames(ctx)
	e.alertFetcher.Fetch(ctx, true)
	return err
}

// RefreshFrames fetches the catalog, replaces the frame set wholesale,
// shows the newest frame, and kicks off a preload pass for the current
// viewport. A fetch failure after the first successful load keeps the
// existing frame set; only the initial load surfaces the error.
func (e *Engine) RefreshFrames(ctx context.Context) error {
	if !e.initialized.Load() {
		return ErrNotInitialized
	}

	timestamps, err := e.catalog.FetchCatalog(ctx)
	if err != nil {
		e.metrics.CatalogFetches.WithLabelValues("error").Inc()
		if !e.ready.Load() {
			return fmt.Errorf("initial catalog fetch: %w", err)
		}
		e.logger.Warn("catalog fetch failed, keeping current frames", "error", err)
		return nil
	}
	e.metrics.CatalogFetches.WithLabelValues("success").Inc()

	// The generation only moves on a successful fetch: a failed refresh
	// keeps both the current frames and their in-flight warm pass.
	gen := e.generation.Add(1)
	frames := domain.NewFrameSet(timestamps, e.catalog.FrameURLTemplate)

	e.mu.Lock()
	if gen != e.generation.Load() || e.disposed {
		e.mu.Unlock()
		e.metrics.StaleDiscards.Inc()
		return nil
	}
	e.frameRenderer.Clear()
	e.frames = frames
	e.playback.SetLength(len(frames))
	e.metrics.PlaybackRunning.Set(0)
	if len(frames) > 0 {
		e.renderFrameLocked(frames.LastIndex())
	}
	viewport := e.surface.Viewport()
	e.mu.Unlock()

	e.metrics.FramesLoaded.Set(float64(len(frames)))
	e.ready.Store(true)
	e.logger.Info("frame catalog refreshed", "frames", len(frames))

	go e.preloader.Preload(ctx, frames, viewport, e.warmMarker(gen))
	return nil
}

// warmMarker returns the markWarm callback for one preload generation.
// Results from superseded generations are counted and dropped.
func (e *Engine) warmMarker(gen uint64) func(f *domain.Frame, loaded, total int) {
	return func(f *domain.Frame, loaded, total int) {
		if gen != e.generation.Load() {
			e.metrics.StaleDiscards.Inc()
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		f.LoadState = domain.LoadWarm
		f.TilesWarm = loaded
		f.TilesTotal = total
		e.metrics.FramesWarmed.Inc()
		if f.Degraded() {
			e.metrics.FramesDegraded.Inc()
			e.logger.Warn("frame warmed with zero resolved tiles",
				"frame_time", f.SourceTime, "tiles", total)
		}
	}
}

// FetchAlerts retrieves and renders active alerts; force bypasses the
// throttle. Failures degrade to the cached display and never propagate.
func (e *Engine) FetchAlerts(ctx context.Context, force bool) error {
	if !e.initialized.Load() {
		return ErrNotInitialized
	}
	e.alertFetcher.Fetch(ctx, force)
	return nil
}

// RenderAlerts draws the given alert set, severity-ordered, replacing any
// previously drawn polygons.
func (e *Engine) RenderAlerts(alertSet []domain.Alert) error {
	if !e.initialized.Load() {
		return ErrNotInitialized
	}
	e.alertRenderer.Render(alertSet)
	return nil
}

// AlertCache returns a copy of the last-known-good alert set.
func (e *Engine) AlertCache() []domain.Alert {
	if !e.initialized.Load() {
		return nil
	}
	return e.alertFetcher.Cache()
}

// RunPeriodicAlerts re-fetches alerts every five minutes while the map is
// visible, until the context is cancelled. Run it in its own goroutine.
func (e *Engine) RunPeriodicAlerts(ctx context.Context) {
	if !e.initialized.Load() {
		return
	}
	e.alertFetcher.RunPeriodic(ctx)
}

// Play starts frame animation.
func (e *Engine) Play() {
	e.withPlayback(func(c *Controller) { c.Start() })
}

// Stop halts frame animation, parking on the newest frame when
// return-to-latest is enabled.
func (e *Engine) Stop() {
	e.withPlayback(func(c *Controller) { c.Stop() })
}

// Seek halts animation and shows the given frame index.
func (e *Engine) Seek(index int) {
	e.withPlayback(func(c *Controller) { c.Seek(index) })
}

// Toggle flips between playing and stopped.
func (e *Engine) Toggle() {
	e.withPlayback(func(c *Controller) { c.Toggle() })
}

// CurrentIndex returns the playback index, -1 before frames load.
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playback == nil {
		return -1
	}
	return e.playback.Current()
}

// IsPlaying reports whether the animation timer is armed.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playback != nil && e.playback.Playing()
}

// Frames returns the current frame set. The slice is shared; callers must
// not mutate it.
func (e *Engine) Frames() domain.FrameSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// Dispose halts playback, detaches every overlay, and unsubscribes all
// watches. The instance cannot be re-initialized.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	if e.playback != nil {
		e.playback.SetLength(0)
	}
	if e.frameRenderer != nil {
		e.frameRenderer.Clear()
	}
	for _, off := range e.offs {
		off()
	}
	e.offs = nil
	monitor := e.monitor
	alertRenderer := e.alertRenderer
	e.mu.Unlock()

	if monitor != nil {
		monitor.Stop()
	}
	if alertRenderer != nil {
		alertRenderer.Clear()
	}
	e.initialized.Store(false)
	e.metrics.PlaybackRunning.Set(0)
	e.logger.Info("radar engine disposed")
}

// onViewSettled routes pan/zoom rest events: the first settle after
// initialization fetches alerts immediately, later ones go through the
// 1s debounce.
func (e *Engine) onViewSettled(ctx context.Context) {
	e.mu.Lock()
	first := !e.firstSettle
	e.firstSettle = true
	fetcher := e.alertFetcher
	e.mu.Unlock()

	if fetcher == nil {
		return
	}
	if first {
		fetcher.Fetch(ctx, false)
		return
	}
	fetcher.OnViewChanged(ctx)
}

// onPlaybackTick re-enters the engine lock for one serialized frame
// advance.
func (e *Engine) onPlaybackTick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.playback.Advance()
}

// withPlayback runs fn under the engine lock and syncs the running gauge.
func (e *Engine) withPlayback(fn func(*Controller)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playback == nil || e.disposed {
		return
	}
	fn(e.playback)
	if e.playback.Playing() {
		e.metrics.PlaybackRunning.Set(1)
	} else {
		e.metrics.PlaybackRunning.Set(0)
	}
}

// renderFrameLocked shows the frame at index. Callers hold e.mu.
func (e *Engine) renderFrameLocked(index int) {
	if index < 0 || index >= len(e.frames) {
		return
	}
	e.frameRenderer.Show(e.frames[index])
}
