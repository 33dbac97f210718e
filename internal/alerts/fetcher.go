package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/radar-overlay/internal/domain"
	"github.com/couchcryptid/radar-overlay/internal/observability"
)

const (
	// throttleInterval is the minimum spacing between fetch attempts
	// without the force flag.
	throttleInterval = 3 * time.Second
	// debounceDelay coalesces rapid view changes into one deferred fetch.
	debounceDelay = time.Second
	// refreshInterval is the periodic re-fetch cadence, gated on the map
	// being visible.
	refreshInterval = 5 * time.Minute
	// noticeTTL is how long a transient failure notice stays on the map.
	noticeTTL = 5 * time.Second
)

// Client retrieves active alerts around a coordinate. The zero coordinate
// fetches everything active.
type Client interface {
	FetchActive(ctx context.Context, at domain.LatLng) ([]domain.Alert, error)
}

// CacheStore persists the last-known-good alert set. Optional.
type CacheStore interface {
	Replace(ctx context.Context, alerts []domain.Alert, fetchedAt time.Time) error
	Load(ctx context.Context) ([]domain.Alert, time.Time, error)
}

// Publisher emits the replaced alert set to downstream consumers. Optional.
type Publisher interface {
	PublishAlerts(ctx context.Context, alerts []domain.Alert, fetchedAt time.Time) error
}

// Fetcher performs throttled, single-flight alert retrieval with a
// last-known-good cache fallback. A stale display is preferable to a
// blank one for a live-hazard overlay, so every failure path degrades to
// re-rendering the cache.
type Fetcher struct {
	client   Client
	renderer *Renderer
	surface  domain.MapSurface
	store    CacheStore // nil when persistence is disabled
	pub      Publisher  // nil when publishing is disabled
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu            sync.Mutex
	location      domain.LatLng
	cache         []domain.Alert
	cacheTime     time.Time
	lastAttempt   time.Time
	inFlight      bool
	debounceTimer clockwork.Timer
}

// NewFetcher creates an alert fetcher. store and pub may be nil.
func NewFetcher(client Client, renderer *Renderer, surface domain.MapSurface,
	store CacheStore, pub Publisher, clock clockwork.Clock,
	logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		client:   client,
		renderer: renderer,
		surface:  surface,
		store:    store,
		pub:      pub,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// SetLocation changes the coordinate used to scope alert queries.
func (f *Fetcher) SetLocation(ll domain.LatLng) {
	f.mu.Lock()
	f.location = ll
	f.mu.Unlock()
}

// Cache returns a copy of the last-known-good alert set.
func (f *Fetcher) Cache() []domain.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Alert, len(f.cache))
	copy(out, f.cache)
	return out
}

// CacheLen returns the cached alert count without copying.
func (f *Fetcher) CacheLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cache)
}

// RenderCache redraws the cached alert set, if any.
func (f *Fetcher) RenderCache() {
	if cached := f.Cache(); len(cached) > 0 {
		f.renderer.Render(cached)
	}
}

// RestoreFromStore seeds the cache from the persistent store, so a fresh
// instance has a fallback before its first successful fetch.
func (f *Fetcher) RestoreFromStore(ctx context.Context) {
	if f.store == nil {
		return
	}
	alerts, fetchedAt, err := f.store.Load(ctx)
	if err != nil {
		f.logger.Warn("alert store load failed", "error", err)
		return
	}
	if len(alerts) == 0 {
		return
	}
	f.mu.Lock()
	f.cache = alerts
	f.cacheTime = fetchedAt
	f.mu.Unlock()
	f.metrics.AlertsActive.Set(float64(len(alerts)))
	f.logger.Info("alert cache restored", "alerts", len(alerts), "fetched_at", fetchedAt)
}

// Fetch retrieves active alerts and renders them. Calls inside the 3s
// throttle window (without force) serve the cache instead; a call while a
// fetch is already in flight returns immediately without a second network
// request. Fetch-layer failures never propagate: they degrade to the
// cached display with a transient on-map notice.
func (f *Fetcher) Fetch(ctx context.Context, force bool) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return
	}
	if !force && !f.lastAttempt.IsZero() && f.clock.Since(f.lastAttempt) < throttleInterval {
		hasCache := len(f.cache) > 0
		f.mu.Unlock()
		f.metrics.AlertFetches.WithLabelValues("throttled").Inc()
		if hasCache {
			f.RenderCache()
		}
		return
	}
	f.lastAttempt = f.clock.Now()
	f.inFlight = true
	location := f.location
	f.mu.Unlock()

	alerts, err := f.client.FetchActive(ctx, location)

	f.mu.Lock()
	f.inFlight = false
	f.mu.Unlock()

	if err != nil {
		f.metrics.AlertFetches.WithLabelValues("error").Inc()
		f.logger.Warn("alert fetch failed", "error", err)
		f.showTransientNotice("Hazard alerts are temporarily unavailable")
		f.RenderCache()
		return
	}

	if domain.CountGeometryBearing(alerts) == 0 {
		f.metrics.AlertFetches.WithLabelValues("empty").Inc()
		if f.CacheLen() > 0 {
			// Zero drawable alerts while the cache is populated smells like
			// an incomplete upstream response. Keep the cache rendered
			// rather than clearing the map.
			f.logger.Warn("alert fetch returned no geometry, keeping cache",
				"fetched", len(alerts), "cached", f.CacheLen())
			f.RenderCache()
			return
		}
		f.renderer.Render(alerts)
		return
	}

	fetchedAt := f.clock.Now()
	f.mu.Lock()
	f.cache = alerts
	f.cacheTime = fetchedAt
	f.mu.Unlock()

	f.metrics.AlertFetches.WithLabelValues("success").Inc()
	f.metrics.AlertsActive.Set(float64(len(alerts)))
	f.renderer.Render(alerts)
	f.persistAndPublish(ctx, alerts, fetchedAt)
}

// persistAndPublish mirrors the replaced cache to the optional store and
// publisher. Both are best-effort.
func (f *Fetcher) persistAndPublish(ctx context.Context, alerts []domain.Alert, fetchedAt time.Time) {
	if f.store != nil {
		if err := f.store.Replace(ctx, alerts, fetchedAt); err != nil {
			f.logger.Warn("alert store replace failed", "error", err)
		}
	}
	if f.pub != nil {
		if err := f.pub.PublishAlerts(ctx, alerts, fetchedAt); err != nil {
			f.logger.Warn("alert publish failed", "error", err)
		}
	}
}

// OnViewChanged schedules a debounced fetch 1s after the last view change.
func (f *Fetcher) OnViewChanged(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debounceTimer != nil {
		f.debounceTimer.Reset(debounceDelay)
		return
	}
	f.debounceTimer = f.clock.AfterFunc(debounceDelay, func() {
		f.mu.Lock()
		f.debounceTimer = nil
		f.mu.Unlock()
		f.Fetch(ctx, false)
	})
}

// RunPeriodic re-fetches every 5 minutes while the map is visible, until
// the context is cancelled.
func (f *Fetcher) RunPeriodic(ctx context.Context) {
	ticker := f.clock.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if f.surface.Visible() {
				f.Fetch(ctx, false)
			}
		}
	}
}

// showTransientNotice displays an on-map notice that dismisses itself
// after 5 seconds.
func (f *Fetcher) showTransientNotice(text string) {
	dismiss := f.surface.ShowNotice(text)
	f.clock.AfterFunc(noticeTTL, dismiss)
}
