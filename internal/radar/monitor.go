package radar

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/radar-overlay/internal/domain"
	"github.com/couchcryptid/radar-overlay/internal/observability"
)

const (
	// resizeSettleDelay lets a forced reflow finish before re-rendering;
	// re-drawing mid-reflow can be erased again immediately.
	resizeSettleDelay = 200 * time.Millisecond
	// siblingRenderWindow limits the panel-visibility recovery to renders
	// recent enough that their polygons should still be on the map.
	siblingRenderWindow = 60 * time.Second
)

// Monitor watches for layout and visibility disruptions that silently
// erase rendered overlays and re-renders them from cache. Mapping
// surfaces can drop or mis-position overlays across forced reflows and
// tab backgrounding without reporting anything.
type Monitor struct {
	surface domain.MapSurface
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	// renderCache redraws the alert cache; cacheLen and lastAlertRender
	// feed the recovery guards.
	renderCache     func()
	cacheLen        func() int
	lastAlertRender func() time.Time

	offs []func()
}

// NewMonitor creates a resilience monitor bound to the surface.
func NewMonitor(surface domain.MapSurface, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics,
	renderCache func(), cacheLen func() int, lastAlertRender func() time.Time) *Monitor {
	return &Monitor{
		surface:         surface,
		clock:           clock,
		logger:          logger,
		metrics:         metrics,
		renderCache:     renderCache,
		cacheLen:        cacheLen,
		lastAlertRender: lastAlertRender,
	}
}

// Start subscribes to the surface's disruption events.
func (m *Monitor) Start() {
	m.offs = append(m.offs,
		m.surface.On(domain.EventResize, m.onResize),
		m.surface.On(domain.EventPanelVisible, m.onPanelVisible),
		m.surface.On(domain.EventPageVisible, m.onPageVisible),
	)
}

// Stop unsubscribes every watch.
func (m *Monitor) Stop() {
	for _, off := range m.offs {
		off()
	}
	m.offs = nil
}

// onResize invalidates the surface's cached size and re-renders the alert
// cache once the reflow has settled.
func (m *Monitor) onResize() {
	m.surface.InvalidateSize()
	m.clock.AfterFunc(resizeSettleDelay, func() {
		if m.cacheLen() == 0 {
			return
		}
		m.logger.Debug("re-rendering alerts after container resize")
		m.metrics.CacheRecoveries.Inc()
		m.renderCache()
	})
}

// onPanelVisible recovers overlays erased by a sibling panel reveal: a
// recent render whose polygons are gone while the cache is populated.
func (m *Monitor) onPanelVisible() {
	last := m.lastAlertRender()
	if last.IsZero() || m.clock.Since(last) > siblingRenderWindow {
		return
	}
	m.recoverIfErased("sibling panel became visible")
}

// onPageVisible applies the same erased-overlay guard on tab foregrounding.
func (m *Monitor) onPageVisible() {
	m.recoverIfErased("document became visible")
}

func (m *Monitor) recoverIfErased(reason string) {
	if m.surface.PolygonCount() != 0 || m.cacheLen() == 0 {
		return
	}
	m.logger.Info("alert overlays missing, re-rendering from cache", "reason", reason)
	m.metrics.CacheRecoveries.Inc()
	m.renderCache()
}
