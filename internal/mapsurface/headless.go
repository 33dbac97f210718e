// Package mapsurface provides a headless MapSurface implementation. The
// daemon runs the engine against it for cache warming and alert
// monitoring, and tests use it as a recording double.
package mapsurface

import (
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/radar-overlay/internal/domain"
)

// Headless is an in-memory map surface. It records attached overlays and
// dispatches surface events but renders nothing.
type Headless struct {
	mu       sync.Mutex
	viewport domain.ViewportWindow
	visible  bool
	overlays map[string]domain.Overlay
	notices  map[string]string
	handlers map[domain.SurfaceEvent]map[string]func()
}

// NewHeadless creates a headless surface with the given initial viewport.
func NewHeadless(viewport domain.ViewportWindow) *Headless {
	return &Headless{
		viewport: viewport,
		visible:  true,
		overlays: make(map[string]domain.Overlay),
		notices:  make(map[string]string),
		handlers: make(map[domain.SurfaceEvent]map[string]func()),
	}
}

// Viewport returns the current bounds and zoom.
func (h *Headless) Viewport() domain.ViewportWindow {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewport
}

// SetViewport replaces the viewport. Callers fire EventViewSettled
// themselves once the change should count as settled.
func (h *Headless) SetViewport(vp domain.ViewportWindow) {
	h.mu.Lock()
	h.viewport = vp
	h.mu.Unlock()
}

// Project converts a coordinate to pixel space at the current zoom.
func (h *Headless) Project(ll domain.LatLng) domain.Point {
	return domain.ProjectWebMercator(ll, h.Viewport().Zoom)
}

// NewTileLayer builds an unattached tile layer handle.
func (h *Headless) NewTileLayer(urlTemplate string) domain.TileLayer {
	return &tileLayer{id: uuid.NewString(), template: urlTemplate}
}

// NewPolygonOverlay builds an unattached polygon overlay handle.
func (h *Headless) NewPolygonOverlay(geometry orb.Geometry, style domain.PolygonStyle) domain.PolygonOverlay {
	return &polygonOverlay{id: uuid.NewString(), geometry: geometry, style: style}
}

// AddOverlay attaches an overlay; re-adding an attached overlay is a no-op.
func (h *Headless) AddOverlay(o domain.Overlay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.overlays[o.ID()] = o
}

// RemoveOverlay detaches an overlay; removing an unattached one is a no-op.
func (h *Headless) RemoveOverlay(o domain.Overlay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.overlays, o.ID())
}

// PolygonCount reports the number of attached polygon overlays.
func (h *Headless) PolygonCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, o := range h.overlays {
		if _, ok := o.(domain.PolygonOverlay); ok {
			n++
		}
	}
	return n
}

// OverlayCount reports the total number of attached overlays.
func (h *Headless) OverlayCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.overlays)
}

// Attached reports whether the overlay is currently on the surface.
func (h *Headless) Attached(o domain.Overlay) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.overlays[o.ID()]
	return ok
}

// ShowNotice records a transient message and returns its dismiss function.
func (h *Headless) ShowNotice(text string) func() {
	id := uuid.NewString()
	h.mu.Lock()
	h.notices[id] = text
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.notices, id)
		h.mu.Unlock()
	}
}

// NoticeCount reports how many notices are currently displayed.
func (h *Headless) NoticeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.notices)
}

// InvalidateSize is a no-op for the headless surface.
func (h *Headless) InvalidateSize() {}

// Visible reports whether the surface counts as on-screen.
func (h *Headless) Visible() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visible
}

// SetVisible toggles visibility for tests and the daemon.
func (h *Headless) SetVisible(v bool) {
	h.mu.Lock()
	h.visible = v
	h.mu.Unlock()
}

// On registers an event handler and returns its unsubscribe function.
func (h *Headless) On(event domain.SurfaceEvent, handler func()) func() {
	id := uuid.NewString()
	h.mu.Lock()
	if h.handlers[event] == nil {
		h.handlers[event] = make(map[string]func())
	}
	h.handlers[event][id] = handler
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.handlers[event], id)
		h.mu.Unlock()
	}
}

// Emit dispatches an event to all registered handlers synchronously.
func (h *Headless) Emit(event domain.SurfaceEvent) {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.handlers[event]))
	for _, fn := range h.handlers[event] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// --- overlay handles ---

type tileLayer struct {
	mu       sync.Mutex
	id       string
	template string
	opacity  float64
	zIndex   int
}

func (l *tileLayer) ID() string          { return l.id }
func (l *tileLayer) URLTemplate() string { return l.template }

func (l *tileLayer) SetOpacity(opacity float64) {
	l.mu.Lock()
	l.opacity = opacity
	l.mu.Unlock()
}

func (l *tileLayer) SetZIndex(z int) {
	l.mu.Lock()
	l.zIndex = z
	l.mu.Unlock()
}

// Opacity exposes the last applied opacity for assertions.
func (l *tileLayer) Opacity() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opacity
}

type polygonOverlay struct {
	mu       sync.Mutex
	id       string
	geometry orb.Geometry
	style    domain.PolygonStyle
	popup    string
}

func (p *polygonOverlay) ID() string                 { return p.id }
func (p *polygonOverlay) Style() domain.PolygonStyle { return p.style }

func (p *polygonOverlay) BindPopup(html string) {
	p.mu.Lock()
	p.popup = html
	p.mu.Unlock()
}

// Popup exposes the bound popup content for assertions.
func (p *polygonOverlay) Popup() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.popup
}

// Geometry exposes the overlay geometry for assertions.
func (p *polygonOverlay) Geometry() orb.Geometry { return p.geometry }
