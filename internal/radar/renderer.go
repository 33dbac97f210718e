package radar

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/radar-overlay/internal/domain"
	"github.com/couchcryptid/radar-overlay/internal/observability"
)

// crossFadeDelay is how long the previous frame layer stays attached
// after a swap: long enough for the new layer's tiles to paint, short
// enough to avoid visible lag.
const crossFadeDelay = 90 * time.Millisecond

// frameZIndex keeps the current frame layer above basemap layers and
// below alert polygons.
const frameZIndex = 200

// FrameRenderer swaps the visible radar layer on every index change. At
// most one layer is the authoritative current frame; the previous layer
// overlaps it for a bounded cross-fade window before detaching.
type FrameRenderer struct {
	surface domain.MapSurface
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	current  domain.TileLayer
	attached map[string]domain.TileLayer
}

// NewFrameRenderer creates a renderer for the given surface.
func NewFrameRenderer(surface domain.MapSurface, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *FrameRenderer {
	return &FrameRenderer{
		surface:  surface,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		attached: make(map[string]domain.TileLayer),
	}
}

// Show makes the frame's layer the visible one, constructing it on demand
// when preloading never got to it. The previously visible layer detaches
// after the cross-fade delay.
func (r *FrameRenderer) Show(frame *domain.Frame) {
	if frame == nil {
		return
	}
	layer := frame.Layer
	if layer == nil {
		layer = r.surface.NewTileLayer(frame.URLTemplate)
		frame.Layer = layer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	layer.SetOpacity(1)
	layer.SetZIndex(frameZIndex)
	if _, ok := r.attached[layer.ID()]; !ok {
		r.surface.AddOverlay(layer)
		r.attached[layer.ID()] = layer
	}

	prev := r.current
	r.current = layer
	r.metrics.FrameRenders.Inc()

	if prev != nil && prev.ID() != layer.ID() {
		r.clock.AfterFunc(crossFadeDelay, func() {
			r.detachIfSuperseded(prev)
		})
	}
}

// detachIfSuperseded removes the layer unless it has been re-promoted to
// current during the cross-fade window.
func (r *FrameRenderer) detachIfSuperseded(layer domain.TileLayer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil && r.current.ID() == layer.ID() {
		return
	}
	if _, ok := r.attached[layer.ID()]; !ok {
		return
	}
	r.surface.RemoveOverlay(layer)
	delete(r.attached, layer.ID())
}

// Clear detaches every frame layer, used on catalog refresh and dispose.
func (r *FrameRenderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, layer := range r.attached {
		r.surface.RemoveOverlay(layer)
		delete(r.attached, id)
	}
	r.current = nil
}
