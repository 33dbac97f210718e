// Package alerts fetches hazard polygons from the alerts provider and
// renders them severity-ordered onto the map surface.
package alerts

import (
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/radar-overlay/internal/domain"
	"github.com/couchcryptid/radar-overlay/internal/observability"
)

// Z-index bands per severity tier. Bands are a second on-top guarantee
// independent of draw order.
const zIndexBase = 400
const zIndexBandWidth = 10

// tierStyles is the fixed visual contract per severity tier. The extreme
// tier pulses and carries a thicker border.
var tierStyles = map[domain.SeverityTier]domain.PolygonStyle{
	domain.SeverityMinor: {
		StrokeColor: "#f1c40f",
		FillColor:   "#f1c40f",
		FillOpacity: 0.15,
		Weight:      1,
	},
	domain.SeverityModerate: {
		StrokeColor: "#e67e22",
		FillColor:   "#e67e22",
		FillOpacity: 0.2,
		Weight:      2,
	},
	domain.SeveritySevere: {
		StrokeColor: "#e74c3c",
		FillColor:   "#e74c3c",
		FillOpacity: 0.25,
		Weight:      2,
	},
	domain.SeverityExtreme: {
		StrokeColor: "#b10dc9",
		FillColor:   "#b10dc9",
		FillOpacity: 0.3,
		Weight:      4,
		Pulse:       true,
	},
}

// StyleForTier returns the drawing style for a severity tier, including
// its z-index band.
func StyleForTier(tier domain.SeverityTier) domain.PolygonStyle {
	style := tierStyles[tier]
	style.ZIndex = zIndexBase + int(tier)*zIndexBandWidth
	return style
}

// Renderer draws alert polygons. Each Render fully clears the previous
// polygon set before drawing the new one; at the expected alert volume
// (tens, occasionally low hundreds) diffing is not worth the complexity.
type Renderer struct {
	surface domain.MapSurface
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu         sync.Mutex
	layers     []domain.PolygonOverlay
	lastRender time.Time
}

// NewRenderer creates an alert renderer for the given surface.
func NewRenderer(surface domain.MapSurface, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Renderer {
	return &Renderer{
		surface: surface,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Render replaces the drawn polygon set with the given alerts, drawing in
// ascending severity so the most severe polygons end up on top.
func (r *Renderer) Render(alerts []domain.Alert) {
	sorted := make([]domain.Alert, len(alerts))
	copy(sorted, alerts)
	domain.SortBySeverity(sorted)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, layer := range r.layers {
		r.surface.RemoveOverlay(layer)
	}
	r.layers = r.layers[:0]

	for _, a := range sorted {
		if !a.HasGeometry() {
			continue
		}
		overlay := r.surface.NewPolygonOverlay(a.Geometry, StyleForTier(a.Severity))
		overlay.BindPopup(popupHTML(a))
		r.surface.AddOverlay(overlay)
		r.layers = append(r.layers, overlay)
	}

	r.lastRender = r.clock.Now()
	r.metrics.AlertRenders.Inc()
	r.logger.Debug("alerts rendered", "polygons", len(r.layers), "alerts", len(sorted))
}

// Clear removes every drawn polygon.
func (r *Renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, layer := range r.layers {
		r.surface.RemoveOverlay(layer)
	}
	r.layers = r.layers[:0]
}

// LastRender returns when polygons were last drawn, zero before the first
// render.
func (r *Renderer) LastRender() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRender
}

// popupHTML builds the interactive metadata shown when a polygon is
// clicked. Extreme alerts get expanded framing.
func popupHTML(a domain.Alert) string {
	title := html.EscapeString(a.Title)
	desc := html.EscapeString(a.Description)

	var header string
	if a.Severity == domain.SeverityExtreme {
		header = fmt.Sprintf(
			`<div class="alert-popup alert-extreme"><strong>⚠ %s</strong><p class="alert-action">Take immediate action.</p>`,
			title)
	} else {
		header = fmt.Sprintf(`<div class="alert-popup"><strong>%s</strong>`, title)
	}

	body := fmt.Sprintf(`<p>%s</p>`, desc)
	if a.Urgency != "" {
		body += fmt.Sprintf(`<p class="alert-urgency">Urgency: %s</p>`, html.EscapeString(a.Urgency))
	}
	if !a.Expires.IsZero() {
		body += fmt.Sprintf(`<p class="alert-expires">Expires: %s</p>`, a.Expires.UTC().Format(time.RFC3339))
	}
	return header + body + `</div>`
}
