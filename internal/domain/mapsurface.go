package domain

import "github.com/paulmach/orb"

// SurfaceEvent identifies a notification from the map surface.
type SurfaceEvent string

const (
	// EventViewSettled fires when a pan or zoom comes to rest.
	EventViewSettled SurfaceEvent = "view-settled"
	// EventResize fires when the map container's rendered size changes.
	EventResize SurfaceEvent = "resize"
	// EventPanelVisible fires when a named sibling panel transitions from
	// hidden to visible.
	EventPanelVisible SurfaceEvent = "panel-visible"
	// EventPageVisible fires when the hosting document is foregrounded.
	EventPageVisible SurfaceEvent = "page-visible"
)

// Overlay is a handle to content attached to the map surface.
type Overlay interface {
	ID() string
}

// TileLayer is a raster tile overlay built from a URL template.
type TileLayer interface {
	Overlay
	SetOpacity(opacity float64)
	SetZIndex(z int)
	URLTemplate() string
}

// PolygonStyle is the visual contract for one alert severity tier.
type PolygonStyle struct {
	StrokeColor string
	FillColor   string
	FillOpacity float64
	Weight      int // stroke width in pixels
	ZIndex      int
	Pulse       bool // animated stroke/fill for the extreme tier
}

// PolygonOverlay is a drawn hazard polygon with interactive metadata.
type PolygonOverlay interface {
	Overlay
	Style() PolygonStyle
	BindPopup(html string)
}

// MapSurface abstracts the mapping widget so the engine runs against a
// live map, a headless surface, or a test double interchangeably. All
// engine mutation of the surface is funneled through one goroutine-safe
// owner; implementations are not required to be concurrency-safe beyond
// what their own event dispatch needs.
type MapSurface interface {
	// Viewport returns the current bounds and zoom.
	Viewport() ViewportWindow

	// Project converts a coordinate to pixel space at the current zoom.
	Project(ll LatLng) Point

	NewTileLayer(urlTemplate string) TileLayer
	NewPolygonOverlay(geometry orb.Geometry, style PolygonStyle) PolygonOverlay

	AddOverlay(o Overlay)
	RemoveOverlay(o Overlay)

	// PolygonCount reports how many polygon overlays are attached. The
	// resilience monitor uses it to detect silently erased overlays.
	PolygonCount() int

	// ShowNotice displays a transient on-map message and returns its
	// dismiss function.
	ShowNotice(text string) (dismiss func())

	// InvalidateSize tells the surface to drop its cached container size
	// after a reflow.
	InvalidateSize()

	// Visible reports whether the map container is visible in the page.
	Visible() bool

	// On registers an event handler and returns its unsubscribe function.
	On(event SurfaceEvent, handler func()) (off func())
}
