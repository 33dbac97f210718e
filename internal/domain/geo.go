package domain

import (
	"fmt"
	"math"
)

// LatLng is a WGS-84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point is a pixel position on the projected map plane.
type Point struct {
	X float64
	Y float64
}

// Bounds is a geographic rectangle.
type Bounds struct {
	SouthWest LatLng `json:"southwest"`
	NorthEast LatLng `json:"northeast"`
}

// ViewportWindow is the visible map area used to compute which tiles a
// frame must preload.
type ViewportWindow struct {
	Bounds Bounds
	Zoom   int
}

// TileCoord addresses one raster tile in the slippy-map scheme.
type TileCoord struct {
	Z int
	X int
	Y int
}

func (c TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// TileRect is an inclusive rectangle of tile coordinates at one zoom level.
type TileRect struct {
	Z    int
	MinX int
	MaxX int
	MinY int
	MaxY int
}

// Count returns the number of tiles in the rectangle.
func (r TileRect) Count() int {
	if r.MaxX < r.MinX || r.MaxY < r.MinY {
		return 0
	}
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Coords enumerates every tile coordinate in the rectangle.
func (r TileRect) Coords() []TileCoord {
	coords := make([]TileCoord, 0, r.Count())
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			coords = append(coords, TileCoord{Z: r.Z, X: x, Y: y})
		}
	}
	return coords
}

// tileXY converts a coordinate to fractional tile units at the given zoom
// using the Web Mercator projection.
func tileXY(ll LatLng, zoom int) (float64, float64) {
	n := math.Exp2(float64(zoom))
	latRad := ll.Lat * math.Pi / 180
	x := (ll.Lng + 180) / 360 * n
	y := (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n
	return x, y
}

// ProjectWebMercator converts a coordinate to pixel units at the given
// zoom, assuming 256px tiles.
func ProjectWebMercator(ll LatLng, zoom int) Point {
	x, y := tileXY(ll, zoom)
	return Point{X: x * 256, Y: y * 256}
}

// CoveringTiles computes the minimal tile rectangle covering the bounds at
// the given zoom, expanded by margin tiles on every side and clamped to
// the valid 0..2^z-1 range.
func CoveringTiles(b Bounds, zoom, margin int) TileRect {
	minXf, maxYf := tileXY(b.SouthWest, zoom)
	maxXf, minYf := tileXY(b.NorthEast, zoom)

	limit := int(math.Exp2(float64(zoom))) - 1
	return TileRect{
		Z:    zoom,
		MinX: clampTile(int(math.Floor(minXf))-margin, limit),
		MaxX: clampTile(int(math.Floor(maxXf))+margin, limit),
		MinY: clampTile(int(math.Floor(minYf))-margin, limit),
		MaxY: clampTile(int(math.Floor(maxYf))+margin, limit),
	}
}

func clampTile(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
