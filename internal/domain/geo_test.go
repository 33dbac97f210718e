package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectWebMercator(t *testing.T) {
	t.Run("origin maps to world center", func(t *testing.T) {
		p := ProjectWebMercator(LatLng{Lat: 0, Lng: 0}, 0)
		assert.InDelta(t, 128, p.X, 0.001)
		assert.InDelta(t, 128, p.Y, 0.001)
	})

	t.Run("doubles with each zoom level", func(t *testing.T) {
		p0 := ProjectWebMercator(LatLng{Lat: 39.0, Lng: -94.5}, 5)
		p1 := ProjectWebMercator(LatLng{Lat: 39.0, Lng: -94.5}, 6)
		assert.InDelta(t, p0.X*2, p1.X, 0.001)
		assert.InDelta(t, p0.Y*2, p1.Y, 0.001)
	})
}

func TestCoveringTiles(t *testing.T) {
	// A viewport over the central US at zoom 7.
	bounds := Bounds{
		SouthWest: LatLng{Lat: 37.5, Lng: -101.0},
		NorthEast: LatLng{Lat: 42.0, Lng: -96.0},
	}

	t.Run("covers the viewport with margin", func(t *testing.T) {
		rect := CoveringTiles(bounds, 7, 1)
		noMargin := CoveringTiles(bounds, 7, 0)

		assert.Equal(t, 7, rect.Z)
		assert.Equal(t, noMargin.MinX-1, rect.MinX)
		assert.Equal(t, noMargin.MaxX+1, rect.MaxX)
		assert.Equal(t, noMargin.MinY-1, rect.MinY)
		assert.Equal(t, noMargin.MaxY+1, rect.MaxY)

		// Southwest corner must fall inside the unexpanded rectangle.
		x, y := tileXY(bounds.SouthWest, 7)
		assert.GreaterOrEqual(t, int(x), noMargin.MinX)
		assert.LessOrEqual(t, int(x), noMargin.MaxX)
		assert.GreaterOrEqual(t, int(y), noMargin.MinY)
		assert.LessOrEqual(t, int(y), noMargin.MaxY)
	})

	t.Run("clamps at the antimeridian and poles", func(t *testing.T) {
		world := Bounds{
			SouthWest: LatLng{Lat: -85, Lng: -179.9},
			NorthEast: LatLng{Lat: 85, Lng: 179.9},
		}
		rect := CoveringTiles(world, 2, 1)
		assert.Equal(t, 0, rect.MinX)
		assert.Equal(t, 3, rect.MaxX)
		assert.Equal(t, 0, rect.MinY)
		assert.Equal(t, 3, rect.MaxY)
	})

	t.Run("count and coords agree", func(t *testing.T) {
		rect := CoveringTiles(bounds, 7, 1)
		coords := rect.Coords()
		assert.Len(t, coords, rect.Count())
		for _, c := range coords {
			assert.Equal(t, 7, c.Z)
		}
	})
}

func TestTileCoordString(t *testing.T) {
	assert.Equal(t, "7/29/49", TileCoord{Z: 7, X: 29, Y: 49}.String())
}
