// Package domain models the radar animation frames and hazard alerts that
// the overlay engine renders onto a map surface.
//
// # Data Sources
//
// Radar frames come from the RainViewer weather-maps API. The catalog
// endpoint returns a `past` list of unix-second timestamps, newest last;
// each timestamp addresses one radar composite. Tile imagery for a frame
// is fetched from a slippy-map URL template:
//
//	{host}/v2/radar/{time}/{tileSize}/{z}/{x}/{y}/{color}/{smoothing}_{snow}.png
//
// Only the timestamp field of the catalog is consumed; everything else in
// the catalog response is provider metadata.
//
// Hazard alerts come from the National Weather Service active-alerts API
// (api.weather.gov) as a GeoJSON FeatureCollection. Each feature carries
// `properties.severity`, `properties.event`, `properties.headline`,
// `properties.description`, `properties.urgency`, `properties.expires`,
// and a Polygon or MultiPolygon geometry in WGS-84. Many NWS alerts are
// zone-based and ship a null geometry; those parse fine but cannot be
// drawn, which is why cache-replacement decisions count geometry-bearing
// alerts only.
//
// # Severity Tiers
//
// NWS severities map onto a four-level scale (minor, moderate, severe,
// extreme) used for both draw order and styling: more severe polygons are
// drawn later and sit in higher z-index bands so they are never hidden
// under less urgent ones. Unrecognized severities rank as minor.
//
// # Tile Addressing
//
// Tile coordinates use the standard Web Mercator scheme: at zoom z the
// world is a 2^z by 2^z grid of 256px tiles. [CoveringTiles] computes the
// minimal rectangle of tiles covering a viewport plus a configurable
// margin, clamped to the valid range for the zoom level.
package domain
