package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const activeAlertsJSON = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"id": "urn:oid:2.49.0.1.840.0.1",
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[-98.0, 37.0], [-97.0, 37.0], [-97.0, 38.0], [-98.0, 38.0], [-98.0, 37.0]]]
			},
			"properties": {
				"id": "urn:oid:2.49.0.1.840.0.1",
				"event": "Tornado Warning",
				"headline": "Tornado Warning issued for Sedgwick County",
				"description": "A confirmed tornado is on the ground.",
				"severity": "Extreme",
				"urgency": "Immediate",
				"expires": "2026-04-26T16:00:00Z"
			}
		},
		{
			"type": "Feature",
			"id": "urn:oid:2.49.0.1.840.0.2",
			"geometry": null,
			"properties": {
				"id": "urn:oid:2.49.0.1.840.0.2",
				"event": "Wind Advisory",
				"severity": "Minor",
				"urgency": "Expected",
				"expires": "2026-04-26T20:00:00Z"
			}
		},
		{
			"type": "Feature",
			"id": "urn:oid:2.49.0.1.840.0.3",
			"geometry": {
				"type": "MultiPolygon",
				"coordinates": [[[[-95.0, 35.0], [-94.0, 35.0], [-94.0, 36.0], [-95.0, 35.0]]]]
			},
			"properties": {
				"id": "urn:oid:2.49.0.1.840.0.3",
				"event": "Severe Thunderstorm Warning",
				"headline": "Severe Thunderstorm Warning for Tulsa County",
				"description": "60 mph wind gusts and quarter size hail.",
				"severity": "Severe",
				"urgency": "Immediate",
				"expires": "2026-04-26T10:00:00Z"
			}
		}
	]
}`

func TestParseAlertCollection(t *testing.T) {
	// Freeze time so expiry filtering is deterministic: the third feature
	// expired an hour ago.
	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 4, 26, 11, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	alerts, err := ParseAlertCollection([]byte(activeAlertsJSON))
	require.NoError(t, err)
	require.Len(t, alerts, 2, "the expired alert is dropped")

	tornado := alerts[0]
	assert.Equal(t, "urn:oid:2.49.0.1.840.0.1", tornado.ID)
	assert.Equal(t, SeverityExtreme, tornado.Severity)
	assert.Equal(t, "Tornado Warning issued for Sedgwick County", tornado.Title)
	assert.Equal(t, "A confirmed tornado is on the ground.", tornado.Description)
	assert.Equal(t, "Immediate", tornado.Urgency)
	assert.Equal(t, time.Date(2026, 4, 26, 16, 0, 0, 0, time.UTC), tornado.Expires)
	assert.True(t, tornado.HasGeometry())
	_, ok := tornado.Geometry.(orb.Polygon)
	assert.True(t, ok)

	advisory := alerts[1]
	assert.Equal(t, SeverityMinor, advisory.Severity)
	assert.Equal(t, "Wind Advisory", advisory.Title, "falls back to event when headline is absent")
	assert.False(t, advisory.HasGeometry())
}

func TestParseAlertCollection_Invalid(t *testing.T) {
	_, err := ParseAlertCollection([]byte(`{"type": "not geojson`))
	require.Error(t, err)
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input string
		want  SeverityTier
	}{
		{"Minor", SeverityMinor},
		{"moderate", SeverityModerate},
		{"Severe", SeveritySevere},
		{"EXTREME", SeverityExtreme},
		{"Unknown", SeverityMinor},
		{"", SeverityMinor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSeverity(tt.input), "input %q", tt.input)
	}
}

func TestSortBySeverity(t *testing.T) {
	alerts := []Alert{
		{ID: "a", Severity: SeverityMinor},
		{ID: "b", Severity: SeverityExtreme},
		{ID: "c", Severity: SeverityModerate},
		{ID: "d", Severity: SeverityMinor},
	}

	SortBySeverity(alerts)

	ids := []string{alerts[0].ID, alerts[1].ID, alerts[2].ID, alerts[3].ID}
	assert.Equal(t, []string{"a", "d", "c", "b"}, ids, "ascending and stable")
}

func TestCountGeometryBearing(t *testing.T) {
	alerts := []Alert{
		{ID: "a", Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
		{ID: "b"},
		{ID: "c", Geometry: orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}}},
	}
	assert.Equal(t, 2, CountGeometryBearing(alerts))
}
