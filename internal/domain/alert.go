package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// SeverityTier is the four-level hazard scale. The integer value is the
// draw rank: higher tiers are drawn later and sit on top.
type SeverityTier int

const (
	SeverityMinor SeverityTier = iota
	SeverityModerate
	SeveritySevere
	SeverityExtreme
)

// ParseSeverity maps an NWS severity string to a tier. Unknown or absent
// severities rank as minor so they never cover a real warning.
func ParseSeverity(s string) SeverityTier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "moderate":
		return SeverityModerate
	case "severe":
		return SeveritySevere
	case "extreme":
		return SeverityExtreme
	default:
		return SeverityMinor
	}
}

func (t SeverityTier) String() string {
	switch t {
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	case SeverityExtreme:
		return "extreme"
	default:
		return "minor"
	}
}

// Alert is one active hazard with its polygon geometry, when the feed
// provides one. Zone-based alerts carry a nil Geometry.
type Alert struct {
	ID          string
	Severity    SeverityTier
	Geometry    orb.Geometry // Polygon or MultiPolygon, nil when zone-based
	Title       string
	Description string
	Urgency     string
	Expires     time.Time // zero when the feed omits it
}

// HasGeometry reports whether the alert can be drawn as a polygon.
func (a Alert) HasGeometry() bool {
	switch a.Geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	default:
		return false
	}
}

// CountGeometryBearing returns how many alerts carry drawable geometry.
func CountGeometryBearing(alerts []Alert) int {
	n := 0
	for _, a := range alerts {
		if a.HasGeometry() {
			n++
		}
	}
	return n
}

// SortBySeverity stable-sorts ascending by tier so that more severe
// polygons are drawn later and appear on top.
func SortBySeverity(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity < alerts[j].Severity
	})
}

// ParseAlertCollection decodes an NWS active-alerts GeoJSON
// FeatureCollection into Alerts. Alerts already expired at parse time are
// dropped; features with unparseable expiry keep a zero Expires rather
// than being discarded.
func ParseAlertCollection(data []byte) ([]Alert, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse alert collection: %w", err)
	}

	now := clock.Now()
	alerts := make([]Alert, 0, len(fc.Features))
	for _, feat := range fc.Features {
		a := Alert{
			ID:          featureString(feat, "id"),
			Severity:    ParseSeverity(featureString(feat, "severity")),
			Title:       featureString(feat, "headline"),
			Description: featureString(feat, "description"),
			Urgency:     featureString(feat, "urgency"),
		}
		if a.Title == "" {
			a.Title = featureString(feat, "event")
		}
		if a.ID == "" {
			if id, ok := feat.ID.(string); ok {
				a.ID = id
			}
		}
		if exp := featureString(feat, "expires"); exp != "" {
			if t, err := time.Parse(time.RFC3339, exp); err == nil {
				a.Expires = t
			}
		}
		if !a.Expires.IsZero() && a.Expires.Before(now) {
			continue
		}

		switch g := feat.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			a.Geometry = g
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func featureString(feat *geojson.Feature, key string) string {
	if value, found := feat.Properties[key]; found {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return ""
}
