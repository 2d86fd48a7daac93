// Package track holds the track model and the algorithms that reduce,
// enrich and export ordered sequences of track points.
package track

import (
	"strings"

	"github.com/woozymasta/geotrack/internal/geo"
)

// DefaultPace is the placeholder pace (min/km) given to parsed activity
// samples until a real pace can be computed.
const DefaultPace = 10.0

// Point is a single recorded sample. Every telemetry field is optional:
// an empty Time or a nil pointer means the source did not carry it.
type Point struct {
	DistanceMeters *float64 `json:"distanceMeters" yaml:"distance_meters"`
	Speed          *float64 `json:"speed" yaml:"speed"`     // m/s
	Cadence        *int     `json:"cadence" yaml:"cadence"` // steps or rpm
	HeartRate      *int     `json:"heartRate" yaml:"heart_rate"`
	Pace           *float64 `json:"pace" yaml:"pace"` // min/km
	Time           string   `json:"time,omitempty" yaml:"time,omitempty"`
	Lng            float64  `json:"lng" yaml:"lng"`
	Lat            float64  `json:"lat" yaml:"lat"`
}

// Track is an ordered, chronological sequence of points.
type Track []Point

// GeoPoint returns the position of the sample.
func (p Point) GeoPoint() geo.Point {
	return geo.Point{Lng: p.Lng, Lat: p.Lat}
}

// Clone returns a copy of t that shares no backing array with it.
// Optional fields are pointers and are shared, they are never mutated in place.
func (t Track) Clone() Track {
	if t == nil {
		return nil
	}
	out := make(Track, len(t))
	copy(out, t)
	return out
}

// ToDatum returns a copy of t with every position moved from one datum to
// another.
func (t Track) ToDatum(from, to geo.Datum) (Track, error) {
	out := t.Clone()
	if from == to {
		return out, nil
	}

	for i := range out {
		p, err := geo.Convert(out[i].GeoPoint(), from, to)
		if err != nil {
			return nil, err
		}
		out[i].Lng, out[i].Lat = p.Lng, p.Lat
	}

	return out, nil
}

// IsRun reports whether the activity type is a running activity.
func IsRun(activityType string) bool {
	return strings.EqualFold(activityType, "run")
}

// PaceFromSpeed converts meters per second to minutes per kilometer.
func PaceFromSpeed(speed float64) float64 {
	return 1000.0 / 60 / speed
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
