package track

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tdewolff/minify/v2"
	mjson "github.com/tdewolff/minify/v2/json"
)

const jsonMime = "application/json"

// LineString returns the positions of t as a lng/lat polyline.
func (t Track) LineString() orb.LineString {
	ls := make(orb.LineString, len(t))
	for i, p := range t {
		ls[i] = orb.Point{p.Lng, p.Lat}
	}
	return ls
}

// FeatureCollection builds the GeoJSON hand-off for a track: one LineString
// feature whose properties carry per-point telemetry arrays aligned with the
// coordinates. Extra properties are copied onto the feature.
func FeatureCollection(t Track, props map[string]interface{}) *geojson.FeatureCollection {
	f := geojson.NewFeature(t.LineString())

	for k, v := range props {
		f.Properties[k] = v
	}

	times := make([]interface{}, len(t))
	distances := make([]interface{}, len(t))
	speeds := make([]interface{}, len(t))
	paces := make([]interface{}, len(t))
	cadences := make([]interface{}, len(t))
	heartRates := make([]interface{}, len(t))

	for i, p := range t {
		if p.Time != "" {
			times[i] = p.Time
		}
		distances[i] = floatOrNil(p.DistanceMeters)
		speeds[i] = floatOrNil(p.Speed)
		paces[i] = floatOrNil(p.Pace)
		cadences[i] = intOrNil(p.Cadence)
		heartRates[i] = intOrNil(p.HeartRate)
	}

	f.Properties["coordTimes"] = times
	f.Properties["distances"] = distances
	f.Properties["speeds"] = speeds
	f.Properties["paces"] = paces
	f.Properties["cadences"] = cadences
	f.Properties["heartRates"] = heartRates
	f.Properties["points"] = len(t)

	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc
}

// WriteGeoJSON marshals fc and writes it through the JSON minifier.
// A positive precision limits the significant digits of every number.
func WriteGeoJSON(w io.Writer, fc *geojson.FeatureCollection, precision int) error {
	raw, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}

	m := minify.New()
	m.Add(jsonMime, &mjson.Minifier{Precision: precision})

	if err := m.Minify(jsonMime, w, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("minify geojson: %w", err)
	}

	return nil
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func intOrNil(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
