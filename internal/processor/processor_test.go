package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/woozymasta/geotrack/internal/config"
	"github.com/woozymasta/geotrack/internal/geo"
	"github.com/woozymasta/geotrack/internal/track"
)

const sampleTCX = `<TrainingCenterDatabase><Activities><Activity Sport="Run"><Lap><Track>
<Trackpoint><Time>2024-05-01T06:00:00Z</Time><Position><LatitudeDegrees>39.9</LatitudeDegrees><LongitudeDegrees>116.3</LongitudeDegrees></Position></Trackpoint>
<Trackpoint><Time>2024-05-01T06:00:01Z</Time><Position><LatitudeDegrees>39.9</LatitudeDegrees><LongitudeDegrees>116.3</LongitudeDegrees></Position></Trackpoint>
<Trackpoint><Time>2024-05-01T06:01:00Z</Time><Position><LatitudeDegrees>39.9018</LatitudeDegrees><LongitudeDegrees>116.3</LongitudeDegrees></Position></Trackpoint>
</Track></Lap></Activity></Activities></TrainingCenterDatabase>`

type mapFetcher struct {
	docs  map[string]string
	calls atomic.Int32
}

func (m *mapFetcher) Get(_ context.Context, source string) ([]byte, error) {
	m.calls.Add(1)
	body, ok := m.docs[source]
	if !ok {
		return nil, &track.FetchError{Source: source, StatusCode: 404}
	}
	return []byte(body), nil
}

func newFetcher() *mapFetcher {
	return &mapFetcher{docs: map[string]string{
		"https://example.com/run.tcx":  sampleTCX,
		"https://example.com/walk.ypx": `"[39916800,116397428]-0-[39926800,116397428]-0"`,
	}}
}

func TestDetectKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"https://example.com/a.ypx?sig=1": KindYPX,
		"a.gpx":                           KindGPX,
		"a.tcx":                           KindTCX,
		"https://example.com/export":      KindTCX,
	} {
		if got := DetectKind(in); got != want {
			t.Errorf("DetectKind(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestProcessActivity(t *testing.T) {
	req := Request{
		Source:      "https://example.com/run.tcx",
		Datum:       geo.GCJ02,
		Method:      config.SimplifyDistance,
		MinDistance: 1,
	}

	res, err := Process(context.Background(), newFetcher(), req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.ActivityType != "Run" || res.InputPoints != 3 {
		t.Errorf("result = %+v", res)
	}
	// the duplicate second sample is within 1 m of the first
	if len(res.TrackPoints) != 2 {
		t.Fatalf("got %d points; want 2", len(res.TrackPoints))
	}
	want := geo.WGS84ToGCJ02(116.3, 39.9)
	if res.TrackPoints[0].Lng != want.Lng || res.TrackPoints[0].Lat != want.Lat {
		t.Errorf("datum not applied: %v", res.TrackPoints[0].GeoPoint())
	}
}

func TestProcessYPXKeepsSourceDatum(t *testing.T) {
	res, err := Process(context.Background(), newFetcher(), Request{Source: "https://example.com/walk.ypx"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Datum != geo.GCJ02 || len(res.TrackPoints) != 2 {
		t.Errorf("result = %+v", res)
	}

	_, err = Process(context.Background(), newFetcher(), Request{Source: "https://example.com/walk.ypx", Datum: geo.WGS84})
	if !errors.Is(err, geo.ErrUnsupportedConversion) {
		t.Errorf("expected ErrUnsupportedConversion, got %v", err)
	}
}

func TestProcessErrors(t *testing.T) {
	_, err := Process(context.Background(), newFetcher(), Request{Source: "https://example.com/missing.tcx"})
	var fe *track.FetchError
	if !errors.As(err, &fe) {
		t.Errorf("expected FetchError, got %v", err)
	}

	_, err = Process(context.Background(), newFetcher(), Request{Source: "https://example.com/run.tcx", Method: "spline"})
	if err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestProcessBatch(t *testing.T) {
	f := newFetcher()
	reqs := []Request{
		{Source: "https://example.com/run.tcx"},
		{Source: "https://example.com/missing.tcx"},
		{Source: "https://example.com/walk.ypx", Method: config.SimplifyDouglas, Epsilon: 1},
	}

	var done atomic.Int32
	outcomes := ProcessBatch(context.Background(), f, reqs, 2, func(Outcome) { done.Add(1) })

	if done.Load() != 3 || f.calls.Load() != 3 {
		t.Errorf("done=%d calls=%d", done.Load(), f.calls.Load())
	}
	for i, o := range outcomes {
		if o.Index != i || o.Request.Source != reqs[i].Source {
			t.Errorf("outcome %d out of order: %+v", i, o)
		}
	}
	if outcomes[0].Err != nil || outcomes[1].Err == nil || outcomes[2].Err != nil {
		t.Errorf("unexpected errors: %v %v %v", outcomes[0].Err, outcomes[1].Err, outcomes[2].Err)
	}
}

func TestWriteFormats(t *testing.T) {
	res, err := Process(context.Background(), newFetcher(), Request{Source: "https://example.com/run.tcx"})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, res, FormatGeoJSON, 0); err != nil {
		t.Fatalf("geojson: %v", err)
	}
	var fc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &fc); err != nil || fc["type"] != "FeatureCollection" {
		t.Errorf("geojson output %q: %v", buf.String(), err)
	}

	buf.Reset()
	if err := Write(&buf, res, FormatJSON, 0); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !strings.Contains(buf.String(), `"activityType": "Run"`) {
		t.Errorf("json output %q", buf.String())
	}

	buf.Reset()
	if err := Write(&buf, res, FormatYAML, 0); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if !strings.Contains(buf.String(), "activity_type: Run") {
		t.Errorf("yaml output %q", buf.String())
	}

	if err := Write(&buf, res, "kml", 0); err == nil {
		t.Error("expected error for kml")
	}
}

func TestSave(t *testing.T) {
	res := &Result{Source: "https://example.com/dir/run.tcx?x=1", TrackPoints: track.Track{{Lng: 1, Lat: 2}}}

	dir := t.TempDir()
	path, err := Save(dir, res, FormatGeoJSON, 0)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != filepath.Join(dir, "run.geojson") {
		t.Errorf("path = %q", path)
	}
	if data, err := os.ReadFile(path); err != nil || len(data) == 0 {
		t.Errorf("saved file empty: %v", err)
	}
}

func TestOutputNamesDistinct(t *testing.T) {
	sources := []string{
		"https://a.example/u1/activity.tcx",
		"https://b.example/u2/activity.tcx",
		"morning.gpx",
		"https://a.example/u1/activity.tcx",
	}

	names := OutputNames(sources, FormatGeoJSON)

	if names[2] != "morning.geojson" {
		t.Errorf("unique name changed: %q", names[2])
	}
	seen := map[string]bool{}
	for i, n := range names {
		if seen[n] {
			t.Errorf("duplicate output name %q", n)
		}
		seen[n] = true
		if !strings.HasSuffix(n, ".geojson") || (i != 2 && !strings.HasPrefix(n, "activity-")) {
			t.Errorf("name %d = %q", i, n)
		}
	}
	if again := OutputNames(sources, FormatGeoJSON); again[0] != names[0] || again[1] != names[1] {
		t.Errorf("names not stable: %v vs %v", again, names)
	}
}

func TestSaveAsKeepsSameNamedSources(t *testing.T) {
	a := &Result{Source: "https://a.example/u1/activity.tcx", TrackPoints: track.Track{{Lng: 1, Lat: 2}}}
	b := &Result{Source: "https://b.example/u2/activity.tcx", TrackPoints: track.Track{{Lng: 3, Lat: 4}}}
	names := OutputNames([]string{a.Source, b.Source}, FormatJSON)

	dir := t.TempDir()
	for i, res := range []*Result{a, b} {
		if _, err := SaveAs(dir, names[i], res, FormatJSON, 0); err != nil {
			t.Fatalf("SaveAs: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d files; want 2", len(entries))
	}
}

// shiftConverter stands in for a remote service with a fixed offset.
type shiftConverter struct {
	err   error
	calls int
}

func (c *shiftConverter) Convert(_ context.Context, points []geo.Point) ([]geo.Point, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	out := make([]geo.Point, len(points))
	for i, p := range points {
		out[i] = geo.Point{Lng: p.Lng + 1, Lat: p.Lat + 1}
	}
	return out, nil
}

func TestProcessWithConverter(t *testing.T) {
	conv := &shiftConverter{}

	res, err := Process(context.Background(), newFetcher(), Request{
		Source:    "https://example.com/run.tcx",
		Datum:     geo.GCJ02,
		Converter: conv,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if conv.calls != 1 || res.TrackPoints[0].Lng != 117.3 || res.TrackPoints[0].Lat != 40.9 {
		t.Errorf("calls=%d first=%v", conv.calls, res.TrackPoints[0].GeoPoint())
	}

	// bd09 continues closed-form from the converted positions
	res, err = Process(context.Background(), newFetcher(), Request{
		Source:    "https://example.com/run.tcx",
		Datum:     geo.BD09,
		Converter: conv,
	})
	if err != nil {
		t.Fatalf("Process bd09: %v", err)
	}
	want := geo.GCJ02ToBD09(geo.Point{Lng: 117.3, Lat: 40.9})
	if got := res.TrackPoints[0].GeoPoint(); got != want {
		t.Errorf("bd09 first = %v; want %v", got, want)
	}

	// wgs84 output needs no conversion
	if _, err := Process(context.Background(), newFetcher(), Request{Source: "https://example.com/run.tcx", Converter: conv}); err != nil {
		t.Fatal(err)
	}
	if conv.calls != 2 {
		t.Errorf("converter called for wgs84 output, calls=%d", conv.calls)
	}
}

func TestProcessYPXWithConverter(t *testing.T) {
	conv := &shiftConverter{}

	res, err := Process(context.Background(), newFetcher(), Request{Source: "https://example.com/walk.ypx", Converter: conv})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Datum != geo.GCJ02 || conv.calls != 1 {
		t.Fatalf("datum=%s calls=%d", res.Datum, conv.calls)
	}
	if p := res.TrackPoints[0]; p.Lng != 116.397428+1 || p.Lat != 39.9168+1 {
		t.Errorf("first = %v", p.GeoPoint())
	}
}

func TestProcessConverterFailure(t *testing.T) {
	conv := &shiftConverter{err: errors.New("quota exceeded")}

	_, err := Process(context.Background(), newFetcher(), Request{
		Source:    "https://example.com/run.tcx",
		Datum:     geo.GCJ02,
		Converter: conv,
	})
	if !errors.Is(err, ErrProvider) || !errors.Is(err, conv.err) {
		t.Errorf("expected ErrProvider wrapping the cause, got %v", err)
	}
}

func TestProcessPrefilter(t *testing.T) {
	// a zigzag near the equator, the middle stretch far denser than the ends
	lngs := []float64{0, 0.010, 0.011, 0.012, 0.013, 0.014, 0.015, 0.016, 0.030}
	var b strings.Builder
	b.WriteString(`<TrainingCenterDatabase><Activities><Activity Sport="Biking"><Lap><Track>`)
	for i, lng := range lngs {
		lat := "0"
		if i%2 == 1 {
			lat = "0.001"
		}
		b.WriteString(`<Trackpoint><Position><LatitudeDegrees>` + lat + `</LatitudeDegrees><LongitudeDegrees>`)
		b.WriteString(strconv.FormatFloat(lng, 'f', -1, 64))
		b.WriteString(`</LongitudeDegrees></Position></Trackpoint>`)
	}
	b.WriteString(`</Track></Lap></Activity></Activities></TrainingCenterDatabase>`)

	f := &mapFetcher{docs: map[string]string{"dense.tcx": b.String()}}
	req := Request{Source: "dense.tcx", Method: config.SimplifyDouglas, Epsilon: -1}

	plain, err := Process(context.Background(), f, req)
	if err != nil {
		t.Fatal(err)
	}
	req.Prefilter = true
	thinned, err := Process(context.Background(), f, req)
	if err != nil {
		t.Fatal(err)
	}

	if len(plain.TrackPoints) != len(lngs) || len(thinned.TrackPoints) >= len(plain.TrackPoints) {
		t.Errorf("prefilter kept %d of %d points", len(thinned.TrackPoints), len(plain.TrackPoints))
	}
	first, last := thinned.TrackPoints[0], thinned.TrackPoints[len(thinned.TrackPoints)-1]
	if first.Lng != 0 || last.Lng != 0.030 {
		t.Errorf("endpoints lost: %v %v", first.GeoPoint(), last.GeoPoint())
	}
}
