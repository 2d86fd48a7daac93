package ypx

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/woozymasta/geotrack/internal/geo"
	"github.com/woozymasta/geotrack/internal/track"
)

func TestDecodeQuotedSinglePair(t *testing.T) {
	points, err := Decode(`"[39916800,116397428]-0"`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points; want 1", len(points))
	}

	want := geo.WGS84ToGCJ02(116.397428, 39.9168)
	p := points[0]
	if math.Abs(p.Lng-want.Lng) > 1e-12 || math.Abs(p.Lat-want.Lat) > 1e-12 {
		t.Errorf("point = %f,%f; want %f,%f", p.Lng, p.Lat, want.Lng, want.Lat)
	}
	if math.Abs(p.Lng-116.4036725913) > 1e-9 || math.Abs(p.Lat-39.9182038294) > 1e-9 {
		t.Errorf("point = %.10f,%.10f", p.Lng, p.Lat)
	}
	if p.Time != "" || p.Speed != nil || p.Pace != nil || p.DistanceMeters != nil ||
		p.Cadence != nil || p.HeartRate != nil {
		t.Errorf("telemetry must be absent: %+v", p)
	}
}

func TestDecodeSkipsOddTokens(t *testing.T) {
	points, err := Decode(`[39916800,116397428]-garbage-[39917800,116398428]-{}-[1000000,2000000]`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points; want 3", len(points))
	}

	// (2, 1) is outside China and passes through unchanged
	if points[2].Lng != 2 || points[2].Lat != 1 {
		t.Errorf("last point = %v", points[2].GeoPoint())
	}
	if points[0].Lat >= points[1].Lat {
		t.Error("order not preserved")
	}
}

func TestDecodeUnquotedEqualsQuoted(t *testing.T) {
	a, err := Decode(`"[39916800,116397428]"`)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Decode(`[39916800,116397428]`)
	if err != nil {
		t.Fatal(err)
	}
	if a[0] != b[0] {
		t.Errorf("quoted %v != unquoted %v", a[0], b[0])
	}
}

func TestDecodeMalformedAborts(t *testing.T) {
	tests := []struct {
		payload string
		token   int
	}{
		{``, 0},
		{`[1,2]-0-[1,`, 2},
		{`[1,2]-0-{"a":1}`, 2},
		{`[1]`, 0},
		{`["1","2"]`, 0},
		{`[-1000000,2000000]`, 0},
	}

	for _, tt := range tests {
		_, err := Decode(tt.payload)
		var pe *track.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Decode(%q): expected ParseError, got %v", tt.payload, err)
			continue
		}
		if pe.Token != tt.token {
			t.Errorf("Decode(%q): token = %d; want %d", tt.payload, pe.Token, tt.token)
		}
	}
}

type stubFetcher map[string]string

func (s stubFetcher) Get(_ context.Context, source string) ([]byte, error) {
	body, ok := s[source]
	if !ok {
		return nil, &track.FetchError{Source: source, StatusCode: 500}
	}
	return []byte(body), nil
}

func TestLoad(t *testing.T) {
	f := stubFetcher{"https://example.com/a.ypx": `"[39916800,116397428]-0-[39917800,116398428]-0"`}

	points, err := Load(context.Background(), f, "https://example.com/a.ypx")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(points) != 2 {
		t.Errorf("got %d points", len(points))
	}

	_, err = Load(context.Background(), f, "https://example.com/b.ypx")
	var fe *track.FetchError
	if !errors.As(err, &fe) {
		t.Errorf("expected FetchError, got %v", err)
	}
}

func TestLoadWGS84SkipsConversion(t *testing.T) {
	f := stubFetcher{"https://example.com/a.ypx": "\"[39916800,116397428]-0\"\n"}

	raw, err := LoadWGS84(context.Background(), f, "https://example.com/a.ypx")
	if err != nil {
		t.Fatalf("LoadWGS84: %v", err)
	}
	if len(raw) != 1 || raw[0].Lng != 116.397428 || raw[0].Lat != 39.9168 {
		t.Fatalf("got %+v", raw)
	}

	conv, err := Load(context.Background(), f, "https://example.com/a.ypx")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := geo.WGS84ToGCJ02(116.397428, 39.9168)
	if conv[0].Lng != want.Lng || conv[0].Lat != want.Lat {
		t.Errorf("got %v; want %v", conv[0].GeoPoint(), want)
	}
}
