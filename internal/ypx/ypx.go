// Package ypx decodes the compact "ypx" track encoding.
//
// A payload is a single string, optionally wrapped in double quotes, of
// '-'-separated tokens. Even tokens are JSON arrays [latMicro, lngMicro]
// holding WGS84 degrees scaled by 1e6; odd tokens carry data this decoder
// does not use.
package ypx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/woozymasta/geotrack/internal/geo"
	"github.com/woozymasta/geotrack/internal/metrics"
	"github.com/woozymasta/geotrack/internal/track"
)

const (
	format    = "ypx"
	separator = "-"
	scale     = 1e6
)

var (
	errInvalidJSON = errors.New("invalid JSON")
	errNotPair     = errors.New("expected an array of two numbers")
)

// Fetcher retrieves a source document.
type Fetcher interface {
	Get(ctx context.Context, source string) ([]byte, error)
}

// Decode turns a payload into GCJ-02 track points. The first malformed
// coordinate token aborts decoding with a *track.ParseError.
func Decode(payload string) (track.Track, error) {
	points, err := DecodeWGS84(payload)
	if err != nil {
		return nil, err
	}

	for i := range points {
		p := geo.WGS84ToGCJ02(points[i].Lng, points[i].Lat)
		points[i].Lng, points[i].Lat = p.Lng, p.Lat
	}

	return points, nil
}

// DecodeWGS84 is Decode without the datum conversion, the points are the
// WGS84 positions carried by the payload.
func DecodeWGS84(payload string) (track.Track, error) {
	payload = strings.TrimPrefix(payload, `"`)
	payload = strings.TrimSuffix(payload, `"`)

	tokens := strings.Split(payload, separator)
	points := make(track.Track, 0, (len(tokens)+1)/2)

	for i := 0; i < len(tokens); i += 2 {
		lat, lng, err := decodePair(tokens[i])
		if err != nil {
			return nil, &track.ParseError{Format: format, Token: i, Err: err}
		}

		// token order is [lat, lng]
		points = append(points, track.Point{Lng: lng, Lat: lat})
	}

	metrics.TracksParsed.WithLabelValues(format).Inc()
	metrics.PointsParsed.WithLabelValues(format).Add(float64(len(points)))

	log.Debug().Int("points", len(points)).Msg("ypx payload decoded")

	return points, nil
}

// Load fetches a payload from source and decodes it into GCJ-02 points.
func Load(ctx context.Context, f Fetcher, source string) (track.Track, error) {
	return load(ctx, f, source, Decode)
}

// LoadWGS84 fetches a payload from source and decodes it without datum
// conversion.
func LoadWGS84(ctx context.Context, f Fetcher, source string) (track.Track, error) {
	return load(ctx, f, source, DecodeWGS84)
}

func load(ctx context.Context, f Fetcher, source string, decode func(string) (track.Track, error)) (track.Track, error) {
	data, err := f.Get(ctx, source)
	if err != nil {
		return nil, err
	}

	// files usually end with a newline
	points, err := decode(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("source", source).
		Int("points", len(points)).
		Msg("ypx track loaded")

	return points, nil
}

func decodePair(token string) (lat, lng float64, err error) {
	if !gjson.Valid(token) {
		return 0, 0, fmt.Errorf("%w: %q", errInvalidJSON, token)
	}

	res := gjson.Parse(token)
	if !res.IsArray() {
		return 0, 0, errNotPair
	}

	pair := res.Array()
	if len(pair) < 2 || pair[0].Type != gjson.Number || pair[1].Type != gjson.Number {
		return 0, 0, errNotPair
	}

	return pair[0].Float() / scale, pair[1].Float() / scale, nil
}
