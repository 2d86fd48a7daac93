// Package activity parses recorded activity files into tracks.
package activity

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/geotrack/internal/track"
)

// UnknownType is the activity type used when the document names none.
const UnknownType = "unknown"

// Format is an activity file format.
type Format string

const (
	FormatTCX Format = "tcx"
	FormatGPX Format = "gpx"
)

// Activity is a parsed activity file. Positions are WGS84.
type Activity struct {
	Type        string      `json:"activityType" yaml:"activity_type"`
	TrackPoints track.Track `json:"trackPoints" yaml:"track_points"`
}

// Fetcher retrieves a source document.
type Fetcher interface {
	Get(ctx context.Context, source string) ([]byte, error)
}

// ParseFormat resolves a format name, an empty name means "detect".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "":
		return "", nil
	case FormatTCX:
		return FormatTCX, nil
	case FormatGPX:
		return FormatGPX, nil
	}
	return "", fmt.Errorf("unknown activity format %q", s)
}

// DetectFormat guesses the format of a source from its extension.
// Anything that is not a .gpx file is treated as TCX.
func DetectFormat(source string) Format {
	p := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		p = u.Path
	}
	if strings.EqualFold(path.Ext(p), ".gpx") {
		return FormatGPX
	}
	return FormatTCX
}

// Parse decodes an activity document of the given format.
func Parse(data []byte, format Format) (*Activity, error) {
	switch format {
	case FormatGPX:
		return ParseGPX(data)
	case FormatTCX, "":
		return ParseTCX(data)
	}
	return nil, fmt.Errorf("unknown activity format %q", format)
}

// Load fetches source and parses it. An empty format is detected from the
// source name. Retrieval failures are *track.FetchError, malformed documents
// are *track.ParseError.
func Load(ctx context.Context, f Fetcher, source string, format Format) (*Activity, error) {
	if format == "" {
		format = DetectFormat(source)
	}

	data, err := f.Get(ctx, source)
	if err != nil {
		return nil, err
	}

	act, err := Parse(data, format)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("source", source).
		Str("format", string(format)).
		Str("activity", act.Type).
		Int("points", len(act.TrackPoints)).
		Msg("Activity loaded")

	return act, nil
}

// FetchTCX loads a TCX document regardless of the source extension.
func FetchTCX(ctx context.Context, f Fetcher, source string) (*Activity, error) {
	return Load(ctx, f, source, FormatTCX)
}

// parseFloat reads a finite decimal value, nil when absent or not a number.
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// parseInt reads an integer value, decimals are truncated.
func parseInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return &v
	}
	f := parseFloat(s)
	if f == nil || *f >= math.MaxInt32+1 || *f <= math.MinInt32-1 {
		return nil
	}
	v := int(*f)
	return &v
}

// initialPace returns the pace a freshly parsed sample starts with.
func initialPace(activityType string, speed *float64) *float64 {
	if track.IsRun(activityType) && speed != nil && *speed > 0 {
		return track.Float(track.PaceFromSpeed(*speed))
	}
	return track.Float(track.DefaultPace)
}
