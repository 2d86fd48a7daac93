// Package processor runs the load, simplify and convert pipeline for one or
// many track sources.
package processor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/geotrack/internal/activity"
	"github.com/woozymasta/geotrack/internal/config"
	"github.com/woozymasta/geotrack/internal/geo"
	"github.com/woozymasta/geotrack/internal/track"
	"github.com/woozymasta/geotrack/internal/ypx"
)

// Kind is the encoding of a track source.
type Kind string

const (
	KindTCX Kind = "tcx"
	KindGPX Kind = "gpx"
	KindYPX Kind = "ypx"
)

// Fetcher retrieves a source document.
type Fetcher interface {
	Get(ctx context.Context, source string) ([]byte, error)
}

// Converter moves WGS84 positions to GCJ-02 through a remote service.
type Converter interface {
	Convert(ctx context.Context, points []geo.Point) ([]geo.Point, error)
}

// ErrProvider marks failures of a remote Converter.
var ErrProvider = errors.New("conversion provider failed")

// Request describes one track to produce.
type Request struct {
	// Converter, when set, replaces the closed-form WGS84 to GCJ-02 step.
	Converter   Converter
	Source      string
	Kind        Kind
	Datum       geo.Datum
	Method      string
	MinDistance float64
	Epsilon     float64
	Prefilter   bool
}

// Result is a processed track.
type Result struct {
	Source       string      `json:"source" yaml:"source"`
	ActivityType string      `json:"activityType,omitempty" yaml:"activity_type,omitempty"`
	Datum        geo.Datum   `json:"datum" yaml:"datum"`
	InputPoints  int         `json:"inputPoints" yaml:"input_points"`
	TrackPoints  track.Track `json:"trackPoints" yaml:"track_points"`
}

// ParseKind resolves a kind name, an empty name means "detect".
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case "", KindTCX, KindGPX, KindYPX:
		return k, nil
	}
	return "", fmt.Errorf("unknown source kind %q", s)
}

// DetectKind guesses the kind of a source from its extension.
func DetectKind(source string) Kind {
	p := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		p = u.Path
	}
	if strings.EqualFold(path.Ext(p), ".ypx") {
		return KindYPX
	}
	return Kind(activity.DetectFormat(source))
}

// NewRequest builds a request from configuration defaults.
func NewRequest(source string, cfg *config.Config) Request {
	return Request{
		Source:      source,
		Datum:       geo.Datum(cfg.Datum),
		Method:      cfg.Simplify.Method,
		MinDistance: cfg.Simplify.MinDistance,
		Epsilon:     cfg.Simplify.Epsilon,
		Prefilter:   cfg.Simplify.Prefilter,
	}
}

// Process loads the source, simplifies the track and moves it to the
// requested datum. Activity files are WGS84, ypx payloads are GCJ-02 unless
// a Converter is set, in which case their WGS84 positions go through it.
// Fetch and parse failures are returned unchanged, Converter failures wrap
// ErrProvider.
func Process(ctx context.Context, f Fetcher, req Request) (*Result, error) {
	kind := req.Kind
	if kind == "" {
		kind = DetectKind(req.Source)
	}
	if req.Method != "" {
		if err := config.ValidateMethod(req.Method); err != nil {
			return nil, err
		}
	}

	res := &Result{Source: req.Source}

	var (
		points track.Track
		from   geo.Datum
		// native is the datum a source is published in
		native geo.Datum
	)
	switch kind {
	case KindYPX:
		native = geo.GCJ02
		if req.Converter != nil {
			t, err := ypx.LoadWGS84(ctx, f, req.Source)
			if err != nil {
				return nil, err
			}
			points, from = t, geo.WGS84
		} else {
			t, err := ypx.Load(ctx, f, req.Source)
			if err != nil {
				return nil, err
			}
			points, from = t, geo.GCJ02
		}

	case KindTCX, KindGPX:
		act, err := activity.Load(ctx, f, req.Source, activity.Format(kind))
		if err != nil {
			return nil, err
		}
		points, from, native = act.TrackPoints, geo.WGS84, geo.WGS84
		res.ActivityType = act.Type

	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}

	// an unset datum keeps the source datum
	target := req.Datum
	if target == "" {
		target = native
	}
	res.Datum = target

	res.InputPoints = len(points)
	points = simplify(points, req)

	converted, err := toDatum(ctx, points, from, target, req.Converter)
	if err != nil {
		return nil, err
	}
	res.TrackPoints = converted

	log.Debug().
		Str("source", req.Source).
		Str("kind", string(kind)).
		Str("datum", string(target)).
		Str("method", req.Method).
		Bool("prefilter", req.Prefilter).
		Bool("remote", req.Converter != nil).
		Int("input", res.InputPoints).
		Int("output", len(res.TrackPoints)).
		Msg("Track processed")

	return res, nil
}

func simplify(t track.Track, req Request) track.Track {
	switch req.Method {
	case config.SimplifyDistance:
		return track.Simplify(t, req.MinDistance)
	case config.SimplifyDouglas:
		if req.Prefilter {
			t = track.RadialPrefilterTrack(t)
		}
		return track.SimplifyTrackDouglas(t, req.Epsilon)
	}
	return t
}

// toDatum moves t to the target datum. With a Converter, the WGS84 to
// GCJ-02 leg goes through it and any remaining leg is closed-form.
func toDatum(ctx context.Context, t track.Track, from, to geo.Datum, conv Converter) (track.Track, error) {
	if conv == nil || from != geo.WGS84 || to == geo.WGS84 || len(t) == 0 {
		return t.ToDatum(from, to)
	}
	if _, err := geo.Convert(geo.Point{}, from, to); err != nil {
		return nil, err
	}

	positions := make([]geo.Point, len(t))
	for i, p := range t {
		positions[i] = p.GeoPoint()
	}

	gcj, err := conv.Convert(ctx, positions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if len(gcj) != len(t) {
		return nil, fmt.Errorf("%w: got %d points for %d", ErrProvider, len(gcj), len(t))
	}

	out := t.Clone()
	for i := range out {
		out[i].Lng, out[i].Lat = gcj[i].Lng, gcj[i].Lat
	}

	return out.ToDatum(geo.GCJ02, to)
}

// Properties returns the feature properties describing the result.
func (r *Result) Properties() map[string]interface{} {
	props := map[string]interface{}{
		"source": r.Source,
		"datum":  string(r.Datum),
	}
	if r.ActivityType != "" {
		props["activityType"] = r.ActivityType
	}
	return props
}
