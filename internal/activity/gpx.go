package activity

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tkrajina/gpxgo/gpx"
	"github.com/woozymasta/geotrack/internal/metrics"
	"github.com/woozymasta/geotrack/internal/track"
)

// ParseGPX parses a GPX 1.0/1.1 document. Every track point carries a
// position; speed is always derived from time and distance.
func ParseGPX(data []byte) (*Activity, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, &track.ParseError{Format: string(FormatGPX), Token: -1, Err: err}
	}

	act := &Activity{Type: UnknownType, TrackPoints: track.Track{}}
	if len(g.Tracks) > 0 && g.Tracks[0].Type != "" {
		act.Type = g.Tracks[0].Type
	}

	for _, trk := range g.Tracks {
		for _, seg := range trk.Segments {
			for _, pt := range seg.Points {
				p := track.Point{
					Lat:  pt.Latitude,
					Lng:  pt.Longitude,
					Pace: track.Float(track.DefaultPace),
				}
				if !pt.Timestamp.IsZero() {
					p.Time = pt.Timestamp.UTC().Format(time.RFC3339Nano)
				}
				act.TrackPoints = append(act.TrackPoints, p)
			}
		}
	}

	track.BackfillSpeed(act.TrackPoints, act.Type)

	metrics.TracksParsed.WithLabelValues(string(FormatGPX)).Inc()
	metrics.PointsParsed.WithLabelValues(string(FormatGPX)).Add(float64(len(act.TrackPoints)))

	log.Debug().
		Str("activity", act.Type).
		Int("tracks", len(g.Tracks)).
		Int("points", len(act.TrackPoints)).
		Msg("GPX parsed")

	return act, nil
}
