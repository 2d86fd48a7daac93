package track

import (
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/geotrack/internal/geo"
)

// DefaultMinDistance is the default threshold of Simplify in meters.
const DefaultMinDistance = 1.0

// Simplify drops every point closer than min meters to the last point it kept.
// The first point is always kept and the input is not modified.
func Simplify(points Track, min float64) Track {
	if len(points) == 0 {
		return Track{}
	}

	out := make(Track, 0, len(points))
	last := points[0]
	out = append(out, last)

	for _, p := range points[1:] {
		if geo.Distance(last.Lat, last.Lng, p.Lat, p.Lng) < min {
			continue
		}
		last = p
		out = append(out, p)
	}

	log.Debug().
		Int("input", len(points)).
		Int("output", len(out)).
		Float64("min_distance", min).
		Msg("Track simplified by distance")

	return out
}
