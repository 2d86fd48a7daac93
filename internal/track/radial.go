package track

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/woozymasta/geotrack/internal/geo"
)

// RadialPrefilter thins a dense planar polyline before Douglas-Peucker.
// It keeps both ends and each point at which the path length walked since
// the previous kept point reaches the average segment length.
func RadialPrefilter(line orb.LineString) orb.LineString {
	keep := radialMask(line)

	out := make(orb.LineString, 0, len(line))
	for i, p := range line {
		if keep[i] {
			out = append(out, p)
		}
	}

	return out
}

// RadialPrefilterTrack applies RadialPrefilter to the Web-Mercator
// projection of t. Retained points keep their telemetry.
func RadialPrefilterTrack(t Track) Track {
	keep := radialMask(projected(t))

	out := make(Track, 0, len(t))
	for i, p := range t {
		if keep[i] {
			out = append(out, p)
		}
	}

	return out
}

func radialMask(line orb.LineString) []bool {
	keep := make([]bool, len(line))
	if len(line) <= 2 {
		for i := range keep {
			keep[i] = true
		}
		return keep
	}

	avg := planar.Length(line) / float64(len(line)-1)
	keep[0], keep[len(line)-1] = true, true

	walked := 0.0
	for i := 1; i < len(line)-1; i++ {
		walked += planar.Distance(line[i-1], line[i])
		if walked >= avg {
			keep[i] = true
			walked = 0
		}
	}

	return keep
}

// projected returns the Web-Mercator polyline of t in meters.
func projected(t Track) orb.LineString {
	line := make(orb.LineString, len(t))
	for i, p := range t {
		x, y := geo.ToMercator(p.Lng, p.Lat)
		line[i] = orb.Point{x, y}
	}
	return line
}
