package track

import (
	"math"

	"github.com/paulmach/orb"
)

// SimplifyDouglas reduces a planar polyline with the Douglas-Peucker algorithm.
// Coordinates are treated as Cartesian, so epsilon is in input units.
// The first and last points are always kept; a negative epsilon acts as zero.
func SimplifyDouglas(line orb.LineString, epsilon float64) orb.LineString {
	keep := douglasMask(line, epsilon)

	out := make(orb.LineString, 0, len(line))
	for i, p := range line {
		if keep[i] {
			out = append(out, p)
		}
	}

	return out
}

// SimplifyTrackDouglas runs Douglas-Peucker over the Web-Mercator projection
// of t, epsilon is in projected meters. Retained points keep their telemetry.
func SimplifyTrackDouglas(t Track, epsilon float64) Track {
	keep := douglasMask(projected(t), epsilon)

	out := make(Track, 0, len(t))
	for i, p := range t {
		if keep[i] {
			out = append(out, p)
		}
	}

	return out
}

// douglasMask marks the indices of line retained by Douglas-Peucker.
func douglasMask(line orb.LineString, epsilon float64) []bool {
	keep := make([]bool, len(line))
	if len(line) <= 2 {
		for i := range keep {
			keep[i] = true
		}
		return keep
	}
	if epsilon < 0 {
		epsilon = 0
	}

	keep[0], keep[len(line)-1] = true, true
	douglasSplit(line, 0, len(line)-1, epsilon, keep)

	return keep
}

// douglasSplit handles the segment line[first..last]; both ends are already kept.
func douglasSplit(line orb.LineString, first, last int, epsilon float64, keep []bool) {
	if last-first < 2 {
		return
	}

	maxDist := 0.0
	index := first
	for i := first + 1; i < last; i++ {
		// strict comparison keeps the first index on ties
		if d := segmentDistance(line[i], line[first], line[last]); d > maxDist {
			maxDist = d
			index = i
		}
	}

	if maxDist <= epsilon {
		return
	}

	keep[index] = true
	douglasSplit(line, first, index, epsilon, keep)
	douglasSplit(line, index, last, epsilon, keep)
}

// segmentDistance returns the distance from p to the segment a-b.
// A zero-length segment degenerates to the distance from p to a.
func segmentDistance(p, a, b orb.Point) float64 {
	x, y := p[0], p[1]
	x1, y1 := a[0], a[1]
	x2, y2 := b[0], b[1]

	dx, dy := x2-x1, y2-y1
	lenSq := dx*dx + dy*dy

	param := -1.0
	if lenSq != 0 {
		param = ((x-x1)*dx + (y-y1)*dy) / lenSq
	}

	var xx, yy float64
	switch {
	case param < 0:
		xx, yy = x1, y1
	case param > 1:
		xx, yy = x2, y2
	default:
		xx, yy = x1+param*dx, y1+param*dy
	}

	return math.Hypot(x-xx, y-yy)
}
