package track

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/geotrack/internal/geo"
	"github.com/woozymasta/geotrack/internal/metrics"
)

// zone-less timestamps are read as UTC
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTime parses an ISO-8601 sample timestamp.
func ParseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// BackfillSpeed fills missing speeds in place from the time and distance
// between consecutive samples, and recomputes pace for running activities.
// Pairs that cannot be computed are logged and skipped. It returns the number
// of samples that received a speed.
func BackfillSpeed(t Track, activityType string) int {
	run := IsRun(activityType)
	filled := 0

	for i := 1; i < len(t); i++ {
		prev, curr := &t[i-1], &t[i]
		if curr.Speed != nil || prev.Time == "" || curr.Time == "" {
			continue
		}

		speed, ok, err := pairSpeed(prev, curr)
		if err != nil {
			skip := &SkipError{Index: i, Err: err}
			metrics.BackfillSkips.Inc()
			log.Warn().
				Err(skip).
				Int("prev", i-1).
				Int("index", i).
				Msg("Cannot compute speed between points")
			continue
		}
		if !ok {
			continue
		}

		curr.Speed = Float(speed)
		// a stationary pair keeps the placeholder pace
		if run && speed > 0 {
			curr.Pace = Float(PaceFromSpeed(speed))
		}
		filled++
	}

	return filled
}

// pairSpeed returns the speed between two samples and whether it is usable.
func pairSpeed(prev, curr *Point) (float64, bool, error) {
	t0, err := ParseTime(prev.Time)
	if err != nil {
		return 0, false, fmt.Errorf("previous time: %w", err)
	}
	t1, err := ParseTime(curr.Time)
	if err != nil {
		return 0, false, fmt.Errorf("current time: %w", err)
	}
	dt := t1.Sub(t0).Seconds()

	var dd float64
	if prev.DistanceMeters != nil && curr.DistanceMeters != nil {
		dd = *curr.DistanceMeters - *prev.DistanceMeters
	} else {
		dd = geo.Distance(prev.Lat, prev.Lng, curr.Lat, curr.Lng)
	}

	if dt > 0 && dd >= 0 {
		return dd / dt, true, nil
	}
	return 0, false, nil
}
