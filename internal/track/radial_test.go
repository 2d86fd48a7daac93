package track

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestRadialPrefilter(t *testing.T) {
	// segment lengths 1, 1, 4, 1, 1: average 1.6
	in := orb.LineString{{0, 0}, {1, 0}, {2, 0}, {6, 0}, {7, 0}, {8, 0}}
	want := orb.LineString{{0, 0}, {2, 0}, {6, 0}, {8, 0}}

	got := RadialPrefilter(in)
	if !equalLines(got, want) {
		t.Errorf("got %v; want %v", got, want)
	}
}

func TestRadialPrefilterShort(t *testing.T) {
	in := orb.LineString{{0, 0}, {1, 1}}
	got := RadialPrefilter(in)
	if !equalLines(got, in) {
		t.Errorf("got %v; want %v", got, in)
	}

	got[0] = orb.Point{9, 9}
	if in[0] == got[0] {
		t.Error("short input is aliased")
	}
}

func TestRadialPrefilterTrackKeepsTelemetry(t *testing.T) {
	// uneven spacing along the equator: 1, 1, 4, 1, 1 hundredths of a degree
	tr := Track{
		{Lng: 0.00, HeartRate: Int(100)},
		{Lng: 0.01, HeartRate: Int(101)},
		{Lng: 0.02, HeartRate: Int(102)},
		{Lng: 0.06, HeartRate: Int(103)},
		{Lng: 0.07, HeartRate: Int(104)},
		{Lng: 0.08, HeartRate: Int(105)},
	}

	got := RadialPrefilterTrack(tr)

	want := []int{100, 102, 103, 105}
	if len(got) != len(want) {
		t.Fatalf("got %d points; want %d", len(got), len(want))
	}
	for i, p := range got {
		if *p.HeartRate != want[i] {
			t.Errorf("point %d heart rate %d; want %d", i, *p.HeartRate, want[i])
		}
	}
	if len(tr) != 6 {
		t.Error("input modified")
	}
}
