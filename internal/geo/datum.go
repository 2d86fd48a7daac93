// Package geo handles coordinate datums, projections and distances.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// Krasovsky 1940 ellipsoid parameters used by the GCJ-02 offset.
const (
	semiMajorAxis = 6378245.0
	eccentricity2 = 0.00669342162296594323
)

// xPi is the angular scale of the BD09 perturbation.
const xPi = math.Pi * 3000.0 / 180.0

// Point is a longitude/latitude pair in degrees.
// The datum is implied by the context that produced it.
type Point struct {
	Lng float64 `json:"lng" yaml:"lng"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// Datum names a supported geodetic datum.
type Datum string

const (
	WGS84 Datum = "wgs84"
	GCJ02 Datum = "gcj02"
	BD09  Datum = "bd09"
)

// ErrUnsupportedConversion is returned when no forward transform exists
// between two datums.
var ErrUnsupportedConversion = errors.New("unsupported datum conversion")

// ParseDatum resolves a datum name, an empty name means WGS84.
func ParseDatum(s string) (Datum, error) {
	switch Datum(s) {
	case "", WGS84:
		return WGS84, nil
	case GCJ02:
		return GCJ02, nil
	case BD09:
		return BD09, nil
	}
	return "", fmt.Errorf("unknown datum %q", s)
}

// rank orders datums along the only supported direction WGS84 -> GCJ02 -> BD09.
func (d Datum) rank() int {
	switch d {
	case WGS84:
		return 0
	case GCJ02:
		return 1
	case BD09:
		return 2
	}
	return -1
}

// OutOfChina reports whether the point lies outside the rectangle where the
// GCJ-02 offset is applied.
func OutOfChina(lng, lat float64) bool {
	return lng < 72.004 || lng > 137.8347 || lat < 0.8293 || lat > 55.8271
}

// WGS84ToGCJ02 converts GPS coordinates to the GCJ-02 datum.
// Points outside China are returned unchanged.
func WGS84ToGCJ02(lng, lat float64) Point {
	if OutOfChina(lng, lat) {
		return Point{Lng: lng, Lat: lat}
	}

	deltaLat := transformLat(lng-105.0, lat-35.0)
	deltaLng := transformLng(lng-105.0, lat-35.0)

	radLat := lat / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - eccentricity2*magic*magic
	sqrtMagic := math.Sqrt(magic)

	deltaLat = (deltaLat * 180.0) / (((semiMajorAxis * (1 - eccentricity2)) / (magic * sqrtMagic)) * math.Pi)
	deltaLng = (deltaLng * 180.0) / ((semiMajorAxis / sqrtMagic) * math.Cos(radLat) * math.Pi)

	return Point{Lng: lng + deltaLng, Lat: lat + deltaLat}
}

// GCJ02ToBD09 converts a GCJ-02 point to the BD09 datum.
func GCJ02ToBD09(p Point) Point {
	x, y := p.Lng, p.Lat
	z := math.Sqrt(x*x+y*y) + 0.00002*math.Sin(y*xPi)
	theta := math.Atan2(y, x) + 0.000003*math.Cos(x*xPi)

	return Point{
		Lng: z*math.Cos(theta) + 0.0065,
		Lat: z*math.Sin(theta) + 0.006,
	}
}

// WGS84ToBD09 converts GPS coordinates to BD09 through GCJ-02.
func WGS84ToBD09(lng, lat float64) Point {
	return GCJ02ToBD09(WGS84ToGCJ02(lng, lat))
}

// Convert moves p from one datum to another.
// Only forward conversions are available, there are no inverse transforms.
func Convert(p Point, from, to Datum) (Point, error) {
	fr, tr := from.rank(), to.rank()
	if fr < 0 || tr < 0 || tr < fr {
		return p, fmt.Errorf("%w: %s to %s", ErrUnsupportedConversion, from, to)
	}

	if fr == 0 && tr >= 1 {
		p = WGS84ToGCJ02(p.Lng, p.Lat)
	}
	if fr <= 1 && tr == 2 {
		p = GCJ02ToBD09(p)
	}

	return p, nil
}

// The two correction polynomials are empirical; keep the coefficients as is.

func transformLat(lng, lat float64) float64 {
	ret := -100.0 + 2.0*lng + 3.0*lat + 0.2*lat*lat + 0.1*lng*lat + 0.2*math.Sqrt(math.Abs(lng))
	ret += ((20.0*math.Sin(6.0*lng*math.Pi) + 20.0*math.Sin(2.0*lng*math.Pi)) * 2.0) / 3.0
	ret += ((20.0*math.Sin(lat*math.Pi) + 40.0*math.Sin((lat/3.0)*math.Pi)) * 2.0) / 3.0
	ret += ((160.0*math.Sin((lat/12.0)*math.Pi) + 320*math.Sin((lat*math.Pi)/30.0)) * 2.0) / 3.0
	return ret
}

func transformLng(lng, lat float64) float64 {
	ret := 300.0 + lng + 2.0*lat + 0.1*lng*lng + 0.1*lng*lat + 0.1*math.Sqrt(math.Abs(lng))
	ret += ((20.0*math.Sin(6.0*lng*math.Pi) + 20.0*math.Sin(2.0*lng*math.Pi)) * 2.0) / 3.0
	ret += ((20.0*math.Sin(lng*math.Pi) + 40.0*math.Sin((lng/3.0)*math.Pi)) * 2.0) / 3.0
	ret += ((150.0*math.Sin((lng/12.0)*math.Pi) + 300.0*math.Sin((lng/30.0)*math.Pi)) * 2.0) / 3.0
	return ret
}
