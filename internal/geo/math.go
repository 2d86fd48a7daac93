package geo

import "math"

// MaxMercatorLat is the latitude where the Web-Mercator square ends.
const MaxMercatorLat = 85.05112878

// ToMercator projects a WGS84-like lng/lat pair onto spherical Web-Mercator
// meters. Latitude is clamped to the Mercator square so that poles stay finite.
func ToMercator(lng, lat float64) (x, y float64) {
	if lat > MaxMercatorLat {
		lat = MaxMercatorLat
	} else if lat < -MaxMercatorLat {
		lat = -MaxMercatorLat
	}

	x = EarthRadius * lng * math.Pi / 180.0
	latRad := lat * math.Pi / 180.0
	y = EarthRadius * math.Log(math.Tan(math.Pi*0.25+latRad*0.5))

	return x, y
}
