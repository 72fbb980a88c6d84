// Package geo locates the reference airports nearest to a flight's takeoff
// and landing points.
package geo

import "math"

// EarthRadius is the mean Earth radius in kilometers. The Earth is treated as
// a perfect sphere.
const EarthRadius = 6371.0

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// GreatCircleDistance returns the haversine distance in kilometers between
// two points given in decimal degrees.
func GreatCircleDistance(fromLat, fromLon, toLat, toLon float64) float64 {
	fromLat, fromLon, toLat, toLon = radians(fromLat), radians(fromLon), radians(toLat), radians(toLon)

	sinLat := math.Sin(0.5 * (fromLat - toLat))
	sinLon := math.Sin(0.5 * (fromLon - toLon))
	a := sinLat*sinLat + math.Cos(fromLat)*math.Cos(toLat)*sinLon*sinLon
	return 2 * EarthRadius * math.Asin(math.Sqrt(a))
}
