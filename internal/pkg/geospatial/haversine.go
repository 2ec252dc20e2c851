package geospatial

import "math"

// EarthRadiusKm is the mean Earth radius used by every distance in the module.
const EarthRadiusKm = 6371.0

// DistanceKm calculates the great-circle distance in kilometers between two points.
// Arguments are ordered so that DistanceKm(a, b) and DistanceKm(b, a) evaluate
// the same expression and return bit-identical results.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	if lat1 == lat2 && lng1 == lng2 {
		return 0
	}
	if lat1 > lat2 || (lat1 == lat2 && lng1 > lng2) {
		lat1, lng1, lat2, lng2 = lat2, lng2, lat1, lng1
	}

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// DistanceMeters is DistanceKm scaled to meters.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	return DistanceKm(lat1, lng1, lat2, lng2) * 1000
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
