package geo

import "math"

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two WGS84 points using the haversine formula.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Between returns the distance between two optional coordinate pairs; ok is false when
// either side is missing a coordinate.
func Between(lat1, lon1, lat2, lon2 *float64) (km float64, ok bool) {
	if lat1 == nil || lon1 == nil || lat2 == nil || lon2 == nil {
		return 0, false
	}
	return DistanceKm(*lat1, *lon1, *lat2, *lon2), true
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
