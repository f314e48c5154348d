package places

import "math"

const earthRadiusM = 6371000.0

// Haversine returns the great-circle distance in meters.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// offset moves a point north and east by the given meters.
func offset(lat, lng, northM, eastM float64) (float64, float64) {
	dLat := northM / earthRadiusM * 180 / math.Pi
	dLng := eastM / (earthRadiusM * math.Cos(lat*math.Pi/180)) * 180 / math.Pi
	return lat + dLat, lng + dLng
}
