package geo

import "math"

const (
	earthRadiusKM = 6371.0
	earthRadiusM  = 6371007

	// metres spanned by one degree of latitude (and of longitude at the equator)
	metresPerDegree = 111_320.0
)

func havFunction(angleRad float64) float64 {
	return (1 - math.Cos(angleRad)) / 2.0
}

func degreeToRadians(angle float64) float64 {
	return angle * (math.Pi / 180.0)
}

// CalculateHaversineDistance returns the great-circle distance in kilometres.
func CalculateHaversineDistance(latOne, longOne, latTwo, longTwo float64) float64 {
	latOne = degreeToRadians(latOne)
	longOne = degreeToRadians(longOne)
	latTwo = degreeToRadians(latTwo)
	longTwo = degreeToRadians(longTwo)

	a := havFunction(latOne-latTwo) + math.Cos(latOne)*math.Cos(latTwo)*havFunction(longOne-longTwo)
	c := 2.0 * math.Asin(math.Sqrt(a))
	return earthRadiusKM * c
}

// HaversineDistance returns the great-circle distance between two coordinates in metres.
func HaversineDistance(a, b Coordinate) float64 {
	return CalculateHaversineDistance(a.Lat, a.Lon, b.Lat, b.Lon) * 1000
}

// MetresToDegrees approximates a distance in metres as degrees of WGS84 at the given latitude.
// It uses the length of a degree of longitude, which is the shorter axis away from the equator,
// so a circle buffered with the result always covers the requested ground distance.
func MetresToDegrees(distance, lat float64) float64 {
	cosLat := math.Cos(degreeToRadians(lat))
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	return distance / (metresPerDegree * cosLat)
}
