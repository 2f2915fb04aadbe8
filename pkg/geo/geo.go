// Package geo provides great-circle distance helpers for coordinate checks.
package geo

import "math"

const earthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point lies within latitude/longitude ranges
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}

// HaversineMeters returns the great-circle distance between two points in meters
func HaversineMeters(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PathKm returns the length of a route through the points in kilometers
func PathKm(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += HaversineMeters(points[i-1], points[i])
	}
	return total / 1000
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
