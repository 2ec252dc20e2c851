package domain

import "github.com/samirrijal/metamap/internal/pkg/geospatial"

// Coordinate represents a geographic coordinate (WGS 84).
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceTo returns the haversine distance to o in kilometers.
func (c Coordinate) DistanceTo(o Coordinate) float64 {
	return DistanceKm(c, o)
}

// DistanceKm returns the great-circle distance between a and b in kilometers.
func DistanceKm(a, b Coordinate) float64 {
	return geospatial.DistanceKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Extents is the bounding box of a set of points.
type Extents struct {
	Northernmost float64 `json:"northernmost"`
	Southernmost float64 `json:"southernmost"`
	Easternmost  float64 `json:"easternmost"`
	Westernmost  float64 `json:"westernmost"`
}

// PointDistance pairs a point with its distance from a query origin.
type PointDistance struct {
	Index      int       `json:"index"`
	Point      DataPoint `json:"point"`
	DistanceKm float64   `json:"distance_km"`
}
