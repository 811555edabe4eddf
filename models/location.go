package models

import "math"

// Location is a named point. Lat/Lon are treated as planar coordinates for matching.
type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the Euclidean distance between two locations.
func (l Location) Distance(other Location) float64 {
	dx := l.Latitude - other.Latitude
	dy := l.Longitude - other.Longitude
	return math.Sqrt(dx*dx + dy*dy)
}
