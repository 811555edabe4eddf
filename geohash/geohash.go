package geohash

import (
	"github.com/mmcloughlin/geohash"
)

// CellPrecision is the geohash length used for driver availability cells.
const CellPrecision uint = 5

// Encode coordinates into a geohash with specified precision.
func Encode(lat, lon float64, precision uint) string {
	return geohash.EncodeWithPrecision(lat, lon, precision)
}

// GetNeighbors returns the geohashes of neighboring cells.
func GetNeighbors(hash string) []string {
	return geohash.Neighbors(hash)
}

// Cells returns hash followed by its eight neighbors.
func Cells(lat, lon float64, precision uint) []string {
	hash := Encode(lat, lon, precision)
	return append([]string{hash}, GetNeighbors(hash)...)
}
