package geohash

import (
	"fmt"
)

type GeoIndexingTechnique string

const (
	ScanTechnique     GeoIndexingTechnique = "scan"
	RTreeTechnique    GeoIndexingTechnique = "rtree"
	QuadtreeTechnique GeoIndexingTechnique = "quadtree"
)

// ParseTechnique maps a config value to a technique. Empty means scan.
func ParseTechnique(s string) (GeoIndexingTechnique, error) {
	switch t := GeoIndexingTechnique(s); t {
	case "":
		return ScanTechnique, nil
	case ScanTechnique, RTreeTechnique, QuadtreeTechnique:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported geo-indexing technique %q", s)
	}
}

// Index answers nearest-point queries over a fixed set of points.
type Index interface {
	// Nearest returns a subset of the indexed points that contains every point
	// at minimum distance from center. It may contain farther points too.
	Nearest(center Point) []Point
	Len() int
}

// Build indexes points with the given technique.
func Build(technique GeoIndexingTechnique, points []Point) (Index, error) {
	switch technique {
	case ScanTechnique, "":
		return scanIndex(points), nil
	case RTreeTechnique:
		return newRTreeIndex(points), nil
	case QuadtreeTechnique:
		qt := InitializeQuadtree(boundsOf(points))
		for _, p := range points {
			qt.Insert(p)
		}
		return qt, nil
	default:
		return nil, fmt.Errorf("unsupported geo-indexing technique %q", technique)
	}
}

type scanIndex []Point

func (s scanIndex) Nearest(Point) []Point { return s }
func (s scanIndex) Len() int { return len(s) }

func boundsOf(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{MinX: points[0].X, MinY: points[0].Y, MaxX: points[0].X, MaxY: points[0].Y}
	for _, p := range points[1:] {
		if p.X < b.MinX {
			b.MinX = p.X
		}
		if p.X > b.MaxX {
			b.MaxX = p.X
		}
		if p.Y < b.MinY {
			b.MinY = p.Y
		}
		if p.Y > b.MaxY {
			b.MaxY = p.Y
		}
	}
	return b
}
