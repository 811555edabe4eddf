package geohash

import (
	"sync"

	"github.com/dhconnelly/rtreego"
)

// pointTolerance is the half-width of the box stored for each point.
const pointTolerance = 0.0001

// SpatialPoint wraps a point to satisfy the rtreego.Spatial interface
type SpatialPoint struct {
	Point
	rect rtreego.Rect
}

// Bounds returns a small box around the point.
func (p *SpatialPoint) Bounds() rtreego.Rect {
	return p.rect
}

type rtreeIndex struct {
	mu   sync.Mutex
	tree *rtreego.Rtree
	size int
}

func newRTreeIndex(points []Point) *rtreeIndex {
	idx := &rtreeIndex{tree: rtreego.NewTree(2, 25, 50)}
	for _, p := range points {
		idx.tree.Insert(&SpatialPoint{Point: p, rect: rtreego.Point{p.X, p.Y}.ToRect(pointTolerance)})
		idx.size++
	}
	return idx
}

func (idx *rtreeIndex) Len() int { return idx.size }

// Nearest asks the tree for one near neighbor, then returns everything inside the
// box whose half-width is that neighbor's exact distance.
func (idx *rtreeIndex) Nearest(center Point) []Point {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.size == 0 {
		return nil
	}
	q := rtreego.Point{center.X, center.Y}
	nn := idx.tree.NearestNeighbor(q)
	if nn == nil {
		return nil
	}
	radius := distance(nn.(*SpatialPoint).Point, center)

	hits := idx.tree.SearchIntersect(q.ToRect(radius + pointTolerance))
	result := make([]Point, 0, len(hits))
	for _, h := range hits {
		result = append(result, h.(*SpatialPoint).Point)
	}
	return result
}
