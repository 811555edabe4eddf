package geohash

import (
	"math"
	"sync"
)

const (
	nodeCapacity = 4
	maxDepth     = 24
	// maxRetries bounds how many times the search radius doubles.
	maxRetries = 64
)

// Point represents an identified point in 2D space
type Point struct {
	ID   string
	X, Y float64
}

// Bounds represents the boundaries of a region
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// QuadtreeNode represents a node in the quadtree
type QuadtreeNode struct {
	Bounds   Bounds
	Points   []Point
	Children [4]*QuadtreeNode
	depth    int
}

// Quadtree represents the quadtree structure
type Quadtree struct {
	Root *QuadtreeNode
	Lock sync.Mutex
	size int
}

// InitializeQuadtree initializes a new Quadtree with given bounds
func InitializeQuadtree(bounds Bounds) *Quadtree {
	return &Quadtree{
		Root: &QuadtreeNode{Bounds: bounds},
	}
}

// Insert adds a point to the Quadtree. Points outside the root bounds are dropped.
func (qt *Quadtree) Insert(point Point) bool {
	qt.Lock.Lock()
	defer qt.Lock.Unlock()
	if !qt.Root.insert(point) {
		return false
	}
	qt.size++
	return true
}

func (qt *Quadtree) Len() int {
	qt.Lock.Lock()
	defer qt.Lock.Unlock()
	return qt.size
}

// insert adds a point to a QuadtreeNode, creating children nodes if necessary
func (node *QuadtreeNode) insert(point Point) bool {
	if !node.contains(point) {
		return false
	}
	if node.Children[0] == nil && (len(node.Points) < nodeCapacity || node.depth >= maxDepth) {
		node.Points = append(node.Points, point)
		return true
	}
	if node.Children[0] == nil {
		node.subdivide()
	}
	for i := 0; i < 4; i++ {
		if node.Children[i].insert(point) {
			return true
		}
	}
	return false
}

// contains checks if the point is within the node's bounds
func (node *QuadtreeNode) contains(point Point) bool {
	return point.X >= node.Bounds.MinX && point.X <= node.Bounds.MaxX &&
		point.Y >= node.Bounds.MinY && point.Y <= node.Bounds.MaxY
}

// subdivide splits the node into four child nodes
func (node *QuadtreeNode) subdivide() {
	b := node.Bounds
	midX := (b.MinX + b.MaxX) / 2
	midY := (b.MinY + b.MaxY) / 2
	d := node.depth + 1
	node.Children[0] = &QuadtreeNode{Bounds: Bounds{b.MinX, b.MinY, midX, midY}, depth: d}
	node.Children[1] = &QuadtreeNode{Bounds: Bounds{midX, b.MinY, b.MaxX, midY}, depth: d}
	node.Children[2] = &QuadtreeNode{Bounds: Bounds{b.MinX, midY, midX, b.MaxY}, depth: d}
	node.Children[3] = &QuadtreeNode{Bounds: Bounds{midX, midY, b.MaxX, b.MaxY}, depth: d}
}

// SearchNearbyInQuadtree searches for nearby points within a given radius
func (qt *Quadtree) SearchNearbyInQuadtree(center Point, radius float64) []Point {
	qt.Lock.Lock()
	defer qt.Lock.Unlock()
	return qt.Root.searchNearby(center, radius)
}

// Nearest grows the search radius until something is found, then searches again
// with the closest distance seen so every tied point is included.
func (qt *Quadtree) Nearest(center Point) []Point {
	if qt.Len() == 0 {
		return nil
	}
	radius := 1.0
	for i := 0; i < maxRetries; i++ {
		found := qt.SearchNearbyInQuadtree(center, radius)
		if len(found) > 0 {
			best := math.Inf(1)
			for _, p := range found {
				best = math.Min(best, distance(p, center))
			}
			return qt.SearchNearbyInQuadtree(center, best)
		}
		radius *= 2
	}
	return nil
}

// searchNearby finds points within a radius in a QuadtreeNode
func (node *QuadtreeNode) searchNearby(center Point, radius float64) []Point {
	if !node.intersectsCircle(center, radius) {
		return nil
	}
	var result []Point
	for _, point := range node.Points {
		if distance(point, center) <= radius {
			result = append(result, point)
		}
	}
	if node.Children[0] != nil {
		for i := 0; i < 4; i++ {
			result = append(result, node.Children[i].searchNearby(center, radius)...)
		}
	}
	return result
}

// intersectsCircle checks if a circle intersects with the node's bounds
func (node *QuadtreeNode) intersectsCircle(center Point, radius float64) bool {
	closestX := math.Max(node.Bounds.MinX, math.Min(center.X, node.Bounds.MaxX))
	closestY := math.Max(node.Bounds.MinY, math.Min(center.Y, node.Bounds.MaxY))
	return distance(Point{X: closestX, Y: closestY}, center) <= radius
}

// distance calculates the Euclidean distance between two points
func distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
