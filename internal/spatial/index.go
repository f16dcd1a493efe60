// Package spatial provides a static 2-D nearest-neighbor index over planar
// points, backed by a gonum k-d tree.
package spatial

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Point is an indexed planar location in meters. ID is caller-defined and is
// what queries return.
type Point struct {
	X, Y float64
	ID   int
}

// Index is an immutable k-d tree. It is safe for concurrent queries.
type Index struct {
	tree *kdtree.Tree
	size int
}

// New builds an index over pts. The input slice is not modified.
func New(pts []Point) *Index {
	cs := make(points, len(pts))
	for i, p := range pts {
		cs[i] = point{xy: [2]float64{p.X, p.Y}, id: p.ID}
	}
	return &Index{tree: kdtree.New(cs, false), size: len(pts)}
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return ix.size }

// Nearest returns the ID of a point closest to (x, y) and its Euclidean
// distance. ok is false when the index is empty.
func (ix *Index) Nearest(x, y float64) (id int, dist float64, ok bool) {
	if ix.size == 0 {
		return 0, math.Inf(1), false
	}
	c, sq := ix.tree.Nearest(query(x, y))
	if c == nil {
		return 0, math.Inf(1), false
	}
	return c.(point).id, math.Sqrt(sq), true
}

// Within returns the IDs of every point at Euclidean distance <= r from
// (x, y), in ascending ID order.
func (ix *Index) Within(x, y, r float64) []int {
	if ix.size == 0 || r < 0 || math.IsNaN(r) {
		return nil
	}
	keep := kdtree.NewDistKeeper(r * r)
	ix.tree.NearestSet(keep, query(x, y))

	ids := make([]int, 0, keep.Len())
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		ids = append(ids, c.Comparable.(point).id)
	}
	sort.Ints(ids)
	return ids
}

func query(x, y float64) point {
	return point{xy: [2]float64{x, y}, id: -1}
}

type point struct {
	xy [2]float64
	id int
}

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.xy[d] - c.(point).xy[d]
}

func (p point) Dims() int { return 2 }

func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	dx := p.xy[0] - q.xy[0]
	dy := p.xy[1] - q.xy[1]
	return dx*dx + dy*dy
}

type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Pivot(d kdtree.Dim) int                { return plane{Dim: d, points: p}.Pivot() }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane orders points along one axis for median partitioning.
type plane struct {
	kdtree.Dim
	points
}

func (p plane) Less(i, j int) bool { return p.points[i].xy[p.Dim] < p.points[j].xy[p.Dim] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }
