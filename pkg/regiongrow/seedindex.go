package regiongrow

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"volseg/pkg/volume"
)

// seedPoint adapts a seed coordinate to the kdtree interfaces so that
// nearest-seed distance queries stay cheap for large seed sets.
type seedPoint struct {
	x, y, z float64
}

// Compare implements kdtree.Comparable.
func (p seedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(seedPoint)
	switch d {
	case 0:
		return p.x - q.x
	case 1:
		return p.y - q.y
	case 2:
		return p.z - q.z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree.
func (p seedPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points.
func (p seedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(seedPoint)
	dx := p.x - q.x
	dy := p.y - q.y
	dz := p.z - q.z
	return dx*dx + dy*dy + dz*dz
}

// seedPoints satisfies kdtree.Interface.
type seedPoints []seedPoint

func (p seedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p seedPoints) Len() int                              { return len(p) }
func (p seedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method.
func (p seedPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(seedPlane{seedPoints: p, Dim: d}, kdtree.MedianOfRandoms(seedPlane{seedPoints: p, Dim: d}, 100))
}

// seedPlane implements sort.Interface and kdtree.SortSlicer for seedPoints.
type seedPlane struct {
	seedPoints
	kdtree.Dim
}

func (p seedPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.seedPoints[i].x < p.seedPoints[j].x
	case 1:
		return p.seedPoints[i].y < p.seedPoints[j].y
	case 2:
		return p.seedPoints[i].z < p.seedPoints[j].z
	default:
		panic("illegal dimension")
	}
}

func (p seedPlane) Slice(start, end int) kdtree.SortSlicer {
	return seedPlane{seedPoints: p.seedPoints[start:end], Dim: p.Dim}
}

func (p seedPlane) Swap(i, j int) {
	p.seedPoints[i], p.seedPoints[j] = p.seedPoints[j], p.seedPoints[i]
}

// seedIndex answers minimum-distance-to-any-seed queries.
type seedIndex struct {
	tree *kdtree.Tree
}

func newSeedIndex(seeds []volume.Point3D) *seedIndex {
	points := make(seedPoints, len(seeds))
	for i, s := range seeds {
		points[i] = seedPoint{x: float64(s.X), y: float64(s.Y), z: float64(s.Z)}
	}
	return &seedIndex{tree: kdtree.New(points, true)}
}

// squaredDistanceTo returns the squared Euclidean distance from p to the
// nearest seed.
func (s *seedIndex) squaredDistanceTo(p volume.Point3D) float64 {
	_, dist := s.tree.Nearest(seedPoint{x: float64(p.X), y: float64(p.Y), z: float64(p.Z)})
	return dist
}
