// Package volume provides the voxel-grid data model shared by all
// segmentation engines: integer voxel coordinates, volume geometry,
// read-only intensity access, the mutable label map and derived binary
// masks.
//
// All dense buffers are flat slices in row-major order with x fastest,
// then y, then z: index = z*nx*ny + y*nx + x.
package volume

import "fmt"

// Point3D is an integer voxel coordinate. It must be validated against the
// grid dimensions before any buffer dereference.
type Point3D struct {
	X, Y, Z int
}

// Add returns the point translated by the given offset.
func (p Point3D) Add(o Point3D) Point3D {
	return Point3D{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

// Geometry describes the voxel grid: dimensions in voxels, spacing in
// physical units per voxel, physical origin and a 3x3 orientation matrix.
//
// Every buffer sized Dims[0]*Dims[1]*Dims[2] must agree with its geometry;
// a mismatch is a fatal precondition error, not a recoverable one.
type Geometry struct {
	// Dims holds the grid dimensions [nx, ny, nz].
	Dims [3]int

	// Spacing holds the physical voxel size [sx, sy, sz].
	Spacing [3]float64

	// Origin is the physical position of voxel (0,0,0).
	Origin [3]float64

	// Direction is the 3x3 orientation matrix mapping voxel axes to
	// physical axes. Identity for axis-aligned volumes.
	Direction [3][3]float64
}

// DefaultGeometry returns an axis-aligned geometry with unit spacing.
func DefaultGeometry(nx, ny, nz int) Geometry {
	return Geometry{
		Dims:    [3]int{nx, ny, nz},
		Spacing: [3]float64{1, 1, 1},
		Direction: [3][3]float64{
			{1, 0, 0},
			{0, 1, 0},
			{0, 0, 1},
		},
	}
}

// Validate checks that dimensions and spacing describe a usable grid.
func (g Geometry) Validate() error {
	for axis, d := range g.Dims {
		if d <= 0 {
			return fmt.Errorf("geometry dimension %d on axis %d must be positive", d, axis)
		}
	}
	for axis, s := range g.Spacing {
		if s <= 0 {
			return fmt.Errorf("geometry spacing %g on axis %d must be positive", s, axis)
		}
	}
	return nil
}

// NumVoxels returns the total number of voxels in the grid.
func (g Geometry) NumVoxels() int {
	return g.Dims[0] * g.Dims[1] * g.Dims[2]
}

// Contains reports whether p lies inside [0, dim) on every axis.
func (g Geometry) Contains(p Point3D) bool {
	return p.X >= 0 && p.X < g.Dims[0] &&
		p.Y >= 0 && p.Y < g.Dims[1] &&
		p.Z >= 0 && p.Z < g.Dims[2]
}

// Index converts a voxel coordinate to its flat buffer index. The caller
// must have verified Contains(p).
func (g Geometry) Index(p Point3D) int {
	return p.Z*g.Dims[0]*g.Dims[1] + p.Y*g.Dims[0] + p.X
}

// PointAt converts a flat buffer index back to a voxel coordinate.
func (g Geometry) PointAt(idx int) Point3D {
	sliceSize := g.Dims[0] * g.Dims[1]
	z := idx / sliceSize
	rem := idx % sliceSize
	return Point3D{X: rem % g.Dims[0], Y: rem / g.Dims[0], Z: z}
}

// VoxelVolume returns the physical volume of a single voxel.
func (g Geometry) VoxelVolume() float64 {
	return g.Spacing[0] * g.Spacing[1] * g.Spacing[2]
}

// OnBoundary reports whether p lies on any face of the volume.
func (g Geometry) OnBoundary(p Point3D) bool {
	return p.X == 0 || p.X == g.Dims[0]-1 ||
		p.Y == 0 || p.Y == g.Dims[1]-1 ||
		p.Z == 0 || p.Z == g.Dims[2]-1
}
