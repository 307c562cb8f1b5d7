// Package components implements connected-component labeling of binary
// voxel masks with per-component statistics.
//
// Components are discovered by a raster scan in z, y, x order and grown by
// breadth-first flood fill, so component ids are strictly increasing in
// raster-scan order of each component's first voxel. This ordering is part
// of the contract: callers and tests may assert exact ids for a given mask.
package components

import (
	"fmt"

	"volseg/pkg/kernel"
	"volseg/pkg/volume"
)

// Component describes one connected component of foreground voxels.
type Component struct {
	// ID is the component id, assigned from 1 upward in raster-scan order.
	ID int32

	// VoxelCount is the number of voxels in the component.
	VoxelCount int

	// BoundingBox is the axis-aligned bounding box of the component.
	BoundingBox struct {
		Min, Max volume.Point3D
	}

	// Centroid is the mean voxel coordinate of the component.
	Centroid [3]float64

	// Volume is VoxelCount times the physical voxel volume.
	Volume float64
}

// Labeler performs connected-component labeling under a fixed connectivity.
type Labeler struct {
	connectivity kernel.Connectivity
	offsets      []volume.Point3D
}

// NewLabeler creates a labeler for the given connectivity mode.
func NewLabeler(connectivity kernel.Connectivity) (*Labeler, error) {
	offsets, err := connectivity.Offsets()
	if err != nil {
		return nil, fmt.Errorf("connected components: %w", err)
	}
	return &Labeler{connectivity: connectivity, offsets: offsets}, nil
}

// Label partitions the foreground of a mask into connected components.
// It returns the components in discovery order and the per-voxel component
// id buffer (0 for background voxels).
func (l *Labeler) Label(mask *volume.BinaryMask) ([]Component, []int32) {
	geom := mask.Geometry()
	ids := make([]int32, mask.Len())
	comps := make([]Component, 0)

	queue := make([]volume.Point3D, 0, 256)
	var nextID int32 = 1

	nx, ny, nz := geom.Dims[0], geom.Dims[1], geom.Dims[2]
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				seed := volume.Point3D{X: x, Y: y, Z: z}
				seedIdx := geom.Index(seed)
				if !mask.ForegroundAtIndex(seedIdx) || ids[seedIdx] != 0 {
					continue
				}

				comp := l.floodFill(mask, ids, seed, nextID, queue[:0])
				comp.Volume = float64(comp.VoxelCount) * geom.VoxelVolume()
				comps = append(comps, comp)
				nextID++
			}
		}
	}

	return comps, ids
}

// Count returns only the number of connected components, without
// accumulating per-component statistics buffers for the caller.
func (l *Labeler) Count(mask *volume.BinaryMask) int {
	comps, _ := l.Label(mask)
	return len(comps)
}

// floodFill grows one component from a seed with breadth-first search,
// accumulating voxel count, bounding box and coordinate sums.
func (l *Labeler) floodFill(mask *volume.BinaryMask, ids []int32, seed volume.Point3D, id int32, queue []volume.Point3D) Component {
	geom := mask.Geometry()

	comp := Component{ID: id}
	comp.BoundingBox.Min = seed
	comp.BoundingBox.Max = seed

	var sumX, sumY, sumZ float64

	ids[geom.Index(seed)] = id
	queue = append(queue, seed)

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		comp.VoxelCount++
		sumX += float64(p.X)
		sumY += float64(p.Y)
		sumZ += float64(p.Z)
		comp.BoundingBox.Min = minPoint(comp.BoundingBox.Min, p)
		comp.BoundingBox.Max = maxPoint(comp.BoundingBox.Max, p)

		for _, off := range l.offsets {
			n := p.Add(off)
			if !geom.Contains(n) {
				continue
			}
			nIdx := geom.Index(n)
			if ids[nIdx] != 0 || !mask.ForegroundAtIndex(nIdx) {
				continue
			}
			ids[nIdx] = id
			queue = append(queue, n)
		}
	}

	comp.Centroid = [3]float64{
		sumX / float64(comp.VoxelCount),
		sumY / float64(comp.VoxelCount),
		sumZ / float64(comp.VoxelCount),
	}
	return comp
}

func minPoint(a, b volume.Point3D) volume.Point3D {
	if b.X < a.X {
		a.X = b.X
	}
	if b.Y < a.Y {
		a.Y = b.Y
	}
	if b.Z < a.Z {
		a.Z = b.Z
	}
	return a
}

func maxPoint(a, b volume.Point3D) volume.Point3D {
	if b.X > a.X {
		a.X = b.X
	}
	if b.Y > a.Y {
		a.Y = b.Y
	}
	if b.Z > a.Z {
		a.Z = b.Z
	}
	return a
}
