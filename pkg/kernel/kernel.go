// Package kernel generates the neighbor-offset sets used by flood fills
// and morphological operations: 6/18/26-connectivity neighborhoods and
// sphere/cube/cross structuring elements of a given radius.
//
// All generators are pure and deterministic; offsets are emitted in
// ascending z, y, x order so callers can rely on a stable traversal.
package kernel

import (
	"fmt"

	"volseg/pkg/volume"
)

// Connectivity selects which voxels count as adjacent: faces only,
// faces+edges, or faces+edges+corners.
type Connectivity int

const (
	// Face6 connects voxels sharing a face.
	Face6 Connectivity = 6
	// Edge18 connects voxels sharing a face or an edge.
	Edge18 Connectivity = 18
	// Vertex26 connects voxels sharing a face, edge or corner.
	Vertex26 Connectivity = 26
)

// Offsets returns the neighbor offsets for the connectivity mode. The
// identity offset is never included.
func (c Connectivity) Offsets() ([]volume.Point3D, error) {
	var maxManhattan int
	switch c {
	case Face6:
		maxManhattan = 1
	case Edge18:
		maxManhattan = 2
	case Vertex26:
		maxManhattan = 3
	default:
		return nil, fmt.Errorf("unknown connectivity mode %d (expected 6, 18 or 26)", int(c))
	}

	offsets := make([]volume.Point3D, 0, int(c))
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				if abs(dx)+abs(dy)+abs(dz) <= maxManhattan {
					offsets = append(offsets, volume.Point3D{X: dx, Y: dy, Z: dz})
				}
			}
		}
	}
	return offsets, nil
}

// Shape selects the structuring element used by morphological operations.
type Shape int

const (
	// Sphere includes every offset with Euclidean norm <= radius.
	Sphere Shape = iota
	// Cube includes the full (2r+1)^3 box.
	Cube
	// Cross includes only axis-aligned offsets out to radius.
	Cross
)

// String returns the shape name for error messages and logs.
func (s Shape) String() string {
	switch s {
	case Sphere:
		return "sphere"
	case Cube:
		return "cube"
	case Cross:
		return "cross"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// MorphologyKernel generates the offset set for a structuring element.
// A sphere requires radius >= 1; cube and cross degrade to the identity
// offset for radius <= 0.
func MorphologyKernel(shape Shape, radius int) ([]volume.Point3D, error) {
	switch shape {
	case Sphere:
		if radius < 1 {
			return nil, fmt.Errorf("sphere kernel requires radius >= 1, got %d", radius)
		}
		return sphereOffsets(radius), nil
	case Cube:
		if radius <= 0 {
			return []volume.Point3D{{}}, nil
		}
		return cubeOffsets(radius), nil
	case Cross:
		if radius <= 0 {
			return []volume.Point3D{{}}, nil
		}
		return crossOffsets(radius), nil
	default:
		return nil, fmt.Errorf("unknown kernel shape %d", int(shape))
	}
}

func sphereOffsets(radius int) []volume.Point3D {
	rr := radius * radius
	offsets := make([]volume.Point3D, 0)
	for dz := -radius; dz <= radius; dz++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if dx*dx+dy*dy+dz*dz <= rr {
					offsets = append(offsets, volume.Point3D{X: dx, Y: dy, Z: dz})
				}
			}
		}
	}
	return offsets
}

func cubeOffsets(radius int) []volume.Point3D {
	side := 2*radius + 1
	offsets := make([]volume.Point3D, 0, side*side*side)
	for dz := -radius; dz <= radius; dz++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				offsets = append(offsets, volume.Point3D{X: dx, Y: dy, Z: dz})
			}
		}
	}
	return offsets
}

func crossOffsets(radius int) []volume.Point3D {
	// Identity first, then each axis arm in ascending order.
	offsets := make([]volume.Point3D, 0, 6*radius+1)
	for dz := -radius; dz <= radius; dz++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				axes := 0
				if dx != 0 {
					axes++
				}
				if dy != 0 {
					axes++
				}
				if dz != 0 {
					axes++
				}
				if axes <= 1 {
					offsets = append(offsets, volume.Point3D{X: dx, Y: dy, Z: dz})
				}
			}
		}
	}
	return offsets
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
