package volume

import "fmt"

// Mask byte values. A BinaryMask holds exactly these two values.
const (
	Background uint8 = 0
	Foreground uint8 = 255
)

// BinaryMask is a derived, short-lived per-voxel membership buffer: one
// byte per voxel restricted to {0, 255}. It always shares the geometry of
// the label map it was derived from or will be applied to.
type BinaryMask struct {
	data []uint8
	geom Geometry
}

// NewBinaryMask allocates an all-background mask for the given geometry.
func NewBinaryMask(geom Geometry) (*BinaryMask, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	return &BinaryMask{data: make([]uint8, geom.NumVoxels()), geom: geom}, nil
}

// Geometry returns the mask geometry.
func (m *BinaryMask) Geometry() Geometry { return m.geom }

// Len returns the number of voxels in the mask.
func (m *BinaryMask) Len() int { return len(m.data) }

// ForegroundAt reports whether the voxel at p is foreground. The caller
// must have verified the coordinate is in bounds.
func (m *BinaryMask) ForegroundAt(p Point3D) bool {
	return m.data[m.geom.Index(p)] != Background
}

// ForegroundAtIndex reports whether the voxel at a flat index is foreground.
func (m *BinaryMask) ForegroundAtIndex(idx int) bool {
	return m.data[idx] != Background
}

// SetIndex marks the voxel at a flat index as foreground or background.
func (m *BinaryMask) SetIndex(idx int, foreground bool) {
	if foreground {
		m.data[idx] = Foreground
	} else {
		m.data[idx] = Background
	}
}

// Set marks the voxel at p as foreground or background.
func (m *BinaryMask) Set(p Point3D, foreground bool) {
	m.SetIndex(m.geom.Index(p), foreground)
}

// CountForeground returns the number of foreground voxels.
func (m *BinaryMask) CountForeground() int {
	count := 0
	for _, v := range m.data {
		if v != Background {
			count++
		}
	}
	return count
}

// Clone returns an independent copy of the mask.
func (m *BinaryMask) Clone() *BinaryMask {
	data := make([]uint8, len(m.data))
	copy(data, m.data)
	return &BinaryMask{data: data, geom: m.geom}
}

// SameShape verifies that two masks share a geometry. Voxel-wise operations
// between masks of different shapes are a precondition violation.
func (m *BinaryMask) SameShape(other *BinaryMask) error {
	if m.geom.Dims != other.geom.Dims {
		return fmt.Errorf("mask shape %v does not match %v", m.geom.Dims, other.geom.Dims)
	}
	return nil
}
