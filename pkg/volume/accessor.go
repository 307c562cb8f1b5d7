package volume

import "fmt"

// Accessor provides read-only access to voxel intensities and geometry for
// a source volume. The segmentation engines never mutate the source volume;
// acquisition is an external collaborator's concern.
type Accessor interface {
	// Geometry returns the grid geometry of the volume.
	Geometry() Geometry

	// IntensityAt returns the intensity at a voxel coordinate. The caller
	// must have verified the coordinate is in bounds.
	IntensityAt(p Point3D) float64

	// IntensityAtIndex returns the intensity at a flat buffer index.
	IntensityAtIndex(idx int) float64
}

// InMemoryVolume is an Accessor backed by a flat Float32 buffer, the format
// supplied by the external volume data provider.
type InMemoryVolume struct {
	data []float32
	geom Geometry
}

// NewInMemoryVolume wraps an intensity buffer with its geometry. The buffer
// length must match the geometry exactly.
func NewInMemoryVolume(data []float32, geom Geometry) (*InMemoryVolume, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if len(data) != geom.NumVoxels() {
		return nil, fmt.Errorf("intensity buffer has %d voxels, geometry %dx%dx%d requires %d",
			len(data), geom.Dims[0], geom.Dims[1], geom.Dims[2], geom.NumVoxels())
	}
	return &InMemoryVolume{data: data, geom: geom}, nil
}

// Geometry returns the grid geometry of the volume.
func (v *InMemoryVolume) Geometry() Geometry { return v.geom }

// IntensityAt returns the intensity at a voxel coordinate.
func (v *InMemoryVolume) IntensityAt(p Point3D) float64 {
	return float64(v.data[v.geom.Index(p)])
}

// IntensityAtIndex returns the intensity at a flat buffer index.
func (v *InMemoryVolume) IntensityAtIndex(idx int) float64 {
	return float64(v.data[idx])
}
