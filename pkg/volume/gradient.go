package volume

import "math"

// GradientMagnitude computes the per-voxel gradient magnitude of an
// intensity volume using central differences, falling back to one-sided
// differences at the volume boundary. Differences are scaled by the
// physical spacing on each axis.
//
// Region growing precomputes this once per volume before growth starts.
func GradientMagnitude(vol Accessor) []float64 {
	geom := vol.Geometry()
	nx, ny, nz := geom.Dims[0], geom.Dims[1], geom.Dims[2]
	out := make([]float64, geom.NumVoxels())

	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				gx := axisDifference(vol, Point3D{x, y, z}, Point3D{1, 0, 0}, nx, x) / geom.Spacing[0]
				gy := axisDifference(vol, Point3D{x, y, z}, Point3D{0, 1, 0}, ny, y) / geom.Spacing[1]
				gz := axisDifference(vol, Point3D{x, y, z}, Point3D{0, 0, 1}, nz, z) / geom.Spacing[2]

				out[geom.Index(Point3D{x, y, z})] = math.Sqrt(gx*gx + gy*gy + gz*gz)
			}
		}
	}

	return out
}

// axisDifference computes the intensity difference along one axis: central
// where both neighbors exist, one-sided at the boundary.
func axisDifference(vol Accessor, p, step Point3D, dim, coord int) float64 {
	switch {
	case dim == 1:
		return 0
	case coord == 0:
		return vol.IntensityAt(p.Add(step)) - vol.IntensityAt(p)
	case coord == dim-1:
		return vol.IntensityAt(p) - vol.IntensityAt(Point3D{p.X - step.X, p.Y - step.Y, p.Z - step.Z})
	default:
		return (vol.IntensityAt(p.Add(step)) -
			vol.IntensityAt(Point3D{p.X - step.X, p.Y - step.Y, p.Z - step.Z})) / 2
	}
}
