package brush

import (
	"math"

	"volseg/pkg/volume"
)

// stampVoxel is one voxel of a rasterized brush shape with its falloff
// weight in [0, 1].
type stampVoxel struct {
	offset volume.Point3D
	weight float64
}

// circularStamp rasterizes a spherical brush of the given radius. Every
// offset with distance strictly below the radius is included; hardness 1
// gives a hard edge with full weight everywhere, lower hardness starts a
// linear falloff at radius*hardness.
func circularStamp(radius, hardness float64) []stampVoxel {
	if radius <= 0 {
		return nil
	}
	r := int(math.Ceil(radius))
	rr := radius * radius
	falloffStart := radius * hardness

	stamp := make([]stampVoxel, 0)
	for dz := -r; dz <= r; dz++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				dd := float64(dx*dx + dy*dy + dz*dz)
				if dd >= rr {
					continue
				}

				weight := 1.0
				if hardness < 1 {
					dist := math.Sqrt(dd)
					if dist > falloffStart {
						weight = (radius - dist) / (radius - falloffStart)
					}
				}
				stamp = append(stamp, stampVoxel{
					offset: volume.Point3D{X: dx, Y: dy, Z: dz},
					weight: weight,
				})
			}
		}
	}
	return stamp
}

// squareStamp rasterizes a cubic brush covering the full bounding box of
// the radius, with full weight everywhere.
func squareStamp(radius float64) []stampVoxel {
	if radius <= 0 {
		return nil
	}
	r := int(math.Ceil(radius)) - 1
	if r < 0 {
		r = 0
	}

	stamp := make([]stampVoxel, 0, (2*r+1)*(2*r+1)*(2*r+1))
	for dz := -r; dz <= r; dz++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				stamp = append(stamp, stampVoxel{
					offset: volume.Point3D{X: dx, Y: dy, Z: dz},
					weight: 1,
				})
			}
		}
	}
	return stamp
}
