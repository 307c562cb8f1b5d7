package morphology

import (
	"fmt"

	"volseg/pkg/components"
	"volseg/pkg/kernel"
	"volseg/pkg/volume"
)

// FillEnclosedHoles fills every background component that does not touch
// the volume boundary. Background components are labeled under the given
// connectivity; a component with any voxel on a volume face is reachable
// from outside and stays background.
func FillEnclosedHoles(mask *volume.BinaryMask, connectivity kernel.Connectivity) (*volume.BinaryMask, error) {
	labeler, err := components.NewLabeler(connectivity)
	if err != nil {
		return nil, fmt.Errorf("fill holes: %w", err)
	}

	geom := mask.Geometry()
	background := Complement(mask)
	comps, ids := labeler.Label(background)

	// A background component touching any face of the volume is not a hole.
	enclosed := make(map[int32]bool, len(comps))
	for _, c := range comps {
		enclosed[c.ID] = true
	}
	for i := 0; i < background.Len(); i++ {
		id := ids[i]
		if id == 0 || !enclosed[id] {
			continue
		}
		if geom.OnBoundary(geom.PointAt(i)) {
			enclosed[id] = false
		}
	}

	out := mask.Clone()
	for i := 0; i < out.Len(); i++ {
		if id := ids[i]; id != 0 && enclosed[id] {
			out.SetIndex(i, true)
		}
	}
	return out, nil
}

// RemoveSmallIslands clears every foreground component with fewer than
// minVoxelCount voxels. Component count never increases, and no surviving
// component has fewer than minVoxelCount voxels.
func RemoveSmallIslands(mask *volume.BinaryMask, minVoxelCount int, connectivity kernel.Connectivity) (*volume.BinaryMask, error) {
	if minVoxelCount <= 1 {
		return mask.Clone(), nil
	}

	labeler, err := components.NewLabeler(connectivity)
	if err != nil {
		return nil, fmt.Errorf("remove islands: %w", err)
	}

	comps, ids := labeler.Label(mask)
	keep := make(map[int32]bool, len(comps))
	for _, c := range comps {
		keep[c.ID] = c.VoxelCount >= minVoxelCount
	}

	out := mask.Clone()
	for i := 0; i < out.Len(); i++ {
		if id := ids[i]; id != 0 && !keep[id] {
			out.SetIndex(i, false)
		}
	}
	return out, nil
}
