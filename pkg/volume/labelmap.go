package volume

import "fmt"

// LabelMap is the dense per-voxel segment assignment: one unsigned 16-bit
// label per voxel, 0 meaning unlabeled/background. It is the single source
// of truth every segmentation operation mutates, and it is not safe for
// concurrent mutation; the facade serializes all writes, and read-only
// consumers must Snapshot before an edit begins.
type LabelMap struct {
	labels []uint16
	geom   Geometry
}

// NewLabelMap allocates an all-background label map for the given geometry.
func NewLabelMap(geom Geometry) (*LabelMap, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	return &LabelMap{labels: make([]uint16, geom.NumVoxels()), geom: geom}, nil
}

// WrapLabelMap adopts an existing label buffer, as supplied by the external
// segmentation store. The buffer length must match the geometry exactly.
func WrapLabelMap(labels []uint16, geom Geometry) (*LabelMap, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if len(labels) != geom.NumVoxels() {
		return nil, fmt.Errorf("label buffer has %d voxels, geometry %dx%dx%d requires %d",
			len(labels), geom.Dims[0], geom.Dims[1], geom.Dims[2], geom.NumVoxels())
	}
	return &LabelMap{labels: labels, geom: geom}, nil
}

// Geometry returns the label map geometry.
func (l *LabelMap) Geometry() Geometry { return l.geom }

// Get returns the segment index at p. The caller must have verified the
// coordinate is in bounds.
func (l *LabelMap) Get(p Point3D) uint16 {
	return l.labels[l.geom.Index(p)]
}

// GetIndex returns the segment index at a flat buffer index.
func (l *LabelMap) GetIndex(idx int) uint16 {
	return l.labels[idx]
}

// Set assigns a segment index at p.
func (l *LabelMap) Set(p Point3D, segment uint16) {
	l.labels[l.geom.Index(p)] = segment
}

// SetIndex assigns a segment index at a flat buffer index.
func (l *LabelMap) SetIndex(idx int, segment uint16) {
	l.labels[idx] = segment
}

// ApplyMask assigns the segment index to every foreground voxel of the
// mask and returns the number of voxels whose label changed.
func (l *LabelMap) ApplyMask(mask *BinaryMask, segment uint16) int {
	changed := 0
	for i := range l.labels {
		if mask.ForegroundAtIndex(i) && l.labels[i] != segment {
			l.labels[i] = segment
			changed++
		}
	}
	return changed
}

// EraseMask clears every foreground voxel of the mask that currently
// belongs to the given segment and returns the number of voxels cleared.
func (l *LabelMap) EraseMask(mask *BinaryMask, segment uint16) int {
	changed := 0
	for i := range l.labels {
		if mask.ForegroundAtIndex(i) && l.labels[i] == segment {
			l.labels[i] = 0
			changed++
		}
	}
	return changed
}

// ClearSegment removes every voxel of the given segment and returns the
// number of voxels cleared.
func (l *LabelMap) ClearSegment(segment uint16) int {
	changed := 0
	for i, v := range l.labels {
		if v == segment {
			l.labels[i] = 0
			changed++
		}
	}
	return changed
}

// MaskForSegment derives the binary membership mask of a segment.
func (l *LabelMap) MaskForSegment(segment uint16) *BinaryMask {
	mask := &BinaryMask{data: make([]uint8, len(l.labels)), geom: l.geom}
	for i, v := range l.labels {
		if v == segment {
			mask.data[i] = Foreground
		}
	}
	return mask
}

// CountSegment returns the number of voxels assigned to a segment.
func (l *LabelMap) CountSegment(segment uint16) int {
	count := 0
	for _, v := range l.labels {
		if v == segment {
			count++
		}
	}
	return count
}

// Snapshot returns an independent copy for read-only consumers.
func (l *LabelMap) Snapshot() *LabelMap {
	labels := make([]uint16, len(l.labels))
	copy(labels, l.labels)
	return &LabelMap{labels: labels, geom: l.geom}
}
