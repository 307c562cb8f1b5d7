package segmentation

import (
	"fmt"
	"sort"
)

// Segment describes one labeled structure within a segmentation. The
// segment index is the value written into the label map for voxels
// belonging to this segment.
type Segment struct {
	// SegmentIndex is the unique positive key of this segment. Index 0 is
	// reserved for background and never assigned.
	SegmentIndex uint16

	// Label is the display name.
	Label string

	// Color is the display color as RGB components in [0, 255].
	Color [3]uint8

	// Opacity is the display opacity in [0, 1].
	Opacity float64

	Visible bool

	// Locked refuses every editing operation targeting this segment.
	Locked bool
}

// Registry tracks the segments of one segmentation, keyed by segment index.
type Registry struct {
	segments map[uint16]*Segment
	nextIdx  uint16
}

// NewRegistry creates an empty segment registry.
func NewRegistry() *Registry {
	return &Registry{
		segments: make(map[uint16]*Segment),
		nextIdx:  1,
	}
}

// Add registers a new segment and returns its assigned index.
func (r *Registry) Add(label string, color [3]uint8) (*Segment, error) {
	idx := r.nextIdx
	for {
		if idx == 0 {
			return nil, fmt.Errorf("segment index space exhausted")
		}
		if _, taken := r.segments[idx]; !taken {
			break
		}
		idx++
	}

	seg := &Segment{
		SegmentIndex: idx,
		Label:        label,
		Color:        color,
		Opacity:      1.0,
		Visible:      true,
	}
	r.segments[idx] = seg
	r.nextIdx = idx + 1
	return seg, nil
}

// AddWithIndex registers a segment under an explicit index. Index 0 and
// already-registered indices are rejected.
func (r *Registry) AddWithIndex(idx uint16, label string, color [3]uint8) (*Segment, error) {
	if idx == 0 {
		return nil, fmt.Errorf("segment index 0 is reserved for background")
	}
	if _, taken := r.segments[idx]; taken {
		return nil, fmt.Errorf("segment index %d already registered", idx)
	}

	seg := &Segment{
		SegmentIndex: idx,
		Label:        label,
		Color:        color,
		Opacity:      1.0,
		Visible:      true,
	}
	r.segments[idx] = seg
	if idx >= r.nextIdx {
		r.nextIdx = idx + 1
	}
	return seg, nil
}

// Get returns the segment registered under the index, or an error.
func (r *Registry) Get(idx uint16) (*Segment, error) {
	seg, ok := r.segments[idx]
	if !ok {
		return nil, fmt.Errorf("segment index %d not registered", idx)
	}
	return seg, nil
}

// Remove deletes a segment from the registry. Clearing its voxels from the
// label map is the facade's responsibility.
func (r *Registry) Remove(idx uint16) error {
	if _, ok := r.segments[idx]; !ok {
		return fmt.Errorf("segment index %d not registered", idx)
	}
	delete(r.segments, idx)
	return nil
}

// List returns all registered segments ordered by segment index.
func (r *Registry) List() []*Segment {
	out := make([]*Segment, 0, len(r.segments))
	for _, seg := range r.segments {
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SegmentIndex < out[j].SegmentIndex
	})
	return out
}

// Count returns the number of registered segments.
func (r *Registry) Count() int {
	return len(r.segments)
}

// checkEditable returns the segment if it exists and is not locked.
func (r *Registry) checkEditable(idx uint16) (*Segment, error) {
	seg, err := r.Get(idx)
	if err != nil {
		return nil, err
	}
	if seg.Locked {
		return nil, fmt.Errorf("segment %d (%q) is locked", idx, seg.Label)
	}
	return seg, nil
}
