package morphology

import (
	"fmt"
	"time"

	"volseg/pkg/components"
	"volseg/pkg/volume"
)

// BooleanOp selects a voxel-wise set combination of two same-shape masks.
type BooleanOp int

const (
	// Union keeps voxels foreground in either mask (OR).
	Union BooleanOp = iota
	// Intersection keeps voxels foreground in both masks (AND).
	Intersection
	// Difference keeps voxels foreground in A but not in B (A AND NOT B).
	Difference
)

// String returns the boolean operation name.
func (op BooleanOp) String() string {
	switch op {
	case Union:
		return "union"
	case Intersection:
		return "intersection"
	case Difference:
		return "difference"
	default:
		return fmt.Sprintf("booleanOp(%d)", int(op))
	}
}

// CombineMasks applies a voxel-wise boolean combination of two same-shape
// masks. Neither input is modified.
func CombineMasks(a, b *volume.BinaryMask, op BooleanOp) (*volume.BinaryMask, error) {
	if err := a.SameShape(b); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out, _ := volume.NewBinaryMask(a.Geometry())
	for i := 0; i < a.Len(); i++ {
		av, bv := a.ForegroundAtIndex(i), b.ForegroundAtIndex(i)
		switch op {
		case Union:
			out.SetIndex(i, av || bv)
		case Intersection:
			out.SetIndex(i, av && bv)
		case Difference:
			out.SetIndex(i, av && !bv)
		default:
			return nil, fmt.Errorf("unknown boolean operation %d", int(op))
		}
	}
	return out, nil
}

// Complement returns the voxel-wise negation of a mask.
func Complement(mask *volume.BinaryMask) *volume.BinaryMask {
	out, _ := volume.NewBinaryMask(mask.Geometry())
	for i := 0; i < mask.Len(); i++ {
		out.SetIndex(i, !mask.ForegroundAtIndex(i))
	}
	return out
}

// ApplyBoolean runs a boolean combination through the engine, producing
// before/after statistics relative to mask a like any other edit.
func (e *Engine) ApplyBoolean(a, b *volume.BinaryMask, op BooleanOp, cfg Config) (*volume.BinaryMask, *Result, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, nil, ErrBusy
	}
	defer e.busy.Store(false)

	labeler, err := components.NewLabeler(cfg.Connectivity)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	before := statsFor(a, labeler)

	out, err := CombineMasks(a, b, op)
	if err != nil {
		return nil, nil, err
	}

	result := &Result{
		AffectedVoxels: countDifferences(a, out),
		Before:         before,
		After:          statsFor(out, labeler),
		Duration:       time.Since(start),
	}
	return out, result, nil
}
