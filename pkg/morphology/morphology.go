// Package morphology implements set-theoretic editing of binary voxel
// masks: dilation, erosion, opening, closing, smoothing, hole filling,
// island removal and boolean combination.
package morphology

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"volseg/internal/logger"
	"volseg/pkg/components"
	"volseg/pkg/kernel"
	"volseg/pkg/volume"
)

// ErrBusy is returned when an operation is started while another one is
// still in flight on the same engine instance.
var ErrBusy = errors.New("morphology engine busy")

// Operation selects the morphological edit to apply.
type Operation int

const (
	// Dilate sets a voxel if any kernel-offset neighbor is foreground.
	Dilate Operation = iota
	// Erode keeps a voxel only if all in-bounds kernel-offset neighbors
	// are foreground; out-of-bounds neighbors reject (closed boundary).
	Erode
	// Open is erosion followed by dilation; removes small protrusions.
	Open
	// Close is dilation followed by erosion; fills small gaps.
	Close
	// Smooth is opening followed by closing, repeated Iterations times.
	Smooth
	// FillHoles fills background components fully enclosed by foreground.
	FillHoles
	// RemoveIslands clears components smaller than MinVoxelCount.
	RemoveIslands
)

// String returns the operation name for logs and error context.
func (op Operation) String() string {
	switch op {
	case Dilate:
		return "dilate"
	case Erode:
		return "erode"
	case Open:
		return "open"
	case Close:
		return "close"
	case Smooth:
		return "smooth"
	case FillHoles:
		return "fillHoles"
	case RemoveIslands:
		return "removeIslands"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

// Config holds the parameters of one morphological edit.
type Config struct {
	// Operation is the edit to apply.
	Operation Operation

	// Shape and Radius define the structuring kernel. Ignored by
	// FillHoles and RemoveIslands.
	Shape  kernel.Shape
	Radius int

	// Iterations is the repeat count for Smooth. Values < 1 mean one pass.
	Iterations int

	// Connectivity drives component analysis for FillHoles, RemoveIslands
	// and the before/after statistics.
	Connectivity kernel.Connectivity

	// MinVoxelCount is the survival threshold for RemoveIslands.
	MinVoxelCount int
}

// MaskStats summarizes a mask before or after an edit.
type MaskStats struct {
	VoxelCount     int
	ComponentCount int
}

// Result reports the outcome of one editing operation.
type Result struct {
	Operation      Operation
	AffectedVoxels int
	Before         MaskStats
	After          MaskStats
	Duration       time.Duration
}

// Engine applies morphological edits. A single engine runs one operation
// at a time; concurrent calls fail fast with ErrBusy.
type Engine struct {
	busy atomic.Bool
	log  logger.Logger
}

// NewEngine creates a morphology engine. A nil logger disables logging.
func NewEngine(log logger.Logger) *Engine {
	return &Engine{log: logger.OrNop(log)}
}

// Apply runs one edit on the input mask and returns the edited mask with
// before/after statistics. The input mask is not modified.
func (e *Engine) Apply(mask *volume.BinaryMask, cfg Config) (*volume.BinaryMask, *Result, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, nil, ErrBusy
	}
	defer e.busy.Store(false)

	labeler, err := components.NewLabeler(cfg.Connectivity)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", cfg.Operation, err)
	}

	start := time.Now()
	before := statsFor(mask, labeler)

	out, err := e.run(mask, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", cfg.Operation, err)
	}

	result := &Result{
		Operation:      cfg.Operation,
		AffectedVoxels: countDifferences(mask, out),
		Before:         before,
		After:          statsFor(out, labeler),
		Duration:       time.Since(start),
	}

	e.log.Debug("morphology", "edit applied", map[string]interface{}{
		"operation": cfg.Operation.String(),
		"affected":  result.AffectedVoxels,
		"ms":        result.Duration.Milliseconds(),
	})

	return out, result, nil
}

func (e *Engine) run(mask *volume.BinaryMask, cfg Config) (*volume.BinaryMask, error) {
	switch cfg.Operation {
	case FillHoles:
		return FillEnclosedHoles(mask, cfg.Connectivity)
	case RemoveIslands:
		return RemoveSmallIslands(mask, cfg.MinVoxelCount, cfg.Connectivity)
	}

	offsets, err := kernel.MorphologyKernel(cfg.Shape, cfg.Radius)
	if err != nil {
		return nil, err
	}

	switch cfg.Operation {
	case Dilate:
		return DilateMask(mask, offsets), nil
	case Erode:
		return ErodeMask(mask, offsets), nil
	case Open:
		return OpenMask(mask, offsets), nil
	case Close:
		return CloseMask(mask, offsets), nil
	case Smooth:
		iterations := cfg.Iterations
		if iterations < 1 {
			iterations = 1
		}
		out := mask
		for i := 0; i < iterations; i++ {
			out = CloseMask(OpenMask(out, offsets), offsets)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown operation %d", int(cfg.Operation))
	}
}

// DilateMask sets every voxel that has at least one foreground voxel under
// the kernel. The input mask is not modified.
func DilateMask(mask *volume.BinaryMask, offsets []volume.Point3D) *volume.BinaryMask {
	geom := mask.Geometry()
	out, _ := volume.NewBinaryMask(geom)

	nx, ny, nz := geom.Dims[0], geom.Dims[1], geom.Dims[2]
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				p := volume.Point3D{X: x, Y: y, Z: z}
				if anyForeground(mask, p, offsets) {
					out.Set(p, true)
				}
			}
		}
	}
	return out
}

// ErodeMask keeps a voxel only if every in-bounds kernel offset lands on
// foreground; an out-of-bounds offset rejects the voxel (closed boundary).
// The input mask is not modified.
func ErodeMask(mask *volume.BinaryMask, offsets []volume.Point3D) *volume.BinaryMask {
	geom := mask.Geometry()
	out, _ := volume.NewBinaryMask(geom)

	nx, ny, nz := geom.Dims[0], geom.Dims[1], geom.Dims[2]
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				p := volume.Point3D{X: x, Y: y, Z: z}
				if !mask.ForegroundAt(p) {
					continue
				}
				if allForeground(mask, p, offsets) {
					out.Set(p, true)
				}
			}
		}
	}
	return out
}

// OpenMask is erosion followed by dilation with the same kernel.
func OpenMask(mask *volume.BinaryMask, offsets []volume.Point3D) *volume.BinaryMask {
	return DilateMask(ErodeMask(mask, offsets), offsets)
}

// CloseMask is dilation followed by erosion with the same kernel.
func CloseMask(mask *volume.BinaryMask, offsets []volume.Point3D) *volume.BinaryMask {
	return ErodeMask(DilateMask(mask, offsets), offsets)
}

func anyForeground(mask *volume.BinaryMask, p volume.Point3D, offsets []volume.Point3D) bool {
	geom := mask.Geometry()
	for _, off := range offsets {
		n := p.Add(off)
		if geom.Contains(n) && mask.ForegroundAt(n) {
			return true
		}
	}
	return false
}

func allForeground(mask *volume.BinaryMask, p volume.Point3D, offsets []volume.Point3D) bool {
	geom := mask.Geometry()
	for _, off := range offsets {
		n := p.Add(off)
		if !geom.Contains(n) {
			return false
		}
		if !mask.ForegroundAt(n) {
			return false
		}
	}
	return true
}

func statsFor(mask *volume.BinaryMask, labeler *components.Labeler) MaskStats {
	comps, _ := labeler.Label(mask)
	return MaskStats{
		VoxelCount:     mask.CountForeground(),
		ComponentCount: len(comps),
	}
}

func countDifferences(a, b *volume.BinaryMask) int {
	count := 0
	for i := 0; i < a.Len(); i++ {
		if a.ForegroundAtIndex(i) != b.ForegroundAtIndex(i) {
			count++
		}
	}
	return count
}
