// Package threshold builds binary masks from intensity ranges, optionally
// restricted to the components reachable from seed points, with hole
// filling and median post-smoothing.
package threshold

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"volseg/internal/logger"
	"volseg/pkg/kernel"
	"volseg/pkg/morphology"
	"volseg/pkg/volume"
)

// ErrBusy is returned when Apply is called while another threshold
// operation is still in flight on the same engine instance.
var ErrBusy = errors.New("threshold engine busy")

// Config holds the parameters of one threshold operation.
type Config struct {
	// Lower and Upper bound the intensity range, both inclusive.
	// Lower > Upper is a configuration error.
	Lower float64
	Upper float64

	// Connectivity drives the seed reachability flood fill.
	Connectivity kernel.Connectivity

	// SeedPoints optionally restrict the mask to voxels reachable from at
	// least one seed. A seed that does not itself satisfy the threshold
	// contributes nothing. Empty means no restriction.
	SeedPoints []volume.Point3D

	// FillHoles fills fully enclosed background holes after masking.
	FillHoles bool

	// Smoothing applies a 3x3x3 median filter as a final step.
	Smoothing bool
}

// Result reports the outcome of one threshold operation.
type Result struct {
	Mask             *volume.BinaryMask
	ForegroundVoxels int
	Duration         time.Duration
}

// Engine computes threshold masks. A single engine runs one operation at a
// time; concurrent calls fail fast with ErrBusy.
type Engine struct {
	busy atomic.Bool
	log  logger.Logger
}

// NewEngine creates a threshold engine. A nil logger disables logging.
func NewEngine(log logger.Logger) *Engine {
	return &Engine{log: logger.OrNop(log)}
}

// Apply builds a binary mask of every voxel whose intensity lies in
// [Lower, Upper], then applies the optional seed restriction, hole filling
// and median smoothing steps in that order.
func (e *Engine) Apply(vol volume.Accessor, cfg Config) (*Result, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.busy.Store(false)

	if cfg.Lower > cfg.Upper {
		return nil, fmt.Errorf("threshold lower bound %g exceeds upper bound %g", cfg.Lower, cfg.Upper)
	}
	geom := vol.Geometry()
	for _, seed := range cfg.SeedPoints {
		if !geom.Contains(seed) {
			return nil, fmt.Errorf("threshold seed point (%d,%d,%d) outside volume %v",
				seed.X, seed.Y, seed.Z, geom.Dims)
		}
	}

	start := time.Now()

	mask, _ := volume.NewBinaryMask(geom)
	for i := 0; i < geom.NumVoxels(); i++ {
		v := vol.IntensityAtIndex(i)
		if v >= cfg.Lower && v <= cfg.Upper {
			mask.SetIndex(i, true)
		}
	}

	if len(cfg.SeedPoints) > 0 {
		restricted, err := keepReachable(mask, cfg.SeedPoints, cfg.Connectivity)
		if err != nil {
			return nil, err
		}
		mask = restricted
	}

	if cfg.FillHoles {
		filled, err := morphology.FillEnclosedHoles(mask, cfg.Connectivity)
		if err != nil {
			return nil, err
		}
		mask = filled
	}

	if cfg.Smoothing {
		mask = medianFilter(mask)
	}

	result := &Result{
		Mask:             mask,
		ForegroundVoxels: mask.CountForeground(),
		Duration:         time.Since(start),
	}

	e.log.Debug("threshold", "threshold applied", map[string]interface{}{
		"lower":      cfg.Lower,
		"upper":      cfg.Upper,
		"foreground": result.ForegroundVoxels,
		"ms":         result.Duration.Milliseconds(),
	})

	return result, nil
}

// keepReachable keeps only the mask voxels reachable from at least one
// seed via flood fill on the connectivity graph.
func keepReachable(mask *volume.BinaryMask, seeds []volume.Point3D, connectivity kernel.Connectivity) (*volume.BinaryMask, error) {
	offsets, err := connectivity.Offsets()
	if err != nil {
		return nil, fmt.Errorf("threshold seed restriction: %w", err)
	}

	geom := mask.Geometry()
	out, _ := volume.NewBinaryMask(geom)
	visited := make([]bool, mask.Len())
	queue := make([]volume.Point3D, 0, len(seeds))

	for _, seed := range seeds {
		idx := geom.Index(seed)
		// A seed outside the threshold range contributes nothing.
		if !mask.ForegroundAtIndex(idx) || visited[idx] {
			continue
		}
		visited[idx] = true
		queue = append(queue, seed)
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		out.Set(p, true)

		for _, off := range offsets {
			n := p.Add(off)
			if !geom.Contains(n) {
				continue
			}
			nIdx := geom.Index(n)
			if visited[nIdx] || !mask.ForegroundAtIndex(nIdx) {
				continue
			}
			visited[nIdx] = true
			queue = append(queue, n)
		}
	}

	return out, nil
}

// medianFilter applies a 3x3x3 median to the mask. Only in-bounds
// neighbors contribute, so boundary voxels see a smaller window.
func medianFilter(mask *volume.BinaryMask) *volume.BinaryMask {
	geom := mask.Geometry()
	out, _ := volume.NewBinaryMask(geom)
	window := make([]float64, 0, 27)

	nx, ny, nz := geom.Dims[0], geom.Dims[1], geom.Dims[2]
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				window = window[:0]
				for dz := -1; dz <= 1; dz++ {
					for dy := -1; dy <= 1; dy++ {
						for dx := -1; dx <= 1; dx++ {
							n := volume.Point3D{X: x + dx, Y: y + dy, Z: z + dz}
							if !geom.Contains(n) {
								continue
							}
							if mask.ForegroundAt(n) {
								window = append(window, 255)
							} else {
								window = append(window, 0)
							}
						}
					}
				}
				if median(window) > 127 {
					out.Set(volume.Point3D{X: x, Y: y, Z: z}, true)
				}
			}
		}
	}
	return out
}

// median returns the median of a window of values.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
