// Package regiongrow implements seeded region growing: iterative expansion
// of a region from seed voxels driven by a similarity function and stopping
// criteria, with cooperative cancellation.
package regiongrow

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"volseg/internal/logger"
	"volseg/pkg/kernel"
	"volseg/pkg/volume"
)

// ErrBusy is returned when a growth is started while another one is still
// in flight on the same engine instance.
var ErrBusy = errors.New("region growing engine busy")

// SimilarityMode selects how candidate voxels are scored against the
// growing region.
type SimilarityMode int

const (
	// Intensity scores a candidate by its absolute difference from the
	// region's running mean intensity.
	Intensity SimilarityMode = iota
	// Gradient scores a candidate by its absolute difference from the
	// region's running mean gradient magnitude.
	Gradient
	// Adaptive scales the mean-intensity difference by a factor derived
	// from the candidate's distance to the nearest seed and the region's
	// running standard deviation.
	Adaptive
)

// String returns the mode name for logs and error messages.
func (m SimilarityMode) String() string {
	switch m {
	case Intensity:
		return "intensity"
	case Gradient:
		return "gradient"
	case Adaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("similarityMode(%d)", int(m))
	}
}

// Similarity configures the acceptance criterion.
type Similarity struct {
	Mode      SimilarityMode
	Threshold float64

	// Radius reserves a neighborhood radius for future sampling-based
	// scores; current modes score single voxels and ignore it.
	Radius int
}

// Constraints bound the extent of the grown region.
type Constraints struct {
	// MaxRegionSize stops growth once the region reaches this many voxels.
	// Zero means unbounded.
	MaxRegionSize int

	// MinRegionSize marks the result suspicious when the final region is
	// smaller; growth itself is not affected.
	MinRegionSize int

	// MaxDistance rejects candidates farther than this (in voxel units)
	// from every seed. Zero means unbounded.
	MaxDistance float64
}

// StopCriteria bound the iteration count and define convergence.
type StopCriteria struct {
	// MaxIterations caps the number of dequeue steps. Zero means no cap.
	MaxIterations int

	// ConvergenceThreshold stops growth when the fractional growth rate,
	// checked every 50 iterations, falls below it.
	ConvergenceThreshold float64
}

// Config holds the parameters of one growth operation.
type Config struct {
	SeedPoints   []volume.Point3D
	Similarity   Similarity
	Constraints  Constraints
	StopCriteria StopCriteria
}

// Result reports the outcome of one growth operation. A cancelled or
// iteration-capped growth is a partial result with Converged=false, not an
// error.
type Result struct {
	Mask            *volume.BinaryMask
	Iterations      int
	FinalSimilarity float64
	Converged       bool
	Duration        time.Duration
}

// ProgressCallback reports growth progress: iterations completed so far
// and the current region size in voxels.
type ProgressCallback func(iterations, regionSize int)

// convergenceInterval is the iteration period of the growth-rate check.
const convergenceInterval = 50

// previewIterationCap bounds preview growths.
const previewIterationCap = 100

// Engine grows regions from seeds. A single engine runs one growth at a
// time; concurrent calls fail fast with ErrBusy. A growth in flight can be
// cancelled cooperatively with RequestStop.
type Engine struct {
	busy atomic.Bool
	stop atomic.Bool
	log  logger.Logger

	progress ProgressCallback
}

// NewEngine creates a region growing engine. A nil logger disables logging.
func NewEngine(log logger.Logger) *Engine {
	return &Engine{log: logger.OrNop(log)}
}

// SetProgressCallback registers an optional callback invoked every 50
// iterations during growth.
func (e *Engine) SetProgressCallback(cb ProgressCallback) {
	e.progress = cb
}

// RequestStop asks a growth in flight to stop cooperatively. The growth
// returns its best-effort partial result with Converged=false.
func (e *Engine) RequestStop() {
	e.stop.Store(true)
}

// Grow runs seeded region growing over the volume.
func (e *Engine) Grow(vol volume.Accessor, cfg Config) (*Result, error) {
	return e.grow(vol, cfg, 0)
}

// Preview runs the identical algorithm capped at 100 iterations. The
// result mask is never applied to a label map; it is for display only.
func (e *Engine) Preview(vol volume.Accessor, cfg Config) (*Result, error) {
	return e.grow(vol, cfg, previewIterationCap)
}

func (e *Engine) grow(vol volume.Accessor, cfg Config, iterationCap int) (*Result, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.busy.Store(false)
	e.stop.Store(false)

	if len(cfg.SeedPoints) == 0 {
		return nil, fmt.Errorf("region growing requires at least one seed point")
	}
	geom := vol.Geometry()
	for _, seed := range cfg.SeedPoints {
		if !geom.Contains(seed) {
			return nil, fmt.Errorf("region growing seed point (%d,%d,%d) outside volume %v",
				seed.X, seed.Y, seed.Z, geom.Dims)
		}
	}
	switch cfg.Similarity.Mode {
	case Intensity, Gradient, Adaptive:
	default:
		return nil, fmt.Errorf("unknown similarity mode %d", int(cfg.Similarity.Mode))
	}

	maxIterations := cfg.StopCriteria.MaxIterations
	if iterationCap > 0 && (maxIterations == 0 || maxIterations > iterationCap) {
		maxIterations = iterationCap
	}

	start := time.Now()
	state := newGrowthState(vol, cfg)

	offsets, err := kernel.Vertex26.Offsets()
	if err != nil {
		return nil, err
	}

	queue := make([]volume.Point3D, 0, len(cfg.SeedPoints))
	for _, seed := range cfg.SeedPoints {
		if state.accept(seed, geom.Index(seed)) {
			queue = append(queue, seed)
		}
	}

	iterations := 0
	lastCheckSize := state.regionSize
	converged := false
	cancelled := false

	for len(queue) > 0 {
		if e.stop.Load() {
			cancelled = true
			break
		}
		if maxIterations > 0 && iterations >= maxIterations {
			break
		}
		if cfg.Constraints.MaxRegionSize > 0 && state.regionSize >= cfg.Constraints.MaxRegionSize {
			break
		}

		p := queue[0]
		queue = queue[1:]
		iterations++

		for _, off := range offsets {
			n := p.Add(off)
			if !geom.Contains(n) {
				continue
			}
			nIdx := geom.Index(n)
			if state.visited[nIdx] {
				continue
			}

			if cfg.Constraints.MaxDistance > 0 {
				sq := state.seeds.squaredDistanceTo(n)
				if sq > cfg.Constraints.MaxDistance*cfg.Constraints.MaxDistance {
					state.visited[nIdx] = true
					continue
				}
			}

			score := state.score(n, nIdx)
			state.visited[nIdx] = true
			if score <= cfg.Similarity.Threshold {
				state.admit(n, nIdx, score)
				queue = append(queue, n)
			}
		}

		if iterations%convergenceInterval == 0 {
			if e.progress != nil {
				e.progress(iterations, state.regionSize)
			}
			if lastCheckSize > 0 && cfg.StopCriteria.ConvergenceThreshold > 0 {
				growthRate := float64(state.regionSize-lastCheckSize) / float64(lastCheckSize)
				if growthRate < cfg.StopCriteria.ConvergenceThreshold {
					converged = true
					break
				}
			}
			lastCheckSize = state.regionSize
		}
	}

	// Exhausting the queue is natural completion.
	if len(queue) == 0 && !cancelled {
		converged = true
	}

	if cfg.Constraints.MinRegionSize > 0 && state.regionSize < cfg.Constraints.MinRegionSize {
		e.log.Warning("regiongrow", "region smaller than configured minimum", map[string]interface{}{
			"regionSize": state.regionSize,
			"minimum":    cfg.Constraints.MinRegionSize,
		})
	}

	result := &Result{
		Mask:            state.mask,
		Iterations:      iterations,
		FinalSimilarity: state.lastScore,
		Converged:       converged && !cancelled,
		Duration:        time.Since(start),
	}

	e.log.Debug("regiongrow", "growth finished", map[string]interface{}{
		"mode":       cfg.Similarity.Mode.String(),
		"iterations": iterations,
		"regionSize": state.regionSize,
		"converged":  result.Converged,
		"cancelled":  cancelled,
		"ms":         result.Duration.Milliseconds(),
	})

	return result, nil
}

// growthState is the per-growth working set: region membership, visited
// marks and running statistics. It is discarded once the result mask has
// been handed to the caller.
type growthState struct {
	vol      volume.Accessor
	cfg      Config
	mask     *volume.BinaryMask
	visited  []bool
	gradient []float64
	seeds    *seedIndex

	regionSize   int
	sumIntensity float64
	sumSquares   float64
	sumGradient  float64
	lastScore    float64
}

func newGrowthState(vol volume.Accessor, cfg Config) *growthState {
	geom := vol.Geometry()
	mask, _ := volume.NewBinaryMask(geom)

	s := &growthState{
		vol:     vol,
		cfg:     cfg,
		mask:    mask,
		visited: make([]bool, geom.NumVoxels()),
	}

	// Gradient magnitude is precomputed once per volume before growth
	// starts; intensity mode never reads it.
	if cfg.Similarity.Mode == Gradient {
		s.gradient = volume.GradientMagnitude(vol)
	}
	if cfg.Constraints.MaxDistance > 0 || cfg.Similarity.Mode == Adaptive {
		s.seeds = newSeedIndex(cfg.SeedPoints)
	}

	return s
}

// accept admits a seed voxel without scoring. Duplicate seeds are admitted
// once.
func (s *growthState) accept(p volume.Point3D, idx int) bool {
	if s.visited[idx] {
		return false
	}
	s.visited[idx] = true
	s.admit(p, idx, 0)
	return true
}

// admit adds a voxel to the region and updates the running statistics.
func (s *growthState) admit(p volume.Point3D, idx int, score float64) {
	s.mask.SetIndex(idx, true)
	s.regionSize++

	v := s.vol.IntensityAtIndex(idx)
	s.sumIntensity += v
	s.sumSquares += v * v
	if s.gradient != nil {
		s.sumGradient += s.gradient[idx]
	}
	s.lastScore = score
}

// score computes the similarity score of a candidate against the region's
// running statistics; lower is more similar.
func (s *growthState) score(p volume.Point3D, idx int) float64 {
	switch s.cfg.Similarity.Mode {
	case Gradient:
		mean := s.sumGradient / float64(s.regionSize)
		return math.Abs(s.gradient[idx] - mean)
	case Adaptive:
		mean := s.sumIntensity / float64(s.regionSize)
		diff := math.Abs(s.vol.IntensityAtIndex(idx) - mean)
		dist := math.Sqrt(s.seeds.squaredDistanceTo(p))
		// Far-from-seed candidates must be closer in intensity; a high
		// region standard deviation relaxes the penalty.
		factor := 1 + dist/(1+s.stdDev())
		return diff * factor
	default: // Intensity
		mean := s.sumIntensity / float64(s.regionSize)
		return math.Abs(s.vol.IntensityAtIndex(idx) - mean)
	}
}

// stdDev returns the running standard deviation of region intensities.
func (s *growthState) stdDev() float64 {
	n := float64(s.regionSize)
	if n < 2 {
		return 0
	}
	mean := s.sumIntensity / n
	variance := s.sumSquares/n - mean*mean
	if variance < 0 {
		return 0
	}
	return math.Sqrt(variance)
}
