// Package segmentation ties the segmentation engines to one label map and
// segment registry. The facade serializes all label map writes for a given
// segmentation and stamps every result with enough context to log.
package segmentation

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"volseg/internal/logger"
	"volseg/pkg/brush"
	"volseg/pkg/kernel"
	"volseg/pkg/morphology"
	"volseg/pkg/regiongrow"
	"volseg/pkg/threshold"
	"volseg/pkg/volume"
)

// ErrBusy is returned when an operation is started while another one is
// still in flight on the same facade.
var ErrBusy = errors.New("segmentation busy")

// OperationInfo identifies a finished operation for logging and display.
type OperationInfo struct {
	Operation      string
	SegmentationID string
	SegmentIndex   uint16
	Duration       time.Duration
}

// ThresholdResult reports a threshold operation applied to a segment.
type ThresholdResult struct {
	OperationInfo
	ForegroundVoxels int

	// AppliedVoxels counts label map entries actually changed; voxels
	// already carrying the segment index do not count.
	AppliedVoxels int
}

// RegionGrowingResult reports a region growing operation applied to a
// segment. Preview runs carry a mask instead and never reach the label map.
type RegionGrowingResult struct {
	OperationInfo
	Iterations      int
	FinalSimilarity float64
	Converged       bool
	AppliedVoxels   int
}

// EditingResult reports a morphological edit of a segment.
type EditingResult struct {
	OperationInfo
	AffectedVoxels int
	Before         morphology.MaskStats
	After          morphology.MaskStats
}

// BrushResult reports a finalized brush stroke.
type BrushResult struct {
	OperationInfo
	Mode           brush.Mode
	SampleCount    int
	AffectedVoxels int
}

// Facade owns one segmentation: its label map, segment registry and the
// engines that edit it. All write operations are serialized; a second call
// while one is in flight fails fast with ErrBusy.
type Facade struct {
	id       string
	vol      volume.Accessor
	labels   *volume.LabelMap
	registry *Registry
	log      logger.Logger

	busy atomic.Bool

	thresholdEng *threshold.Engine
	growEng      *regiongrow.Engine
	morphEng     *morphology.Engine
	brushEng     *brush.Engine
}

// New creates a facade over an intensity volume and its label map. The
// label map must share the volume's geometry. A nil registry starts empty;
// a nil logger disables logging.
func New(id string, vol volume.Accessor, labels *volume.LabelMap, registry *Registry, brushCfg brush.ToolConfig, log logger.Logger) (*Facade, error) {
	if vol.Geometry().Dims != labels.Geometry().Dims {
		return nil, fmt.Errorf("label map dims %v do not match volume dims %v",
			labels.Geometry().Dims, vol.Geometry().Dims)
	}
	if registry == nil {
		registry = NewRegistry()
	}
	log = logger.OrNop(log)

	return &Facade{
		id:           id,
		vol:          vol,
		labels:       labels,
		registry:     registry,
		log:          log,
		thresholdEng: threshold.NewEngine(log),
		growEng:      regiongrow.NewEngine(log),
		morphEng:     morphology.NewEngine(log),
		brushEng:     brush.NewEngine(labels, brushCfg, log),
	}, nil
}

// ID returns the segmentation identifier.
func (f *Facade) ID() string { return f.id }

// Labels returns the label map. Read-only consumers must snapshot before an
// edit begins; the buffer is not safe for concurrent mutation.
func (f *Facade) Labels() *volume.LabelMap { return f.labels }

// Registry returns the segment registry.
func (f *Facade) Registry() *Registry { return f.registry }

// RequestStop asks a region growing operation in flight to stop
// cooperatively.
func (f *Facade) RequestStop() {
	f.growEng.RequestStop()
}

// SetGrowProgressCallback registers an optional callback invoked
// periodically during region growing.
func (f *Facade) SetGrowProgressCallback(cb regiongrow.ProgressCallback) {
	f.growEng.SetProgressCallback(cb)
}

// ApplyThreshold runs threshold segmentation and assigns the resulting mask
// to the segment.
func (f *Facade) ApplyThreshold(segmentIndex uint16, cfg threshold.Config) (*ThresholdResult, error) {
	const op = "threshold"
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer f.busy.Store(false)

	if _, err := f.registry.checkEditable(segmentIndex); err != nil {
		return nil, f.wrap(op, segmentIndex, err)
	}

	start := time.Now()
	res, err := f.thresholdEng.Apply(f.vol, cfg)
	if err != nil {
		return nil, f.wrap(op, segmentIndex, err)
	}
	applied := f.labels.ApplyMask(res.Mask, segmentIndex)

	result := &ThresholdResult{
		OperationInfo:    f.info(op, segmentIndex, start),
		ForegroundVoxels: res.ForegroundVoxels,
		AppliedVoxels:    applied,
	}
	f.logResult(op, segmentIndex, map[string]interface{}{
		"foreground": res.ForegroundVoxels,
		"applied":    applied,
	})
	return result, nil
}

// GrowRegion runs seeded region growing and assigns the grown mask to the
// segment.
func (f *Facade) GrowRegion(segmentIndex uint16, cfg regiongrow.Config) (*RegionGrowingResult, error) {
	const op = "regionGrowing"
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer f.busy.Store(false)

	if _, err := f.registry.checkEditable(segmentIndex); err != nil {
		return nil, f.wrap(op, segmentIndex, err)
	}

	start := time.Now()
	res, err := f.growEng.Grow(f.vol, cfg)
	if err != nil {
		return nil, f.wrap(op, segmentIndex, err)
	}
	applied := f.labels.ApplyMask(res.Mask, segmentIndex)

	result := &RegionGrowingResult{
		OperationInfo:   f.info(op, segmentIndex, start),
		Iterations:      res.Iterations,
		FinalSimilarity: res.FinalSimilarity,
		Converged:       res.Converged,
		AppliedVoxels:   applied,
	}
	f.logResult(op, segmentIndex, map[string]interface{}{
		"iterations": res.Iterations,
		"converged":  res.Converged,
		"applied":    applied,
	})
	return result, nil
}

// PreviewGrow runs region growing capped for interactive preview and
// returns the raw result without touching the label map.
func (f *Facade) PreviewGrow(cfg regiongrow.Config) (*regiongrow.Result, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer f.busy.Store(false)

	return f.growEng.Preview(f.vol, cfg)
}

// ApplyMorphology extracts the segment's mask, applies the morphological
// operation and writes the result back. Voxels removed from the mask are
// cleared to background; voxels added take the segment index.
func (f *Facade) ApplyMorphology(segmentIndex uint16, cfg morphology.Config) (*EditingResult, error) {
	const op = "morphology"
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer f.busy.Store(false)

	if _, err := f.registry.checkEditable(segmentIndex); err != nil {
		return nil, f.wrap(op, segmentIndex, err)
	}

	start := time.Now()
	mask := f.labels.MaskForSegment(segmentIndex)
	out, res, err := f.morphEng.Apply(mask, cfg)
	if err != nil {
		return nil, f.wrap(op, segmentIndex, err)
	}
	f.writeBack(segmentIndex, mask, out)

	result := &EditingResult{
		OperationInfo:  f.info(op, segmentIndex, start),
		AffectedVoxels: res.AffectedVoxels,
		Before:         res.Before,
		After:          res.After,
	}
	f.logResult(op, segmentIndex, map[string]interface{}{
		"operation": cfg.Operation.String(),
		"affected":  res.AffectedVoxels,
	})
	return result, nil
}

// CombineSegments applies a boolean operation between two segments' masks
// and assigns the combined mask to the target segment.
func (f *Facade) CombineSegments(aIdx, bIdx, targetIdx uint16, op morphology.BooleanOp) (*EditingResult, error) {
	const opName = "booleanCombine"
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer f.busy.Store(false)

	if _, err := f.registry.Get(aIdx); err != nil {
		return nil, f.wrap(opName, aIdx, err)
	}
	if _, err := f.registry.Get(bIdx); err != nil {
		return nil, f.wrap(opName, bIdx, err)
	}
	if _, err := f.registry.checkEditable(targetIdx); err != nil {
		return nil, f.wrap(opName, targetIdx, err)
	}

	start := time.Now()
	a := f.labels.MaskForSegment(aIdx)
	b := f.labels.MaskForSegment(bIdx)
	target := f.labels.MaskForSegment(targetIdx)

	out, res, err := f.morphEng.ApplyBoolean(a, b, op, morphology.Config{Connectivity: kernel.Face6})
	if err != nil {
		return nil, f.wrap(opName, targetIdx, err)
	}
	f.writeBack(targetIdx, target, out)

	result := &EditingResult{
		OperationInfo:  f.info(opName, targetIdx, start),
		AffectedVoxels: res.AffectedVoxels,
		Before:         res.Before,
		After:          res.After,
	}
	f.logResult(opName, targetIdx, map[string]interface{}{
		"op":       op.String(),
		"affected": res.AffectedVoxels,
	})
	return result, nil
}

// ClearSegment removes every voxel of the segment from the label map.
func (f *Facade) ClearSegment(segmentIndex uint16) (*EditingResult, error) {
	const op = "clearSegment"
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer f.busy.Store(false)

	if _, err := f.registry.checkEditable(segmentIndex); err != nil {
		return nil, f.wrap(op, segmentIndex, err)
	}

	start := time.Now()
	cleared := f.labels.ClearSegment(segmentIndex)

	return &EditingResult{
		OperationInfo:  f.info(op, segmentIndex, start),
		AffectedVoxels: cleared,
	}, nil
}

// StartStroke begins a brush stroke on the segment. An active stroke is
// finalized first through EndStroke, so the implicit finalization competes
// for the same write serialization as every other label map edit.
func (f *Facade) StartStroke(p volume.Point3D, segmentIndex uint16, pressure float64) error {
	if _, err := f.registry.checkEditable(segmentIndex); err != nil {
		return f.wrap("brush", segmentIndex, err)
	}
	if !f.labels.Geometry().Contains(p) {
		return f.wrap("brush", segmentIndex,
			fmt.Errorf("stroke start (%d,%d,%d) outside volume %v", p.X, p.Y, p.Z, f.labels.Geometry().Dims))
	}
	if f.brushEng.ActiveStroke() {
		if _, err := f.EndStroke(); err != nil {
			return err
		}
	}
	return f.brushEng.StartStroke(p, segmentIndex, pressure)
}

// AddStrokePoint extends the active brush stroke.
func (f *Facade) AddStrokePoint(p volume.Point3D, pressure float64) error {
	return f.brushEng.AddStrokePoint(p, pressure)
}

// EndStroke finalizes the active brush stroke and applies it to the label
// map. Without an active stroke it returns (nil, nil).
func (f *Facade) EndStroke() (*BrushResult, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer f.busy.Store(false)

	start := time.Now()
	res, err := f.brushEng.EndStroke()
	if err != nil {
		return nil, f.wrap("brush", 0, err)
	}
	if res == nil {
		return nil, nil
	}

	return &BrushResult{
		OperationInfo:  f.info("brush", res.SegmentIndex, start),
		Mode:           res.Mode,
		SampleCount:    res.SampleCount,
		AffectedVoxels: res.AffectedVoxels,
	}, nil
}

// CancelStroke discards the active brush stroke.
func (f *Facade) CancelStroke() {
	f.brushEng.CancelStroke()
}

// SetBrushConfig replaces the brush tool configuration.
func (f *Facade) SetBrushConfig(cfg brush.ToolConfig) {
	f.brushEng.SetConfig(cfg)
}

// UndoStroke pops the most recent finalized stroke from the brush history
// without re-applying it.
func (f *Facade) UndoStroke() *brush.Stroke {
	return f.brushEng.Undo()
}

// writeBack replaces the segment's voxels: before-voxels no longer in the
// result are cleared, result voxels take the segment index.
func (f *Facade) writeBack(segmentIndex uint16, before, after *volume.BinaryMask) {
	f.labels.EraseMask(before, segmentIndex)
	f.labels.ApplyMask(after, segmentIndex)
}

func (f *Facade) info(op string, segmentIndex uint16, start time.Time) OperationInfo {
	return OperationInfo{
		Operation:      op,
		SegmentationID: f.id,
		SegmentIndex:   segmentIndex,
		Duration:       time.Since(start),
	}
}

func (f *Facade) wrap(op string, segmentIndex uint16, err error) error {
	return fmt.Errorf("%s (segmentation %s, segment %d): %w", op, f.id, segmentIndex, err)
}

func (f *Facade) logResult(op string, segmentIndex uint16, fields map[string]interface{}) {
	fields["segmentation"] = f.id
	fields["segment"] = segmentIndex
	f.log.Info("segmentation", op+" applied", fields)
}
