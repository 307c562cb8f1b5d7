// Package brush implements stroke-based manual painting of a label map:
// paint, erase and flood-fill strokes with pressure-sensitive radius and
// hardness falloff, plus a bounded undo history.
package brush

import (
	"fmt"
	"math"
	"time"

	"volseg/internal/logger"
	"volseg/pkg/volume"
)

// Mode selects what a stroke does to the label map.
type Mode int

const (
	// Paint assigns the stroke's segment index under the brush.
	Paint Mode = iota
	// Erase clears labels under the brush to background.
	Erase
	// Fill flood-fills the region of uniform label under the stroke point.
	Fill
)

// String returns the mode name for logs and error messages.
func (m Mode) String() string {
	switch m {
	case Paint:
		return "paint"
	case Erase:
		return "erase"
	case Fill:
		return "fill"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Shape selects the brush footprint.
type Shape int

const (
	// Circle includes every offset with distance below the radius,
	// weighted by a hardness falloff.
	Circle Shape = iota
	// Square includes the full bounding box with no falloff.
	Square
)

// ToolConfig holds the brush tool parameters.
type ToolConfig struct {
	Shape  Shape
	Radius float64

	// Hardness in (0, 1] controls the falloff: 1 is a hard edge, lower
	// values start a linear falloff at Radius*Hardness. A stamped voxel
	// whose falloff weight drops below 0.5 is not painted.
	Hardness float64

	// PressureSensitive scales the radius linearly by the sample pressure.
	// A pressure of 0 means the input device supplied no pressure data and
	// leaves the radius unscaled.
	PressureSensitive bool

	// Spacing is the minimum distance between consecutive stroke samples;
	// closer samples are ignored to avoid redundant rasterization. Values
	// <= 0 accept every sample.
	Spacing float64

	Mode Mode
}

// Sample is one captured point of a stroke.
type Sample struct {
	Point    volume.Point3D
	Pressure float64
}

// Stroke is an ordered sequence of samples applied as one operation.
type Stroke struct {
	Samples      []Sample
	Radius       float64
	SegmentIndex uint16
	Mode         Mode
	StartedAt    time.Time
}

// OperationResult reports the outcome of one finalized stroke.
type OperationResult struct {
	Mode           Mode
	SegmentIndex   uint16
	SampleCount    int
	AffectedVoxels int
	Duration       time.Duration
}

// undoDepth bounds the stroke undo history.
const undoDepth = 50

// Engine applies brush strokes to a label map. Strokes are single-writer:
// one active stroke per engine, and starting a new stroke while one is
// active silently finalizes the previous one.
type Engine struct {
	labels *volume.LabelMap
	cfg    ToolConfig
	log    logger.Logger

	active *Stroke
	undo   []*Stroke
}

// NewEngine creates a brush engine bound to a label map. A nil logger
// disables logging.
func NewEngine(labels *volume.LabelMap, cfg ToolConfig, log logger.Logger) *Engine {
	if cfg.Hardness <= 0 || cfg.Hardness > 1 {
		cfg.Hardness = 1
	}
	return &Engine{labels: labels, cfg: cfg, log: logger.OrNop(log)}
}

// SetConfig replaces the tool configuration. The active stroke, if any,
// keeps the configuration it started with.
func (e *Engine) SetConfig(cfg ToolConfig) {
	if cfg.Hardness <= 0 || cfg.Hardness > 1 {
		cfg.Hardness = 1
	}
	e.cfg = cfg
}

// ActiveStroke reports whether a stroke is currently in progress.
func (e *Engine) ActiveStroke() bool {
	return e.active != nil
}

// StartStroke begins a new stroke at the given point. An active stroke is
// silently finalized first.
func (e *Engine) StartStroke(p volume.Point3D, segmentIndex uint16, pressure float64) error {
	if !e.labels.Geometry().Contains(p) {
		return fmt.Errorf("stroke start (%d,%d,%d) outside volume %v", p.X, p.Y, p.Z, e.labels.Geometry().Dims)
	}

	if e.active != nil {
		if _, err := e.EndStroke(); err != nil {
			return err
		}
	}

	e.active = &Stroke{
		Samples:      []Sample{{Point: p, Pressure: pressure}},
		Radius:       e.cfg.Radius,
		SegmentIndex: segmentIndex,
		Mode:         e.cfg.Mode,
		StartedAt:    time.Now(),
	}
	return nil
}

// AddStrokePoint extends the active stroke. Samples closer than the
// configured spacing to the previous sample are ignored. Without an active
// stroke the call is a no-op.
func (e *Engine) AddStrokePoint(p volume.Point3D, pressure float64) error {
	if e.active == nil {
		return nil
	}
	if !e.labels.Geometry().Contains(p) {
		return fmt.Errorf("stroke point (%d,%d,%d) outside volume %v", p.X, p.Y, p.Z, e.labels.Geometry().Dims)
	}

	if e.cfg.Spacing > 0 {
		last := e.active.Samples[len(e.active.Samples)-1].Point
		dx := float64(p.X - last.X)
		dy := float64(p.Y - last.Y)
		dz := float64(p.Z - last.Z)
		if math.Sqrt(dx*dx+dy*dy+dz*dz) < e.cfg.Spacing {
			return nil
		}
	}

	e.active.Samples = append(e.active.Samples, Sample{Point: p, Pressure: pressure})
	return nil
}

// EndStroke finalizes the active stroke, applies it to the label map and
// pushes it onto the undo history. Without an active stroke it returns
// (nil, nil).
func (e *Engine) EndStroke() (*OperationResult, error) {
	if e.active == nil {
		return nil, nil
	}
	stroke := e.active
	e.active = nil

	start := time.Now()
	affected, err := e.apply(stroke)
	if err != nil {
		return nil, err
	}

	e.undo = append(e.undo, stroke)
	if len(e.undo) > undoDepth {
		e.undo = e.undo[len(e.undo)-undoDepth:]
	}

	result := &OperationResult{
		Mode:           stroke.Mode,
		SegmentIndex:   stroke.SegmentIndex,
		SampleCount:    len(stroke.Samples),
		AffectedVoxels: affected,
		Duration:       time.Since(start),
	}

	e.log.Debug("brush", "stroke applied", map[string]interface{}{
		"mode":     stroke.Mode.String(),
		"segment":  stroke.SegmentIndex,
		"samples":  result.SampleCount,
		"affected": result.AffectedVoxels,
	})

	return result, nil
}

// CancelStroke discards the active stroke without touching the label map.
func (e *Engine) CancelStroke() {
	e.active = nil
}

// Undo pops and returns the most recent finalized stroke. The label map is
// not rewound; re-applying history is the caller's responsibility.
func (e *Engine) Undo() *Stroke {
	if len(e.undo) == 0 {
		return nil
	}
	stroke := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	return stroke
}

// UndoDepth returns the number of strokes currently held in the history.
func (e *Engine) UndoDepth() int {
	return len(e.undo)
}

// apply rasterizes every sample of a stroke into the label map.
func (e *Engine) apply(stroke *Stroke) (int, error) {
	affected := 0
	for _, sample := range stroke.Samples {
		switch stroke.Mode {
		case Paint:
			affected += e.stamp(sample, stroke, stroke.SegmentIndex)
		case Erase:
			affected += e.stamp(sample, stroke, 0)
		case Fill:
			affected += e.floodFill(sample.Point, stroke.SegmentIndex)
		default:
			return 0, fmt.Errorf("unknown brush mode %d", int(stroke.Mode))
		}
	}
	return affected, nil
}

// stamp rasterizes one brush footprint, assigning the target label to
// every voxel whose falloff weight reaches 0.5.
func (e *Engine) stamp(sample Sample, stroke *Stroke, target uint16) int {
	radius := stroke.Radius
	if e.cfg.PressureSensitive && sample.Pressure > 0 {
		radius *= sample.Pressure
	}

	var voxels []stampVoxel
	switch e.cfg.Shape {
	case Square:
		voxels = squareStamp(radius)
	default:
		voxels = circularStamp(radius, e.cfg.Hardness)
	}

	geom := e.labels.Geometry()
	changed := 0
	for _, sv := range voxels {
		if sv.weight < 0.5 {
			continue
		}
		p := sample.Point.Add(sv.offset)
		if !geom.Contains(p) {
			continue
		}
		if e.labels.Get(p) != target {
			e.labels.Set(p, target)
			changed++
		}
	}
	return changed
}

// floodFill reassigns the connected region of uniform label around the
// point to the target segment, bounded by the current segment boundary.
// Face connectivity keeps fills from leaking through diagonal gaps.
func (e *Engine) floodFill(p volume.Point3D, target uint16) int {
	geom := e.labels.Geometry()
	source := e.labels.Get(p)
	if source == target {
		return 0
	}

	offsets := []volume.Point3D{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
	}

	changed := 0
	queue := []volume.Point3D{p}
	e.labels.Set(p, target)
	changed++

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, off := range offsets {
			n := cur.Add(off)
			if !geom.Contains(n) {
				continue
			}
			if e.labels.Get(n) != source {
				continue
			}
			e.labels.Set(n, target)
			changed++
			queue = append(queue, n)
		}
	}
	return changed
}
