package threshold

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"volseg/pkg/volume"
)

// ROI is an axis-aligned region of interest, both corners inclusive.
type ROI struct {
	Min, Max volume.Point3D
}

// HistogramResult holds an equal-width intensity histogram plus summary
// statistics, used for interactive threshold selection.
type HistogramResult struct {
	// Bins holds the lower edge of each bin.
	Bins []float64

	// Counts holds the number of voxels falling into each bin.
	Counts []int

	MinValue    float64
	MaxValue    float64
	TotalVoxels int

	// Mean and StdDev summarize the sampled intensities.
	Mean   float64
	StdDev float64
}

// Histogram computes an equal-width histogram of the volume's intensities,
// optionally restricted to an axis-aligned region of interest.
func Histogram(vol volume.Accessor, binCount int, roi *ROI) (*HistogramResult, error) {
	if binCount < 1 {
		return nil, fmt.Errorf("histogram bin count %d must be >= 1", binCount)
	}
	geom := vol.Geometry()

	min, max := volume.Point3D{}, volume.Point3D{
		X: geom.Dims[0] - 1, Y: geom.Dims[1] - 1, Z: geom.Dims[2] - 1,
	}
	if roi != nil {
		if !geom.Contains(roi.Min) || !geom.Contains(roi.Max) {
			return nil, fmt.Errorf("histogram roi %v..%v outside volume %v", roi.Min, roi.Max, geom.Dims)
		}
		if roi.Min.X > roi.Max.X || roi.Min.Y > roi.Max.Y || roi.Min.Z > roi.Max.Z {
			return nil, fmt.Errorf("histogram roi min %v exceeds max %v", roi.Min, roi.Max)
		}
		min, max = roi.Min, roi.Max
	}

	values := make([]float64, 0, (max.X-min.X+1)*(max.Y-min.Y+1)*(max.Z-min.Z+1))
	for z := min.Z; z <= max.Z; z++ {
		for y := min.Y; y <= max.Y; y++ {
			for x := min.X; x <= max.X; x++ {
				values = append(values, vol.IntensityAt(volume.Point3D{X: x, Y: y, Z: z}))
			}
		}
	}

	result := &HistogramResult{
		Bins:        make([]float64, binCount),
		Counts:      make([]int, binCount),
		MinValue:    floats.Min(values),
		MaxValue:    floats.Max(values),
		TotalVoxels: len(values),
		Mean:        stat.Mean(values, nil),
		StdDev:      stat.StdDev(values, nil),
	}

	span := result.MaxValue - result.MinValue
	binWidth := span / float64(binCount)
	for i := range result.Bins {
		result.Bins[i] = result.MinValue + float64(i)*binWidth
	}

	for _, v := range values {
		binIdx := 0
		if span > 0 {
			binIdx = int((v - result.MinValue) / binWidth)
			if binIdx >= binCount {
				binIdx = binCount - 1
			}
		}
		result.Counts[binIdx]++
	}

	return result, nil
}
