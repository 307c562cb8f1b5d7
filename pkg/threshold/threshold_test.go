package threshold

import (
	"errors"
	"math"
	"testing"

	"volseg/pkg/components"
	"volseg/pkg/kernel"
	"volseg/pkg/volume"
)

// uniformVolume builds a volume filled with a single intensity, with
// optional per-voxel overrides.
func uniformVolume(t *testing.T, nx, ny, nz int, fill float32, overrides map[volume.Point3D]float32) *volume.InMemoryVolume {
	t.Helper()
	geom := volume.DefaultGeometry(nx, ny, nz)
	data := make([]float32, geom.NumVoxels())
	for i := range data {
		data[i] = fill
	}
	for p, v := range overrides {
		data[geom.Index(p)] = v
	}
	vol, err := volume.NewInMemoryVolume(data, geom)
	if err != nil {
		t.Fatalf("NewInMemoryVolume: %v", err)
	}
	return vol
}

// TestThresholdInclusiveBounds verifies that both range bounds are
// inclusive: of the values {50, 100, 150, 200, 250} exactly the middle
// three fall into [100, 200].
func TestThresholdInclusiveBounds(t *testing.T) {
	points := []volume.Point3D{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 2, Y: 0, Z: 0},
		{X: 3, Y: 0, Z: 0},
		{X: 4, Y: 0, Z: 0},
	}
	values := []float32{50, 100, 150, 200, 250}

	overrides := make(map[volume.Point3D]float32, len(points))
	for i, p := range points {
		overrides[p] = values[i]
	}
	vol := uniformVolume(t, 5, 3, 3, 0, overrides)

	engine := NewEngine(nil)
	res, err := engine.Apply(vol, Config{Lower: 100, Upper: 200, Connectivity: kernel.Vertex26})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if res.ForegroundVoxels != 3 {
		t.Errorf("foreground voxels = %d, want 3", res.ForegroundVoxels)
	}
	wantSet := []bool{false, true, true, true, false}
	for i, p := range points {
		if got := res.Mask.ForegroundAt(p); got != wantSet[i] {
			t.Errorf("voxel %d (value %g): foreground = %v, want %v", i, values[i], got, wantSet[i])
		}
	}
}

// TestThresholdBusy verifies the fail-fast guard: a second Apply while one
// is in flight on the same engine returns ErrBusy, and the engine recovers
// once the flag clears.
func TestThresholdBusy(t *testing.T) {
	vol := uniformVolume(t, 4, 4, 4, 100, nil)
	engine := NewEngine(nil)

	engine.busy.Store(true)
	if _, err := engine.Apply(vol, Config{Lower: 0, Upper: 200}); !errors.Is(err, ErrBusy) {
		t.Errorf("Apply on a busy engine returned %v, want ErrBusy", err)
	}

	engine.busy.Store(false)
	if _, err := engine.Apply(vol, Config{Lower: 0, Upper: 200}); err != nil {
		t.Errorf("Apply after the flag cleared failed: %v", err)
	}
}

func TestThresholdRejectsInvertedRange(t *testing.T) {
	vol := uniformVolume(t, 2, 2, 2, 0, nil)
	engine := NewEngine(nil)
	if _, err := engine.Apply(vol, Config{Lower: 200, Upper: 100}); err == nil {
		t.Errorf("expected a configuration error for lower > upper")
	}
}

func TestThresholdRejectsOutOfBoundsSeed(t *testing.T) {
	vol := uniformVolume(t, 4, 4, 4, 100, nil)
	engine := NewEngine(nil)
	_, err := engine.Apply(vol, Config{
		Lower:        0,
		Upper:        200,
		Connectivity: kernel.Face6,
		SeedPoints:   []volume.Point3D{{X: 4, Y: 0, Z: 0}},
	})
	if err == nil {
		t.Errorf("expected an error for an out-of-volume seed point")
	}
}

// TestThresholdSeedRestriction verifies that with seed points only the
// components reachable from a seed survive, and that a seed outside the
// threshold range contributes nothing.
func TestThresholdSeedRestriction(t *testing.T) {
	// Two separated in-range blobs in a low background.
	overrides := map[volume.Point3D]float32{
		{X: 1, Y: 1, Z: 1}: 150,
		{X: 2, Y: 1, Z: 1}: 150,
		{X: 6, Y: 6, Z: 6}: 150,
	}
	vol := uniformVolume(t, 8, 8, 8, 0, overrides)
	engine := NewEngine(nil)

	res, err := engine.Apply(vol, Config{
		Lower:        100,
		Upper:        200,
		Connectivity: kernel.Face6,
		SeedPoints:   []volume.Point3D{{X: 1, Y: 1, Z: 1}},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.ForegroundVoxels != 2 {
		t.Errorf("foreground voxels = %d, want 2", res.ForegroundVoxels)
	}
	if res.Mask.ForegroundAt(volume.Point3D{X: 6, Y: 6, Z: 6}) {
		t.Errorf("unreachable blob survived the seed restriction")
	}

	// A seed on a background voxel yields an empty mask.
	res, err = engine.Apply(vol, Config{
		Lower:        100,
		Upper:        200,
		Connectivity: kernel.Face6,
		SeedPoints:   []volume.Point3D{{X: 0, Y: 0, Z: 0}},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.ForegroundVoxels != 0 {
		t.Errorf("out-of-range seed produced %d voxels, want 0", res.ForegroundVoxels)
	}
}

func TestThresholdFillHoles(t *testing.T) {
	// A solid in-range cube with one out-of-range voxel inside.
	overrides := map[volume.Point3D]float32{}
	for z := 2; z <= 6; z++ {
		for y := 2; y <= 6; y++ {
			for x := 2; x <= 6; x++ {
				overrides[volume.Point3D{X: x, Y: y, Z: z}] = 150
			}
		}
	}
	hole := volume.Point3D{X: 4, Y: 4, Z: 4}
	overrides[hole] = 500
	vol := uniformVolume(t, 10, 10, 10, 0, overrides)

	engine := NewEngine(nil)
	res, err := engine.Apply(vol, Config{
		Lower:        100,
		Upper:        200,
		Connectivity: kernel.Face6,
		FillHoles:    true,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Mask.ForegroundAt(hole) {
		t.Errorf("enclosed hole was not filled")
	}
}

func TestThresholdSmoothingRemovesLoneVoxel(t *testing.T) {
	vol := uniformVolume(t, 9, 9, 9, 0, map[volume.Point3D]float32{
		{X: 4, Y: 4, Z: 4}: 150,
	})

	engine := NewEngine(nil)
	res, err := engine.Apply(vol, Config{
		Lower:        100,
		Upper:        200,
		Connectivity: kernel.Face6,
		Smoothing:    true,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.ForegroundVoxels != 0 {
		t.Errorf("median smoothing kept a lone voxel: %d foreground", res.ForegroundVoxels)
	}
}

// TestSingleHotVoxelScenario thresholds a 10x10x10 volume of 500s with a
// single 1000 at (5,5,5) and labels the result: exactly one single-voxel
// component centered on the hot voxel.
func TestSingleHotVoxelScenario(t *testing.T) {
	vol := uniformVolume(t, 10, 10, 10, 500, map[volume.Point3D]float32{
		{X: 5, Y: 5, Z: 5}: 1000,
	})

	engine := NewEngine(nil)
	res, err := engine.Apply(vol, Config{Lower: 900, Upper: 1100, Connectivity: kernel.Vertex26})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.ForegroundVoxels != 1 {
		t.Fatalf("foreground voxels = %d, want 1", res.ForegroundVoxels)
	}
	if !res.Mask.ForegroundAt(volume.Point3D{X: 5, Y: 5, Z: 5}) {
		t.Fatalf("foreground voxel is not at (5,5,5)")
	}

	labeler, err := components.NewLabeler(kernel.Vertex26)
	if err != nil {
		t.Fatalf("NewLabeler: %v", err)
	}
	comps, _ := labeler.Label(res.Mask)
	if len(comps) != 1 {
		t.Fatalf("got %d components, want 1", len(comps))
	}
	if comps[0].VoxelCount != 1 {
		t.Errorf("component voxel count = %d, want 1", comps[0].VoxelCount)
	}
	if comps[0].Centroid != [3]float64{5, 5, 5} {
		t.Errorf("component centroid = %v, want (5,5,5)", comps[0].Centroid)
	}
}

func TestHistogram(t *testing.T) {
	overrides := map[volume.Point3D]float32{
		{X: 0, Y: 0, Z: 0}: 0,
		{X: 1, Y: 0, Z: 0}: 100,
	}
	vol := uniformVolume(t, 4, 4, 4, 50, overrides)

	res, err := Histogram(vol, 4, nil)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	if res.TotalVoxels != 64 {
		t.Errorf("total voxels = %d, want 64", res.TotalVoxels)
	}
	if res.MinValue != 0 || res.MaxValue != 100 {
		t.Errorf("range = [%g, %g], want [0, 100]", res.MinValue, res.MaxValue)
	}

	total := 0
	for _, c := range res.Counts {
		total += c
	}
	if total != res.TotalVoxels {
		t.Errorf("bin counts sum to %d, want %d", total, res.TotalVoxels)
	}
	// 62 voxels of value 50 land in the third bin of [0, 100] split four ways.
	if res.Counts[2] != 62 {
		t.Errorf("bin 2 count = %d, want 62", res.Counts[2])
	}
	if math.Abs(res.Mean-(50*62+100)/64.0) > 1e-9 {
		t.Errorf("mean = %g", res.Mean)
	}
}

func TestHistogramROI(t *testing.T) {
	vol := uniformVolume(t, 6, 6, 6, 10, map[volume.Point3D]float32{
		{X: 0, Y: 0, Z: 0}: 90,
	})

	roi := &ROI{Min: volume.Point3D{X: 2, Y: 2, Z: 2}, Max: volume.Point3D{X: 3, Y: 3, Z: 3}}
	res, err := Histogram(vol, 2, roi)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	if res.TotalVoxels != 8 {
		t.Errorf("roi voxels = %d, want 8", res.TotalVoxels)
	}
	if res.MaxValue != 10 {
		t.Errorf("roi max = %g, want 10 (outlier outside roi)", res.MaxValue)
	}
}

func TestHistogramRejectsBadInputs(t *testing.T) {
	vol := uniformVolume(t, 4, 4, 4, 1, nil)

	if _, err := Histogram(vol, 0, nil); err == nil {
		t.Errorf("expected an error for bin count 0")
	}

	badROI := &ROI{Min: volume.Point3D{X: 3}, Max: volume.Point3D{X: 1}}
	if _, err := Histogram(vol, 4, badROI); err == nil {
		t.Errorf("expected an error for an inverted roi")
	}
	outROI := &ROI{Min: volume.Point3D{}, Max: volume.Point3D{X: 4}}
	if _, err := Histogram(vol, 4, outROI); err == nil {
		t.Errorf("expected an error for an out-of-bounds roi")
	}
}
