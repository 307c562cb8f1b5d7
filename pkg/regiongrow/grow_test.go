package regiongrow

import (
	"errors"
	"testing"

	"volseg/pkg/volume"
)

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

// TestGrowUniformVolumeConverges verifies that a single seed on a uniform
// volume grows to fill the entire volume and reports convergence.
func TestGrowUniformVolumeConverges(t *testing.T) {
	vol := uniformVolume(t, 8, 8, 8, 500, nil)
	engine := NewEngine(nil)

	res, err := engine.Grow(vol, Config{
		SeedPoints: []volume.Point3D{{X: 4, Y: 4, Z: 4}},
		Similarity: Similarity{Mode: Intensity, Threshold: 50},
	})
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}

	if got := res.Mask.CountForeground(); got != 512 {
		t.Errorf("region size = %d, want the full volume (512)", got)
	}
	if !res.Converged {
		t.Errorf("expected converged = true on natural completion")
	}
}

func TestGrowRequiresSeeds(t *testing.T) {
	vol := uniformVolume(t, 4, 4, 4, 0, nil)
	engine := NewEngine(nil)
	if _, err := engine.Grow(vol, Config{Similarity: Similarity{Mode: Intensity}}); err == nil {
		t.Errorf("expected a configuration error for an empty seed list")
	}
}

func TestGrowRejectsOutOfBoundsSeed(t *testing.T) {
	vol := uniformVolume(t, 4, 4, 4, 0, nil)
	engine := NewEngine(nil)
	_, err := engine.Grow(vol, Config{
		SeedPoints: []volume.Point3D{{X: 0, Y: 0, Z: 4}},
		Similarity: Similarity{Mode: Intensity},
	})
	if err == nil {
		t.Errorf("expected an error for an out-of-volume seed point")
	}
}

func TestGrowRejectsUnknownMode(t *testing.T) {
	vol := uniformVolume(t, 4, 4, 4, 0, nil)
	engine := NewEngine(nil)
	_, err := engine.Grow(vol, Config{
		SeedPoints: []volume.Point3D{{X: 1, Y: 1, Z: 1}},
		Similarity: Similarity{Mode: SimilarityMode(9)},
	})
	if err == nil {
		t.Errorf("expected an error for an unknown similarity mode")
	}
}

// TestGrowMaskIsSupersetOfSeeds verifies that every seed voxel belongs to
// the grown region even when nothing else is accepted.
func TestGrowMaskIsSupersetOfSeeds(t *testing.T) {
	// Seeds sit on outlier intensities so no neighbor is accepted.
	seeds := []volume.Point3D{
		{X: 1, Y: 1, Z: 1},
		{X: 6, Y: 6, Z: 6},
	}
	overrides := map[volume.Point3D]float32{
		seeds[0]: 10000,
		seeds[1]: 10000,
	}
	vol := uniformVolume(t, 8, 8, 8, 0, overrides)
	engine := NewEngine(nil)

	res, err := engine.Grow(vol, Config{
		SeedPoints: seeds,
		Similarity: Similarity{Mode: Intensity, Threshold: 1},
	})
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}
	for _, s := range seeds {
		if !res.Mask.ForegroundAt(s) {
			t.Errorf("seed %v missing from the grown region", s)
		}
	}
	if got := res.Mask.CountForeground(); got != 2 {
		t.Errorf("region size = %d, want exactly the seeds (2)", got)
	}
}

// TestGrowMonotonicInThreshold verifies that raising the similarity
// threshold never shrinks the region.
func TestGrowMonotonicInThreshold(t *testing.T) {
	// A radial intensity ramp away from the seed.
	geom := volume.DefaultGeometry(9, 9, 9)
	data := make([]float32, geom.NumVoxels())
	center := volume.Point3D{X: 4, Y: 4, Z: 4}
	for i := range data {
		p := geom.PointAt(i)
		dx, dy, dz := p.X-center.X, p.Y-center.Y, p.Z-center.Z
		data[i] = float32(100 + 10*(dx*dx+dy*dy+dz*dz))
	}
	vol, _ := volume.NewInMemoryVolume(data, geom)
	engine := NewEngine(nil)

	grow := func(threshold float64) *volume.BinaryMask {
		res, err := engine.Grow(vol, Config{
			SeedPoints: []volume.Point3D{center},
			Similarity: Similarity{Mode: Intensity, Threshold: threshold},
		})
		if err != nil {
			t.Fatalf("Grow(threshold=%g): %v", threshold, err)
		}
		return res.Mask
	}

	small := grow(15)
	large := grow(60)

	if small.CountForeground() > large.CountForeground() {
		t.Errorf("raising the threshold shrank the region: %d -> %d",
			small.CountForeground(), large.CountForeground())
	}
	for i := 0; i < small.Len(); i++ {
		if small.ForegroundAtIndex(i) && !large.ForegroundAtIndex(i) {
			t.Fatalf("voxel %d in the small region missing from the large one", i)
		}
	}
}

func TestGrowMaxRegionSizeCap(t *testing.T) {
	vol := uniformVolume(t, 8, 8, 8, 500, nil)
	engine := NewEngine(nil)

	res, err := engine.Grow(vol, Config{
		SeedPoints:  []volume.Point3D{{X: 4, Y: 4, Z: 4}},
		Similarity:  Similarity{Mode: Intensity, Threshold: 50},
		Constraints: Constraints{MaxRegionSize: 30},
	})
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}
	// The cap is checked per dequeue, so the region may overshoot by at
	// most one neighborhood expansion.
	if got := res.Mask.CountForeground(); got < 30 || got > 30+26 {
		t.Errorf("region size = %d, want close to the 30-voxel cap", got)
	}
}

func TestGrowMaxDistanceConstraint(t *testing.T) {
	vol := uniformVolume(t, 11, 11, 11, 500, nil)
	engine := NewEngine(nil)
	seed := volume.Point3D{X: 5, Y: 5, Z: 5}

	res, err := engine.Grow(vol, Config{
		SeedPoints:  []volume.Point3D{seed},
		Similarity:  Similarity{Mode: Intensity, Threshold: 50},
		Constraints: Constraints{MaxDistance: 2},
	})
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}

	geom := vol.Geometry()
	for i := 0; i < res.Mask.Len(); i++ {
		if !res.Mask.ForegroundAtIndex(i) {
			continue
		}
		p := geom.PointAt(i)
		dx, dy, dz := p.X-seed.X, p.Y-seed.Y, p.Z-seed.Z
		if dx*dx+dy*dy+dz*dz > 4 {
			t.Fatalf("voxel %v beyond the 2-voxel distance limit", p)
		}
	}
	if res.Mask.CountForeground() <= 1 {
		t.Errorf("distance-limited region did not grow past the seed")
	}
}

func TestGrowGradientMode(t *testing.T) {
	// Uniform gradient everywhere; the region should spread freely.
	geom := volume.DefaultGeometry(6, 6, 6)
	data := make([]float32, geom.NumVoxels())
	for i := range data {
		data[i] = float32(geom.PointAt(i).X * 10)
	}
	vol, _ := volume.NewInMemoryVolume(data, geom)
	engine := NewEngine(nil)

	res, err := engine.Grow(vol, Config{
		SeedPoints: []volume.Point3D{{X: 3, Y: 3, Z: 3}},
		Similarity: Similarity{Mode: Gradient, Threshold: 5},
	})
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if res.Mask.CountForeground() != geom.NumVoxels() {
		t.Errorf("gradient-mode region size = %d, want the full volume %d",
			res.Mask.CountForeground(), geom.NumVoxels())
	}
}

func TestGrowAdaptiveMode(t *testing.T) {
	vol := uniformVolume(t, 6, 6, 6, 500, nil)
	engine := NewEngine(nil)

	res, err := engine.Grow(vol, Config{
		SeedPoints: []volume.Point3D{{X: 3, Y: 3, Z: 3}},
		Similarity: Similarity{Mode: Adaptive, Threshold: 10},
	})
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}
	// On a uniform volume the intensity difference is zero regardless of
	// the distance factor, so the whole volume is accepted.
	if res.Mask.CountForeground() != 216 {
		t.Errorf("adaptive-mode region size = %d, want 216", res.Mask.CountForeground())
	}
	if !res.Converged {
		t.Errorf("expected converged = true")
	}
}

// TestPreviewIterationCap verifies that preview growth stops at 100
// iterations without reporting convergence.
func TestPreviewIterationCap(t *testing.T) {
	vol := uniformVolume(t, 12, 12, 12, 500, nil)
	engine := NewEngine(nil)

	res, err := engine.Preview(vol, Config{
		SeedPoints: []volume.Point3D{{X: 6, Y: 6, Z: 6}},
		Similarity: Similarity{Mode: Intensity, Threshold: 50},
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.Iterations != 100 {
		t.Errorf("preview ran %d iterations, want 100", res.Iterations)
	}
	if res.Converged {
		t.Errorf("iteration-capped preview must not report convergence")
	}
	if res.Mask.CountForeground() >= vol.Geometry().NumVoxels() {
		t.Errorf("preview filled the whole volume despite the cap")
	}
}

// TestGrowBusy verifies the fail-fast busy guard by starting a second
// growth from inside the progress callback of the first.
func TestGrowBusy(t *testing.T) {
	vol := uniformVolume(t, 8, 8, 8, 500, nil)
	engine := NewEngine(nil)

	var nested error
	called := false
	engine.SetProgressCallback(func(iterations, regionSize int) {
		if called {
			return
		}
		called = true
		_, nested = engine.Grow(vol, Config{
			SeedPoints: []volume.Point3D{{X: 0, Y: 0, Z: 0}},
			Similarity: Similarity{Mode: Intensity, Threshold: 50},
		})
	})

	if _, err := engine.Grow(vol, Config{
		SeedPoints: []volume.Point3D{{X: 4, Y: 4, Z: 4}},
		Similarity: Similarity{Mode: Intensity, Threshold: 50},
	}); err != nil {
		t.Fatalf("Grow: %v", err)
	}

	if !called {
		t.Fatalf("progress callback never fired")
	}
	if !errors.Is(nested, ErrBusy) {
		t.Errorf("nested Grow returned %v, want ErrBusy", nested)
	}
}

// TestRequestStopFromCallback verifies cooperative cancellation: a stop
// requested mid-growth returns a partial result with Converged=false.
func TestRequestStopFromCallback(t *testing.T) {
	vol := uniformVolume(t, 12, 12, 12, 500, nil)
	engine := NewEngine(nil)
	engine.SetProgressCallback(func(iterations, regionSize int) {
		engine.RequestStop()
	})

	res, err := engine.Grow(vol, Config{
		SeedPoints: []volume.Point3D{{X: 6, Y: 6, Z: 6}},
		Similarity: Similarity{Mode: Intensity, Threshold: 50},
	})
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if res.Converged {
		t.Errorf("cancelled growth must not report convergence")
	}
	if res.Mask.CountForeground() == 0 {
		t.Errorf("cancelled growth should return a partial region")
	}
	if res.Mask.CountForeground() >= vol.Geometry().NumVoxels() {
		t.Errorf("cancellation did not interrupt the growth")
	}
}
