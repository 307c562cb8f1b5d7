package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"volseg/internal/logger"
	"volseg/pkg/brush"
	"volseg/pkg/components"
	"volseg/pkg/config"
	"volseg/pkg/kernel"
	"volseg/pkg/morphology"
	"volseg/pkg/regiongrow"
	"volseg/pkg/segmentation"
	"volseg/pkg/threshold"
	"volseg/pkg/volume"
)

func main() {
	// Parse command line arguments
	inputPath := flag.String("input", "", "Raw little-endian float32 volume file")
	configPath := flag.String("config", "volseg.yaml", "YAML configuration file")
	nx := flag.Int("nx", 0, "Volume width in voxels")
	ny := flag.Int("ny", 0, "Volume height in voxels")
	nz := flag.Int("nz", 0, "Volume depth in voxels")
	sx := flag.Float64("sx", 1.0, "Voxel spacing along x in mm")
	sy := flag.Float64("sy", 1.0, "Voxel spacing along y in mm")
	sz := flag.Float64("sz", 1.0, "Voxel spacing along z in mm")
	lower := flag.Float64("lower", math.NaN(), "Lower threshold (overrides config)")
	upper := flag.Float64("upper", math.NaN(), "Upper threshold (overrides config)")
	seed := flag.String("seed", "", "Optional region growing seed as x,y,z")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration file and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputPath == "" || *nx <= 0 || *ny <= 0 || *nz <= 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !math.IsNaN(*lower) {
		cfg.Threshold.Lower = *lower
	}
	if !math.IsNaN(*upper) {
		cfg.Threshold.Upper = *upper
	}

	level := cfg.Logging.Level
	if cfg.Logging.Verbose {
		level = "debug"
	}
	appLog := logger.NewConsoleLogger(logger.ParseLevel(level))

	geom := volume.DefaultGeometry(*nx, *ny, *nz)
	geom.Spacing = [3]float64{*sx, *sy, *sz}

	vol, err := loadRawVolume(*inputPath, geom)
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("VOLSEG: VOLUMETRIC SEGMENTATION ENGINE")
	fmt.Println("================================")
	fmt.Printf("Volume: %dx%dx%d voxels, spacing %.2fx%.2fx%.2f mm\n",
		*nx, *ny, *nz, *sx, *sy, *sz)

	labels, err := volume.NewLabelMap(geom)
	if err != nil {
		log.Fatalf("Failed to allocate label map: %v", err)
	}

	facade, err := segmentation.New("cli", vol, labels, nil, brushConfig(cfg), appLog)
	if err != nil {
		log.Fatalf("Failed to initialize segmentation: %v", err)
	}

	seg, err := facade.Registry().Add("structure", [3]uint8{255, 80, 80})
	if err != nil {
		log.Fatalf("Failed to register segment: %v", err)
	}

	connectivity, err := parseConnectivity(cfg.Threshold.Connectivity)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Run threshold segmentation
	fmt.Printf("\nApplying threshold [%.1f, %.1f]...\n", cfg.Threshold.Lower, cfg.Threshold.Upper)
	startTime := time.Now()
	thRes, err := facade.ApplyThreshold(seg.SegmentIndex, threshold.Config{
		Lower:        cfg.Threshold.Lower,
		Upper:        cfg.Threshold.Upper,
		Connectivity: connectivity,
		FillHoles:    cfg.Threshold.FillHoles,
		Smoothing:    cfg.Threshold.Smoothing,
	})
	if err != nil {
		log.Fatalf("Threshold segmentation failed: %v", err)
	}
	fmt.Printf("Threshold done in %.2f seconds: %d foreground voxels, %d labeled\n",
		thRes.Duration.Seconds(), thRes.ForegroundVoxels, thRes.AppliedVoxels)

	// Optionally grow from a seed point
	if *seed != "" {
		seedPoint, err := parsePoint(*seed)
		if err != nil {
			log.Fatalf("Invalid seed point: %v", err)
		}
		mode, err := parseSimilarityMode(cfg.RegionGrowing.SimilarityMode)
		if err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}

		fmt.Printf("\nGrowing region from seed (%d,%d,%d)...\n", seedPoint.X, seedPoint.Y, seedPoint.Z)
		growRes, err := facade.GrowRegion(seg.SegmentIndex, regiongrow.Config{
			SeedPoints: []volume.Point3D{seedPoint},
			Similarity: regiongrow.Similarity{
				Mode:      mode,
				Threshold: cfg.RegionGrowing.SimilarityThreshold,
			},
			Constraints: regiongrow.Constraints{
				MaxRegionSize: cfg.RegionGrowing.MaxRegionSize,
				MaxDistance:   cfg.RegionGrowing.MaxDistance,
			},
			StopCriteria: regiongrow.StopCriteria{
				MaxIterations:        cfg.RegionGrowing.MaxIterations,
				ConvergenceThreshold: cfg.RegionGrowing.ConvergenceThreshold,
			},
		})
		if err != nil {
			log.Fatalf("Region growing failed: %v", err)
		}
		fmt.Printf("Region growing done in %.2f seconds: %d iterations, converged=%v, %d voxels labeled\n",
			growRes.Duration.Seconds(), growRes.Iterations, growRes.Converged, growRes.AppliedVoxels)
	}

	// Clean up small islands
	if cfg.Morphology.MinIslandVoxels > 1 {
		fmt.Printf("\nRemoving islands smaller than %d voxels...\n", cfg.Morphology.MinIslandVoxels)
		editRes, err := facade.ApplyMorphology(seg.SegmentIndex, morphology.Config{
			Operation:     morphology.RemoveIslands,
			Connectivity:  connectivity,
			MinVoxelCount: cfg.Morphology.MinIslandVoxels,
		})
		if err != nil {
			log.Fatalf("Island removal failed: %v", err)
		}
		fmt.Printf("Island removal done: %d voxels affected, %d -> %d components\n",
			editRes.AffectedVoxels, editRes.Before.ComponentCount, editRes.After.ComponentCount)
	}

	// Report final component statistics
	labeler, err := components.NewLabeler(connectivity)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	comps, _ := labeler.Label(facade.Labels().MaskForSegment(seg.SegmentIndex))

	totalTime := time.Since(startTime)
	fmt.Printf("\nSegmentation completed in %.2f seconds\n", totalTime.Seconds())
	fmt.Printf("Final result: %d voxels in %d components\n",
		facade.Labels().CountSegment(seg.SegmentIndex), len(comps))
	for i, c := range comps {
		if i >= 10 {
			fmt.Printf("... and %d more components\n", len(comps)-10)
			break
		}
		fmt.Printf("- Component %d: %d voxels, centroid (%.1f, %.1f, %.1f), %.2f mm3\n",
			c.ID, c.VoxelCount, c.Centroid[0], c.Centroid[1], c.Centroid[2], c.Volume)
	}
}

// loadRawVolume reads a raw little-endian float32 buffer and wraps it with
// the given geometry.
func loadRawVolume(path string, geom volume.Geometry) (*volume.InMemoryVolume, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading volume file: %w", err)
	}
	if len(data) != geom.NumVoxels()*4 {
		return nil, fmt.Errorf("volume file has %d bytes, geometry %v requires %d",
			len(data), geom.Dims, geom.NumVoxels()*4)
	}

	buf := make([]float32, geom.NumVoxels())
	for i := range buf {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		buf[i] = math.Float32frombits(bits)
	}
	return volume.NewInMemoryVolume(buf, geom)
}

func brushConfig(cfg *config.Config) brush.ToolConfig {
	shape := brush.Circle
	if strings.EqualFold(cfg.Brush.Shape, "square") {
		shape = brush.Square
	}
	return brush.ToolConfig{
		Shape:             shape,
		Radius:            cfg.Brush.Radius,
		Hardness:          cfg.Brush.Hardness,
		PressureSensitive: cfg.Brush.PressureSensitive,
		Spacing:           cfg.Brush.Spacing,
	}
}

func parseConnectivity(v int) (kernel.Connectivity, error) {
	switch v {
	case 6:
		return kernel.Face6, nil
	case 18:
		return kernel.Edge18, nil
	case 26:
		return kernel.Vertex26, nil
	default:
		return 0, fmt.Errorf("connectivity must be 6, 18 or 26, got %d", v)
	}
}

func parseSimilarityMode(v string) (regiongrow.SimilarityMode, error) {
	switch strings.ToLower(v) {
	case "intensity":
		return regiongrow.Intensity, nil
	case "gradient":
		return regiongrow.Gradient, nil
	case "adaptive":
		return regiongrow.Adaptive, nil
	default:
		return 0, fmt.Errorf("unknown similarity mode %q", v)
	}
}

func parsePoint(v string) (volume.Point3D, error) {
	var p volume.Point3D
	if _, err := fmt.Sscanf(v, "%d,%d,%d", &p.X, &p.Y, &p.Z); err != nil {
		return p, fmt.Errorf("expected x,y,z: %w", err)
	}
	return p, nil
}
