package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Threshold.Lower > cfg.Threshold.Upper {
		t.Errorf("default threshold range is inverted: [%g, %g]",
			cfg.Threshold.Lower, cfg.Threshold.Upper)
	}
	if cfg.Threshold.Connectivity != 26 {
		t.Errorf("default connectivity = %d, want 26", cfg.Threshold.Connectivity)
	}
	if cfg.RegionGrowing.SimilarityMode != "intensity" {
		t.Errorf("default similarity mode = %q, want intensity", cfg.RegionGrowing.SimilarityMode)
	}
	if cfg.Brush.Hardness <= 0 || cfg.Brush.Hardness > 1 {
		t.Errorf("default brush hardness %g outside (0, 1]", cfg.Brush.Hardness)
	}
	if cfg.Logging.Level == "" {
		t.Errorf("default log level is empty")
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	defaults := DefaultConfig()
	if cfg.Threshold != defaults.Threshold {
		t.Errorf("missing file did not yield default threshold settings")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "volseg.yaml")

	cfg := DefaultConfig()
	cfg.Threshold.Lower = 42
	cfg.RegionGrowing.SimilarityMode = "adaptive"
	cfg.Brush.Radius = 7.5
	cfg.Logging.Verbose = true

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Threshold.Lower != 42 {
		t.Errorf("threshold lower = %g, want 42", loaded.Threshold.Lower)
	}
	if loaded.RegionGrowing.SimilarityMode != "adaptive" {
		t.Errorf("similarity mode = %q, want adaptive", loaded.RegionGrowing.SimilarityMode)
	}
	if loaded.Brush.Radius != 7.5 {
		t.Errorf("brush radius = %g, want 7.5", loaded.Brush.Radius)
	}
	if !loaded.Logging.Verbose {
		t.Errorf("verbose flag lost in the round trip")
	}
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	partial := "threshold:\n  lower: 10\n  upper: 20\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Threshold.Lower != 10 || cfg.Threshold.Upper != 20 {
		t.Errorf("overridden range = [%g, %g], want [10, 20]", cfg.Threshold.Lower, cfg.Threshold.Upper)
	}
	// Untouched sections keep their defaults.
	if cfg.Morphology.KernelShape != "sphere" {
		t.Errorf("kernel shape = %q, want the default sphere", cfg.Morphology.KernelShape)
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file was not created: %v", err)
	}
}
