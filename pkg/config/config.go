// Package config provides configuration loading and management for volseg.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Threshold segmentation parameters
	Threshold struct {
		// Lower is the inclusive lower intensity bound
		Lower float64 `yaml:"lower"`

		// Upper is the inclusive upper intensity bound
		Upper float64 `yaml:"upper"`

		// Connectivity selects the neighborhood (6, 18 or 26)
		Connectivity int `yaml:"connectivity"`

		// FillHoles fills fully enclosed background holes after thresholding
		FillHoles bool `yaml:"fillHoles"`

		// Smoothing applies a 3x3x3 median filter after thresholding
		Smoothing bool `yaml:"smoothing"`

		// HistogramBins is the bin count for histogram-assisted selection
		HistogramBins int `yaml:"histogramBins"`
	} `yaml:"threshold"`

	// Region growing parameters
	RegionGrowing struct {
		// SimilarityMode selects the acceptance score (intensity, gradient, adaptive)
		SimilarityMode string `yaml:"similarityMode"`

		// SimilarityThreshold is the maximum accepted score
		SimilarityThreshold float64 `yaml:"similarityThreshold"`

		// MaxIterations caps the number of growth steps (0 = unbounded)
		MaxIterations int `yaml:"maxIterations"`

		// MaxRegionSize caps the region size in voxels (0 = unbounded)
		MaxRegionSize int `yaml:"maxRegionSize"`

		// MaxDistance rejects candidates farther than this from every seed (0 = unbounded)
		MaxDistance float64 `yaml:"maxDistance"`

		// ConvergenceThreshold stops growth when the fractional growth rate drops below it
		ConvergenceThreshold float64 `yaml:"convergenceThreshold"`
	} `yaml:"regionGrowing"`

	// Morphological editing parameters
	Morphology struct {
		// KernelShape selects the structuring element (sphere, cube, cross)
		KernelShape string `yaml:"kernelShape"`

		// KernelRadius is the structuring element radius in voxels
		KernelRadius int `yaml:"kernelRadius"`

		// Iterations is the repeat count for smoothing
		Iterations int `yaml:"iterations"`

		// MinIslandVoxels is the survival threshold for island removal
		MinIslandVoxels int `yaml:"minIslandVoxels"`
	} `yaml:"morphology"`

	// Brush tool parameters
	Brush struct {
		// Shape selects the footprint (circle or square)
		Shape string `yaml:"shape"`

		// Radius is the brush radius in voxels
		Radius float64 `yaml:"radius"`

		// Hardness in (0, 1] controls the edge falloff
		Hardness float64 `yaml:"hardness"`

		// PressureSensitive scales the radius by stylus pressure
		PressureSensitive bool `yaml:"pressureSensitive"`

		// Spacing is the minimum distance between stroke samples
		Spacing float64 `yaml:"spacing"`
	} `yaml:"brush"`

	// Logging parameters
	Logging struct {
		// Level is the minimum emitted log level (debug, info, warn, error)
		Level string `yaml:"level"`

		// Verbose enables per-operation debug output
		Verbose bool `yaml:"verbose"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default threshold parameters
	cfg.Threshold.Lower = 100
	cfg.Threshold.Upper = 300
	cfg.Threshold.Connectivity = 26
	cfg.Threshold.FillHoles = false
	cfg.Threshold.Smoothing = false
	cfg.Threshold.HistogramBins = 64

	// Set default region growing parameters
	cfg.RegionGrowing.SimilarityMode = "intensity"
	cfg.RegionGrowing.SimilarityThreshold = 50
	cfg.RegionGrowing.MaxIterations = 100000
	cfg.RegionGrowing.MaxRegionSize = 0
	cfg.RegionGrowing.MaxDistance = 0
	cfg.RegionGrowing.ConvergenceThreshold = 0.001

	// Set default morphology parameters
	cfg.Morphology.KernelShape = "sphere"
	cfg.Morphology.KernelRadius = 1
	cfg.Morphology.Iterations = 1
	cfg.Morphology.MinIslandVoxels = 10

	// Set default brush parameters
	cfg.Brush.Shape = "circle"
	cfg.Brush.Radius = 3
	cfg.Brush.Hardness = 1.0
	cfg.Brush.PressureSensitive = false
	cfg.Brush.Spacing = 1.0

	// Set default logging parameters
	cfg.Logging.Level = "info"
	cfg.Logging.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
