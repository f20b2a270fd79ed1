// Package config loads and saves the YAML configuration file of lasviewer.
// Values found in the file become the defaults of the command line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ecopia-map/lasviewer/internal/colorramp"
	"github.com/ecopia-map/lasviewer/internal/intensity"
	"github.com/ecopia-map/lasviewer/internal/loader"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	Reader struct {
		// EightBitColors treats RGB values as 8 bit
		EightBitColors bool `yaml:"eightBitColors"`

		// StrictHeader aborts reads and scans on header validation problems
		StrictHeader bool `yaml:"strictHeader"`

		// Decompressor is the laszip compatible program used for LAZ input
		Decompressor string `yaml:"decompressor"`

		// TempDir receives decompressed LAZ data
		TempDir string `yaml:"tempDir"`

		Recursive bool `yaml:"recursive"`
	} `yaml:"reader"`

	Pipeline struct {
		DecimationStep   int     `yaml:"decimationStep"`
		AutoDecimate     bool    `yaml:"autoDecimate"`
		VoxelThreshold   uint64  `yaml:"voxelThreshold"`
		CellMinSize      float64 `yaml:"cellMinSize"`
		CellMaxSize      float64 `yaml:"cellMaxSize"`
		CellSafetyFactor float64 `yaml:"cellSafetyFactor"`
		MaxInstances     int     `yaml:"maxInstances"`
	} `yaml:"pipeline"`

	Intensity struct {
		// Method is CDF or PERCENTILE
		Method         string  `yaml:"method"`
		PercentileLow  float64 `yaml:"percentileLow"`
		PercentileHigh float64 `yaml:"percentileHigh"`
	} `yaml:"intensity"`

	Render struct {
		// ColorMode is INTENSITY or RGB
		ColorMode     string  `yaml:"colorMode"`
		ColorRamp     string  `yaml:"colorRamp"`
		LUTSize       int     `yaml:"lutSize"`
		InstanceScale float64 `yaml:"instanceScale"`
		FrameRate     int     `yaml:"frameRate"`
	} `yaml:"render"`

	Projection struct {
		Srid       int     `yaml:"srid"`
		TargetSrid int     `yaml:"targetSrid"`
		ZOffset    float64 `yaml:"zOffset"`
	} `yaml:"projection"`

	Output struct {
		// Workers is the number of goroutines checking headers during a scan
		Workers int `yaml:"workers"`

		// Report is the file receiving the scan report, stdout when empty
		Report string `yaml:"report"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	opts := loader.DefaultLoaderOptions()
	cfg := &Config{}

	cfg.Reader.EightBitColors = opts.EightBitColors
	cfg.Reader.StrictHeader = opts.StrictHeader
	cfg.Reader.Decompressor = opts.DecompressorPath

	cfg.Pipeline.DecimationStep = opts.DecimationStep
	cfg.Pipeline.AutoDecimate = opts.AutoDecimate
	cfg.Pipeline.VoxelThreshold = opts.VoxelThreshold
	cfg.Pipeline.CellMinSize = opts.CellMinSize
	cfg.Pipeline.CellMaxSize = opts.CellMaxSize
	cfg.Pipeline.CellSafetyFactor = opts.CellSafetyFactor
	cfg.Pipeline.MaxInstances = opts.MaxInstances

	cfg.Intensity.Method = opts.Normalization.String()
	cfg.Intensity.PercentileLow = opts.PercentileLow
	cfg.Intensity.PercentileHigh = opts.PercentileHigh

	cfg.Render.ColorMode = opts.ColorMode.String()
	cfg.Render.ColorRamp = opts.ColorRamp.String()
	cfg.Render.LUTSize = opts.LUTSize
	cfg.Render.InstanceScale = opts.InstanceScale
	cfg.Render.FrameRate = 60

	cfg.Output.Workers = runtime.NumCPU()

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// ToLoaderOptions converts the configuration into loader options. Unknown enum values are
// left empty so that option validation reports them.
func (cfg *Config) ToLoaderOptions() *loader.LoaderOptions {
	opts := loader.DefaultLoaderOptions()

	opts.EightBitColors = cfg.Reader.EightBitColors
	opts.StrictHeader = cfg.Reader.StrictHeader
	opts.DecompressorPath = cfg.Reader.Decompressor
	opts.TempDir = cfg.Reader.TempDir
	opts.Recursive = cfg.Reader.Recursive

	opts.DecimationStep = cfg.Pipeline.DecimationStep
	opts.AutoDecimate = cfg.Pipeline.AutoDecimate
	opts.VoxelThreshold = cfg.Pipeline.VoxelThreshold
	opts.CellMinSize = cfg.Pipeline.CellMinSize
	opts.CellMaxSize = cfg.Pipeline.CellMaxSize
	opts.CellSafetyFactor = cfg.Pipeline.CellSafetyFactor
	opts.MaxInstances = cfg.Pipeline.MaxInstances

	opts.Normalization = intensity.ParseMethod(cfg.Intensity.Method)
	opts.PercentileLow = cfg.Intensity.PercentileLow
	opts.PercentileHigh = cfg.Intensity.PercentileHigh

	opts.ColorMode = loader.ParseColorMode(cfg.Render.ColorMode)
	opts.ColorRamp = colorramp.ParseType(cfg.Render.ColorRamp)
	opts.LUTSize = cfg.Render.LUTSize
	opts.InstanceScale = cfg.Render.InstanceScale

	opts.Srid = cfg.Projection.Srid
	opts.TargetSrid = cfg.Projection.TargetSrid
	opts.ZOffset = cfg.Projection.ZOffset

	opts.ScanOptions = &loader.ScanOptions{
		Output:  cfg.Output.Report,
		Workers: cfg.Output.Workers,
	}
	opts.ViewerOptions = &loader.ViewerOptions{
		FrameRate: cfg.Render.FrameRate,
	}

	return opts
}
