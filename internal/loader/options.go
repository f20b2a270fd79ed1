package loader

import (
	"strings"

	"github.com/ecopia-map/lasviewer/internal/colorramp"
	"github.com/ecopia-map/lasviewer/internal/intensity"
)

type ColorMode string

const (
	// Points are colored by their normalized intensity through a color ramp
	ColorModeIntensity ColorMode = "INTENSITY"
	// Points keep the RGB color stored in the file, white when the format has none
	ColorModeRGB ColorMode = "RGB"
)

// Point count above which the voxel downsample filter is added to the pipeline
const DefaultVoxelThreshold = 2_000_000

// Instances a single read may reserve
const DefaultMaxInstances = 100_000_000

func (e ColorMode) String() string {
	if e == ColorModeIntensity {
		return "INTENSITY"
	} else if e == ColorModeRGB {
		return "RGB"
	}
	return ""
}

func ParseColorMode(value string) ColorMode {
	normalizedValue := strings.Trim(strings.ToUpper(value), " ")
	if normalizedValue == "INTENSITY" {
		return ColorModeIntensity
	} else if normalizedValue == "RGB" {
		return ColorModeRGB
	}
	return ""
}

// Contains the options needed to read a point cloud and turn it into instances
type LoaderOptions struct {
	Input            string  // Input LAS/LAZ file or folder
	Srid             int     // EPSG code for SRID of input LAS points, 0 keeps the source coordinates
	TargetSrid       int     // EPSG code the points are reprojected to before centering
	EightBitColors   bool    // if true assume that LAS uses 8bit color depth
	ZOffset          float64 // Z Offset in meters to apply to points during conversion
	FolderProcessing bool    // Enables the processing of all LAS files in folder
	Recursive        bool    // Recursive lookup of LAS files in subfolders
	StrictHeader     bool    // Abort on header validation problems instead of logging them

	DecimationStep   int     // Keep one point every DecimationStep, 0 lets AutoDecimate decide
	AutoDecimate     bool    // Derive the decimation step from the point count
	VoxelThreshold   uint64  // Point count above which voxel downsampling is enabled, 0 disables it
	CellMinSize      float64 // Min voxel cell size
	CellMaxSize      float64 // Max voxel cell size
	CellSafetyFactor float64 // Multiplier applied to the average point spacing
	MaxInstances     int     // Reads needing more instances after decimation are refused

	ColorMode      ColorMode
	ColorRamp      colorramp.Type
	LUTSize        int
	Normalization  intensity.Method
	PercentileLow  float64
	PercentileHigh float64
	InstanceScale  float64

	DecompressorPath string // laszip compatible program used for LAZ input
	TempDir          string // Folder for decompressed LAZ data, system default when empty

	Command       string
	ReadOptions   *ReadOptions
	ScanOptions   *ScanOptions
	ViewerOptions *ViewerOptions
}

type ReadOptions struct {
	Export string // Optional LAS file receiving the points that survived filtering
}

type ScanOptions struct {
	Output  string // JSON report file, stdout when empty
	Workers int
}

type ViewerOptions struct {
	FrameRate int     // Frame loop ticks per second
	Duration  float64 // Seconds to keep the frame loop running after the upload, negative until cancelled
}

func DefaultLoaderOptions() *LoaderOptions {
	return &LoaderOptions{
		EightBitColors:   true,
		DecimationStep:   1,
		VoxelThreshold:   DefaultVoxelThreshold,
		CellMinSize:      0.01,
		CellMaxSize:      3.0,
		CellSafetyFactor: 1.2,
		MaxInstances:     DefaultMaxInstances,
		ColorMode:        ColorModeIntensity,
		ColorRamp:        colorramp.HeatMap,
		LUTSize:          colorramp.DefaultLUTSize,
		Normalization:    intensity.MethodCDF,
		PercentileLow:    0.01,
		PercentileHigh:   0.99,
		InstanceScale:    1.0,
		DecompressorPath: "laszip",
	}
}

func (opt *LoaderOptions) Copy() *LoaderOptions {
	newOpt := *opt
	newOpt.ReadOptions = nil
	newOpt.ScanOptions = nil
	newOpt.ViewerOptions = nil

	if opt.ReadOptions != nil {
		readOpt := *opt.ReadOptions
		newOpt.ReadOptions = &readOpt
	}

	if opt.ScanOptions != nil {
		scanOpt := *opt.ScanOptions
		newOpt.ScanOptions = &scanOpt
	}

	if opt.ViewerOptions != nil {
		viewerOpt := *opt.ViewerOptions
		newOpt.ViewerOptions = &viewerOpt
	}

	return &newOpt
}

// Checks the option values that do not depend on the file system, returning a message
// describing the first problem found
func (opt *LoaderOptions) Validate() (string, bool) {
	if opt.DecimationStep < 0 {
		return "decimation step cannot be negative", false
	}
	if opt.CellMinSize <= 0 || opt.CellMaxSize <= 0 {
		return "voxel cell sizes must be positive", false
	}
	if opt.CellMinSize > opt.CellMaxSize {
		return "cell-max-size parameter cannot be lower than cell-min-size parameter", false
	}
	if opt.MaxInstances <= 0 {
		return "max instances must be positive", false
	}
	if opt.CellSafetyFactor <= 0 {
		return "cell safety factor must be positive", false
	}
	if opt.ColorMode == "" {
		return "color-mode should be either INTENSITY or RGB", false
	}
	if opt.ColorRamp == "" {
		return "unknown color ramp", false
	}
	if opt.Normalization == "" {
		return "normalization should be either CDF or PERCENTILE", false
	}
	if opt.PercentileLow < 0 || opt.PercentileHigh > 1 || opt.PercentileLow >= opt.PercentileHigh {
		return "percentiles must satisfy 0 <= low < high <= 1", false
	}
	if (opt.Srid == 0) != (opt.TargetSrid == 0) {
		return "srid and target-srid must be given together", false
	}
	return "", true
}
