package tools

import (
	"github.com/ecopia-map/lasviewer/internal/colorramp"
	"github.com/ecopia-map/lasviewer/internal/intensity"
	"github.com/ecopia-map/lasviewer/internal/loader"
	"github.com/spf13/pflag"
)

const (
	CommandHeader = "header"
	CommandScan   = "scan"
	CommandRead   = "read"
	CommandView   = "view"
)

type GlobalFlags struct {
	Config       *string `json:"config"`
	Silent       *bool   `json:"silent"`
	LogTimestamp *bool   `json:"timestamp"`
}

type ReaderFlags struct {
	Input                     *string `json:"input"`
	Srid                      *int    `json:"srid"`
	TargetSrid                *int    `json:"target_srid"`
	EightBitColors            *bool   `json:"eight_bit"`
	ZOffset                   *float64
	FolderProcessing          *bool
	RecursiveFolderProcessing *bool
	StrictHeader              *bool
	Decompressor              *string
	TempDir                   *string
}

type PipelineFlags struct {
	DecimationStep   *int     `json:"decimation_step"`
	AutoDecimate     *bool    `json:"auto_decimate"`
	VoxelThreshold   *uint64  `json:"voxel_threshold"`
	CellMinSize      *float64 `json:"cell_min_size"`
	CellMaxSize      *float64 `json:"cell_max_size"`
	CellSafetyFactor *float64
	MaxInstances     *int
}

type RenderFlags struct {
	ColorMode      *string `json:"color_mode"`
	ColorRamp      *string `json:"color_ramp"`
	LUTSize        *int
	Normalization  *string `json:"normalization"`
	PercentileLow  *float64
	PercentileHigh *float64
	InstanceScale  *float64
}

func DefineGlobalFlags(flagCommand *pflag.FlagSet, defaultConfig string) *GlobalFlags {
	return &GlobalFlags{
		Config:       defineStringFlagCommand(flagCommand, "config", "c", defaultConfig, "YAML configuration file. Flags given on the command line override its values."),
		Silent:       defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages."),
		LogTimestamp: defineBoolFlagCommand(flagCommand, "timestamp", "t", false, "Adds timestamp to log messages."),
	}
}

func DefineReaderFlags(flagCommand *pflag.FlagSet, defaults *loader.LoaderOptions) *ReaderFlags {
	return &ReaderFlags{
		Input:                     defineStringFlagCommand(flagCommand, "input", "i", "", "Specifies the input las/laz file or folder."),
		Srid:                      defineIntFlagCommand(flagCommand, "srid", "e", defaults.Srid, "EPSG srid code of input points, 0 keeps the source coordinates."),
		TargetSrid:                defineIntFlagCommand(flagCommand, "target-srid", "", defaults.TargetSrid, "EPSG srid code the points are reprojected to."),
		EightBitColors:            defineBoolFlagCommand(flagCommand, "8bit", "b", defaults.EightBitColors, "Assumes the input LAS has colors encoded in eight bit format. Use --8bit=false for 16 bit color depth."),
		ZOffset:                   defineFloat64FlagCommand(flagCommand, "zoffset", "z", defaults.ZOffset, "Vertical offset to apply to points, in meters."),
		FolderProcessing:          defineBoolFlagCommand(flagCommand, "folder", "f", defaults.FolderProcessing, "Enables processing of all las/laz files from input folder. Input must be a folder if specified"),
		RecursiveFolderProcessing: defineBoolFlagCommand(flagCommand, "recursive", "r", defaults.Recursive, "Enables recursive lookup for all .las/.laz files inside the subfolders"),
		StrictHeader:              defineBoolFlagCommand(flagCommand, "strict", "", defaults.StrictHeader, "Aborts on header validation problems instead of logging them."),
		Decompressor:              defineStringFlagCommand(flagCommand, "laszip", "", defaults.DecompressorPath, "laszip compatible program used to decompress LAZ input."),
		TempDir:                   defineStringFlagCommand(flagCommand, "tmp", "", defaults.TempDir, "Folder receiving decompressed LAZ data."),
	}
}

func DefinePipelineFlags(flagCommand *pflag.FlagSet, defaults *loader.LoaderOptions) *PipelineFlags {
	return &PipelineFlags{
		DecimationStep:   defineIntFlagCommand(flagCommand, "step", "d", defaults.DecimationStep, "Keeps one point every step points."),
		AutoDecimate:     defineBoolFlagCommand(flagCommand, "auto-decimate", "a", defaults.AutoDecimate, "Derives the decimation step from the point count of large clouds."),
		VoxelThreshold:   defineUint64FlagCommand(flagCommand, "voxel-threshold", "", defaults.VoxelThreshold, "Point count above which voxel downsampling is enabled, 0 disables it."),
		CellMinSize:      defineFloat64FlagCommand(flagCommand, "cell-min-size", "n", defaults.CellMinSize, "Min voxel cell size in meters."),
		CellMaxSize:      defineFloat64FlagCommand(flagCommand, "cell-max-size", "x", defaults.CellMaxSize, "Max voxel cell size in meters."),
		CellSafetyFactor: defineFloat64FlagCommand(flagCommand, "cell-safety", "", defaults.CellSafetyFactor, "Multiplier applied to the average point spacing to obtain the voxel cell size."),
		MaxInstances:     defineIntFlagCommand(flagCommand, "max-instances", "", defaults.MaxInstances, "Refuses files needing more instances after decimation."),
	}
}

func DefineRenderFlags(flagCommand *pflag.FlagSet, defaults *loader.LoaderOptions) *RenderFlags {
	return &RenderFlags{
		ColorMode:      defineStringFlagCommand(flagCommand, "color-mode", "m", defaults.ColorMode.String(), "Point coloring, can be 'INTENSITY' or 'RGB'."),
		ColorRamp:      defineStringFlagCommand(flagCommand, "ramp", "", defaults.ColorRamp.String(), "Color ramp used in INTENSITY mode: HEATMAP, RAINBOW, PASTEL, BLUERED or GRAYSCALE."),
		LUTSize:        defineIntFlagCommand(flagCommand, "lut-size", "", defaults.LUTSize, "Number of entries of the color lookup table."),
		Normalization:  defineStringFlagCommand(flagCommand, "normalization", "", defaults.Normalization.String(), "Intensity normalization, can be 'CDF' or 'PERCENTILE'."),
		PercentileLow:  defineFloat64FlagCommand(flagCommand, "percentile-low", "", defaults.PercentileLow, "Lower percentile for PERCENTILE normalization."),
		PercentileHigh: defineFloat64FlagCommand(flagCommand, "percentile-high", "", defaults.PercentileHigh, "Upper percentile for PERCENTILE normalization."),
		InstanceScale:  defineFloat64FlagCommand(flagCommand, "instance-scale", "", defaults.InstanceScale, "Scale of the instance drawn for every point."),
	}
}

// Copies the flags given on the command line over opts
func (f *ReaderFlags) Apply(flagCommand *pflag.FlagSet, opts *loader.LoaderOptions) {
	opts.Input = *f.Input
	applyFlag(flagCommand, "srid", f.Srid, &opts.Srid)
	applyFlag(flagCommand, "target-srid", f.TargetSrid, &opts.TargetSrid)
	applyFlag(flagCommand, "8bit", f.EightBitColors, &opts.EightBitColors)
	applyFlag(flagCommand, "zoffset", f.ZOffset, &opts.ZOffset)
	applyFlag(flagCommand, "folder", f.FolderProcessing, &opts.FolderProcessing)
	applyFlag(flagCommand, "recursive", f.RecursiveFolderProcessing, &opts.Recursive)
	applyFlag(flagCommand, "strict", f.StrictHeader, &opts.StrictHeader)
	applyFlag(flagCommand, "laszip", f.Decompressor, &opts.DecompressorPath)
	applyFlag(flagCommand, "tmp", f.TempDir, &opts.TempDir)
}

func (f *PipelineFlags) Apply(flagCommand *pflag.FlagSet, opts *loader.LoaderOptions) {
	applyFlag(flagCommand, "step", f.DecimationStep, &opts.DecimationStep)
	applyFlag(flagCommand, "auto-decimate", f.AutoDecimate, &opts.AutoDecimate)
	applyFlag(flagCommand, "voxel-threshold", f.VoxelThreshold, &opts.VoxelThreshold)
	applyFlag(flagCommand, "cell-min-size", f.CellMinSize, &opts.CellMinSize)
	applyFlag(flagCommand, "cell-max-size", f.CellMaxSize, &opts.CellMaxSize)
	applyFlag(flagCommand, "cell-safety", f.CellSafetyFactor, &opts.CellSafetyFactor)
	applyFlag(flagCommand, "max-instances", f.MaxInstances, &opts.MaxInstances)
}

func (f *RenderFlags) Apply(flagCommand *pflag.FlagSet, opts *loader.LoaderOptions) {
	if flagCommand.Changed("color-mode") {
		opts.ColorMode = loader.ParseColorMode(*f.ColorMode)
	}
	if flagCommand.Changed("ramp") {
		opts.ColorRamp = colorramp.ParseType(*f.ColorRamp)
	}
	if flagCommand.Changed("normalization") {
		opts.Normalization = intensity.ParseMethod(*f.Normalization)
	}
	applyFlag(flagCommand, "lut-size", f.LUTSize, &opts.LUTSize)
	applyFlag(flagCommand, "percentile-low", f.PercentileLow, &opts.PercentileLow)
	applyFlag(flagCommand, "percentile-high", f.PercentileHigh, &opts.PercentileHigh)
	applyFlag(flagCommand, "instance-scale", f.InstanceScale, &opts.InstanceScale)
}

// values from the configuration file stay unless the flag was given explicitly
func applyFlag[T any](flagCommand *pflag.FlagSet, name string, value *T, target *T) {
	if flagCommand.Changed(name) {
		*target = *value
	}
}

func defineStringFlagCommand(flagCommand *pflag.FlagSet, name string, shortHand string, defaultValue string, usage string) *string {
	var output string
	flagCommand.StringVarP(&output, name, shortHand, defaultValue, usage)
	return &output
}

func defineIntFlagCommand(flagCommand *pflag.FlagSet, name string, shortHand string, defaultValue int, usage string) *int {
	var output int
	flagCommand.IntVarP(&output, name, shortHand, defaultValue, usage)
	return &output
}

func defineUint64FlagCommand(flagCommand *pflag.FlagSet, name string, shortHand string, defaultValue uint64, usage string) *uint64 {
	var output uint64
	flagCommand.Uint64VarP(&output, name, shortHand, defaultValue, usage)
	return &output
}

func defineFloat64FlagCommand(flagCommand *pflag.FlagSet, name string, shortHand string, defaultValue float64, usage string) *float64 {
	var output float64
	flagCommand.Float64VarP(&output, name, shortHand, defaultValue, usage)
	return &output
}

func defineBoolFlagCommand(flagCommand *pflag.FlagSet, name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flagCommand.BoolVarP(&output, name, shortHand, defaultValue, usage)
	return &output
}
