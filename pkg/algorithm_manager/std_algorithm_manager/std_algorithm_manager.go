package std_algorithm_manager

import (
	"github.com/ecopia-map/lasviewer/internal/converters"
	"github.com/ecopia-map/lasviewer/internal/converters/elevation/offset_elevation_corrector"
	"github.com/ecopia-map/lasviewer/internal/converters/proj4_coordinate_converter"
	"github.com/ecopia-map/lasviewer/internal/intensity"
	"github.com/ecopia-map/lasviewer/internal/las"
	"github.com/ecopia-map/lasviewer/internal/loader"
	"github.com/ecopia-map/lasviewer/pkg/algorithm_manager"
)

type StandardAlgorithmManager struct {
	coordinateConverter converters.CoordinateConverter
	elevationCorrector  converters.ElevationCorrector
	normalizer          intensity.Normalizer
	decompressor        las.Decompressor
}

func NewAlgorithmManager(opts *loader.LoaderOptions) algorithm_manager.AlgorithmManager {
	var elevationCorrector converters.ElevationCorrector
	if opts.ZOffset != 0 {
		elevationCorrector = offset_elevation_corrector.NewOffsetElevationCorrector(opts.ZOffset)
	}

	var coordinateConverter converters.CoordinateConverter
	if opts.Srid != 0 && opts.TargetSrid != 0 && opts.Srid != opts.TargetSrid {
		coordinateConverter = proj4_coordinate_converter.NewProj4CoordinateConverter()
	}

	var decompressor las.Decompressor
	if opts.DecompressorPath != "" {
		decompressor = las.NewExternalDecompressor(opts.DecompressorPath, opts.TempDir)
	}

	return &StandardAlgorithmManager{
		coordinateConverter: coordinateConverter,
		elevationCorrector:  elevationCorrector,
		normalizer:          intensity.NewNormalizer(opts.Normalization, opts.PercentileLow, opts.PercentileHigh),
		decompressor:        decompressor,
	}
}

// Nil when no vertical offset is configured
func (algorithmManager *StandardAlgorithmManager) GetElevationCorrectionAlgorithm() converters.ElevationCorrector {
	return algorithmManager.elevationCorrector
}

// Nil when the points keep their source coordinates
func (algorithmManager *StandardAlgorithmManager) GetCoordinateConverterAlgorithm() converters.CoordinateConverter {
	return algorithmManager.coordinateConverter
}

func (algorithmManager *StandardAlgorithmManager) GetNormalizerAlgorithm() intensity.Normalizer {
	return algorithmManager.normalizer
}

func (algorithmManager *StandardAlgorithmManager) GetDecompressor() las.Decompressor {
	return algorithmManager.decompressor
}
