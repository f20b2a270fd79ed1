package algorithm_manager

import (
	"github.com/ecopia-map/lasviewer/internal/converters"
	"github.com/ecopia-map/lasviewer/internal/intensity"
	"github.com/ecopia-map/lasviewer/internal/las"
)

type AlgorithmManager interface {
	GetElevationCorrectionAlgorithm() converters.ElevationCorrector
	GetCoordinateConverterAlgorithm() converters.CoordinateConverter
	GetNormalizerAlgorithm() intensity.Normalizer
	GetDecompressor() las.Decompressor
}
