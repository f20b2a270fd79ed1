package offset_elevation_corrector

import (
	"github.com/ecopia-map/lasviewer/internal/converters"
	"github.com/golang/geo/r3"
)

// Shifts every coordinate vertically by a constant amount of meters
type OffsetElevationCorrector struct {
	Offset float64
}

func NewOffsetElevationCorrector(offset float64) converters.ElevationCorrector {
	return &OffsetElevationCorrector{
		Offset: offset,
	}
}

func (c *OffsetElevationCorrector) CorrectElevation(coord r3.Vector) r3.Vector {
	coord.Z += c.Offset
	return coord
}
