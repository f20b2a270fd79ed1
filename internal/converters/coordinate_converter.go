package converters

import "github.com/golang/geo/r3"

// Converts coordinates between spatial reference systems identified by EPSG codes.
// Geographic coordinates are expressed in degrees (X = longitude, Y = latitude).
type CoordinateConverter interface {
	ConvertCoordinateSrid(sourceSrid int, targetSrid int, coord r3.Vector) (r3.Vector, error)
	Cleanup()
}

// Adjusts the height of a coordinate, e.g. to move points onto a different vertical datum
type ElevationCorrector interface {
	CorrectElevation(coord r3.Vector) r3.Vector
}
