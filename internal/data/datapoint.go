package data

import "github.com/golang/geo/r3"

// Contains data of a decoded Point Cloud Point, namely the X,Y,Z position centered on the
// cloud bounding box midpoint, the R,G,B color in [0,1], the raw Intensity and Classification.
// A Point only lives for the duration of a pipeline callback.
type Point struct {
	Position       r3.Vector
	Color          r3.Vector
	Intensity      uint16
	Classification uint8

	// extend in las_file
	PointExtend *PointExtend
}

type PointExtend struct {
	LasPointIndex int
	GpsTime       float64
}

var White = r3.Vector{X: 1, Y: 1, Z: 1}

// Builds a new Point from the given position, color, intensity and classification values
func NewPoint(position, color r3.Vector, intensity uint16, classification uint8, pointExtend *PointExtend) *Point {
	return &Point{
		Position:       position,
		Color:          color,
		Intensity:      intensity,
		Classification: classification,
		PointExtend:    pointExtend,
	}
}
