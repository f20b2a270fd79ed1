package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// Axis aligned bounding box of a point cloud
type BoundingBox struct {
	Min r3.Vector
	Max r3.Vector
}

func NewBoundingBox(min, max r3.Vector) BoundingBox {
	return BoundingBox{Min: min, Max: max}
}

// Returns an inverted box that the first Extend call collapses onto its point
func EmptyBoundingBox() BoundingBox {
	inf := math.Inf(1)
	return BoundingBox{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

func (b BoundingBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

func (b BoundingBox) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Half the length of the diagonal
func (b BoundingBox) Radius() float64 {
	return b.Max.Sub(b.Min).Norm() / 2
}

func (b BoundingBox) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

func (b BoundingBox) Width() float64 {
	return b.Max.X - b.Min.X
}

func (b BoundingBox) Height() float64 {
	return b.Max.Y - b.Min.Y
}

func (b BoundingBox) Depth() float64 {
	return b.Max.Z - b.Min.Z
}

// XY footprint of the box, never below 1 so densities stay finite for flat or degenerate clouds
func (b BoundingBox) PlanArea() float64 {
	return math.Max(b.Width()*b.Height(), 1.0)
}

func (b BoundingBox) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b BoundingBox) Extend(p r3.Vector) BoundingBox {
	return BoundingBox{
		Min: r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)},
		Max: r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)},
	}
}

// Moves the box so that the given point becomes the origin
func (b BoundingBox) Translate(offset r3.Vector) BoundingBox {
	return BoundingBox{Min: b.Min.Add(offset), Max: b.Max.Add(offset)}
}
