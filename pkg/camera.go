package pkg

import (
	"math"

	"github.com/golang/geo/r3"
)

const (
	maxFrameDelta   = 0.1
	cameraElevation = 35.0 * math.Pi / 180
)

// Camera circling the scene center at a fixed elevation. It receives the cloud bounds from the
// read coordinator and otherwise only moves with the frame clock.
type OrbitCamera struct {
	center        r3.Vector
	radius        float64
	zoom          float64
	targetZoom    float64
	zoomSpeed     float64
	angle         float64 // degrees around the vertical axis
	rotationSpeed float64 // degrees per second
	eye           r3.Vector
}

func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		radius:        1,
		zoom:          1,
		targetZoom:    1,
		zoomSpeed:     4,
		rotationSpeed: 10,
	}
}

func (c *OrbitCamera) UpdateBounds(center r3.Vector, radius float64) {
	c.center = center
	c.radius = math.Max(radius, 1e-6)
	c.zoom = 1
	c.targetZoom = 1
	c.Update(0)
}

func (c *OrbitCamera) SetZoom(zoom float64) {
	if zoom > 0 {
		c.targetZoom = zoom
	}
}

// Advances zoom and rotation by deltaTime seconds, clamped to a tenth of a second
func (c *OrbitCamera) Update(deltaTime float64) {
	deltaTime = math.Min(math.Max(deltaTime, 0), maxFrameDelta)

	c.zoom += (c.targetZoom - c.zoom) * math.Min(deltaTime*c.zoomSpeed, 1)
	c.angle = math.Mod(c.angle+c.rotationSpeed*deltaTime, 360)

	distance := c.radius / c.zoom
	yaw := c.angle * math.Pi / 180
	offset := r3.Vector{
		X: -math.Sin(yaw) * math.Cos(cameraElevation),
		Y: math.Cos(yaw) * math.Cos(cameraElevation),
		Z: math.Sin(cameraElevation),
	}
	c.eye = c.center.Add(offset.Mul(distance))
}

func (c *OrbitCamera) Eye() r3.Vector {
	return c.eye
}

func (c *OrbitCamera) Center() r3.Vector {
	return c.center
}

func (c *OrbitCamera) Radius() float64 {
	return c.radius
}
