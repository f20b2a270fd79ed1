package pkg

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestOrbitCameraFramesBounds(t *testing.T) {
	camera := NewOrbitCamera()
	camera.UpdateBounds(r3.Vector{X: 1, Y: 2, Z: 3}, 50)

	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, camera.Center())
	assert.InDelta(t, 50, camera.Eye().Sub(camera.Center()).Norm(), 1e-9)
	// looking down on the scene
	assert.Greater(t, camera.Eye().Z, camera.Center().Z)
}

func TestOrbitCameraRotatesWithClampedDelta(t *testing.T) {
	camera := NewOrbitCamera()
	camera.UpdateBounds(r3.Vector{}, 10)
	start := camera.Eye()

	// a stalled frame counts as a tenth of a second
	camera.Update(5)
	assert.InDelta(t, 1.0, camera.angle, 1e-9)
	assert.InDelta(t, 10, camera.Eye().Norm(), 1e-9)
	assert.NotEqual(t, start, camera.Eye())

	camera.Update(-1)
	assert.InDelta(t, 1.0, camera.angle, 1e-9)
}

func TestOrbitCameraZoom(t *testing.T) {
	camera := NewOrbitCamera()
	camera.UpdateBounds(r3.Vector{}, 10)
	camera.SetZoom(2)
	camera.SetZoom(-1)

	for i := 0; i < 100; i++ {
		camera.Update(0.1)
	}
	assert.InDelta(t, 5, camera.Eye().Norm(), 1e-3)

	// new bounds reset the zoom
	camera.UpdateBounds(r3.Vector{}, 20)
	assert.InDelta(t, 20, camera.Eye().Norm(), 1e-9)
	assert.False(t, math.IsNaN(camera.Eye().X))
}
