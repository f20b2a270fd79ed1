package geometry

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestBoundingBoxCenterRadius(t *testing.T) {
	b := NewBoundingBox(r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 100, Y: 100, Z: 10})

	assert.Equal(t, r3.Vector{X: 50, Y: 50, Z: 5}, b.Center())
	assert.InDelta(t, math.Sqrt(100*100+100*100+10*10)/2, b.Radius(), 1e-12)
	assert.Equal(t, 10000.0, b.PlanArea())
	assert.Equal(t, 10.0, b.Depth())
}

func TestPlanAreaFloor(t *testing.T) {
	b := NewBoundingBox(r3.Vector{}, r3.Vector{X: 0.1, Y: 0.1, Z: 50})
	assert.Equal(t, 1.0, b.PlanArea())
}

func TestExtendFromEmpty(t *testing.T) {
	b := EmptyBoundingBox()
	assert.True(t, b.IsEmpty())

	b = b.Extend(r3.Vector{X: 1, Y: -2, Z: 3})
	assert.False(t, b.IsEmpty())
	assert.Equal(t, b.Min, b.Max)

	b = b.Extend(r3.Vector{X: -1, Y: 5, Z: 0})
	assert.Equal(t, r3.Vector{X: -1, Y: -2, Z: 0}, b.Min)
	assert.Equal(t, r3.Vector{X: 1, Y: 5, Z: 3}, b.Max)
	assert.True(t, b.Contains(r3.Vector{X: 0, Y: 0, Z: 1}))
	assert.False(t, b.Contains(r3.Vector{X: 2, Y: 0, Z: 1}))
}

func TestTranslateToCenter(t *testing.T) {
	b := NewBoundingBox(r3.Vector{X: 10, Y: 20, Z: 30}, r3.Vector{X: 20, Y: 40, Z: 31})
	centered := b.Translate(b.Center().Mul(-1))

	assert.Equal(t, r3.Vector{X: -5, Y: -10, Z: -0.5}, centered.Min)
	assert.Equal(t, r3.Vector{X: 5, Y: 10, Z: 0.5}, centered.Max)
	assert.Equal(t, b.Radius(), centered.Radius())
}
