package proj4_coordinate_converter

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionLookup(t *testing.T) {
	cc := newProj4CoordinateConverter()

	def, err := cc.Definition(4326)
	require.NoError(t, err)
	assert.Contains(t, def, "+proj=longlat")

	def, err = cc.Definition(32633)
	require.NoError(t, err)
	assert.Equal(t, "+proj=utm +zone=33 +datum=WGS84 +units=m +no_defs", def)

	def, err = cc.Definition(32755)
	require.NoError(t, err)
	assert.Contains(t, def, "+zone=55 +south")

	_, err = cc.Definition(2056)
	assert.ErrorIs(t, err, ErrUnknownSrid)

	cc.Define(2056, "+proj=somerc +lat_0=46.95240555555556 +lon_0=7.439583333333333 +k_0=1 +x_0=2600000 +y_0=1200000 +ellps=bessel +units=m +no_defs")
	_, err = cc.Definition(2056)
	assert.NoError(t, err)
}

func TestSameSridIsIdentity(t *testing.T) {
	cc := newProj4CoordinateConverter()
	in := r3.Vector{X: 1, Y: 2, Z: 3}

	out, err := cc.ConvertCoordinateSrid(9999, 9999, in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnknownSridFails(t *testing.T) {
	cc := newProj4CoordinateConverter()
	defer cc.Cleanup()

	_, err := cc.ConvertCoordinateSrid(4326, 1, r3.Vector{})
	assert.ErrorIs(t, err, ErrUnknownSrid)
}

func TestWgs84ToWebMercator(t *testing.T) {
	cc := newProj4CoordinateConverter()
	defer cc.Cleanup()

	out, err := cc.ConvertCoordinateSrid(4326, 3857, r3.Vector{X: 10, Y: 0, Z: 5})
	require.NoError(t, err)

	expectedX := 6378137 * 10 * math.Pi / 180
	assert.InDelta(t, expectedX, out.X, 1e-3)
	assert.InDelta(t, 0, out.Y, 1e-3)
	assert.InDelta(t, 5, out.Z, 1e-6)

	back, err := cc.ConvertCoordinateSrid(3857, 4326, out)
	require.NoError(t, err)
	assert.InDelta(t, 10, back.X, 1e-9)
	assert.InDelta(t, 0, back.Y, 1e-9)
}
