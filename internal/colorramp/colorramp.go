package colorramp

import (
	"math"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
)

type Type string

const (
	HeatMap   Type = "HEATMAP"
	Rainbow   Type = "RAINBOW"
	Pastel    Type = "PASTEL"
	BlueRed   Type = "BLUERED"
	Grayscale Type = "GRAYSCALE"
)

const DefaultLUTSize = 256

var Types = []Type{HeatMap, Rainbow, Pastel, BlueRed, Grayscale}

var (
	heatMap = []r3.Vector{
		{X: 0.0, Y: 0.0, Z: 0.5}, // dark blue (cold)
		{X: 0.0, Y: 0.0, Z: 1.0},
		{X: 0.0, Y: 1.0, Z: 1.0},
		{X: 1.0, Y: 1.0, Z: 0.0},
		{X: 1.0, Y: 0.0, Z: 0.0}, // red (hot)
	}

	rainbow = []r3.Vector{
		{X: 0.8, Y: 0.0, Z: 1.0},
		{X: 0.0, Y: 0.4, Z: 1.0},
		{X: 0.0, Y: 0.7, Z: 1.0},
		{X: 0.3, Y: 1.0, Z: 0.3},
		{X: 1.0, Y: 1.0, Z: 0.3},
		{X: 1.0, Y: 0.7, Z: 0.2},
		{X: 1.0, Y: 0.0, Z: 0.0},
	}

	pastel = []r3.Vector{
		{X: 0.4, Y: 0.6, Z: 0.8},
		{X: 0.6, Y: 0.4, Z: 0.8},
		{X: 0.5, Y: 0.7, Z: 0.5},
		{X: 0.8, Y: 0.8, Z: 0.5},
		{X: 0.8, Y: 0.6, Z: 0.5},
		{X: 0.8, Y: 0.5, Z: 0.7},
	}

	blueRed   = Generate([]r3.Vector{{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 0}}, 20)
	grayscale = Generate([]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 1}}, 8)
)

func (t Type) String() string {
	return string(t)
}

// Parses a ramp name case insensitively, returns an empty Type when the name is unknown
func ParseType(value string) Type {
	normalizedValue := Type(strings.ToUpper(strings.TrimSpace(value)))
	if lo.Contains(Types, normalizedValue) {
		return normalizedValue
	}
	return ""
}

// Returns the key colors of the ramp, HeatMap for unknown types
func Colors(t Type) []r3.Vector {
	switch t {
	case Rainbow:
		return rainbow
	case Pastel:
		return pastel
	case BlueRed:
		return blueRed
	case Grayscale:
		return grayscale
	default:
		return heatMap
	}
}

// Expands the key colors into totalSteps linearly interpolated colors. Steps are spread evenly
// over the transitions, the first transitions take the remainder. The last key color is only
// the end of the interpolation and is not emitted.
func Generate(colors []r3.Vector, totalSteps int) []r3.Vector {
	if len(colors) < 2 || totalSteps <= 0 {
		return append([]r3.Vector(nil), colors...)
	}

	ramp := make([]r3.Vector, 0, totalSteps)
	transitions := len(colors) - 1
	stepsPerTransition := totalSteps / transitions
	remainder := totalSteps % transitions

	for i := 0; i < transitions; i++ {
		steps := stepsPerTransition
		if i < remainder {
			steps++
		}
		if steps == 0 {
			continue
		}
		start, end := colors[i], colors[i+1]
		step := end.Sub(start).Mul(1 / float64(steps))
		for s := 0; s < steps; s++ {
			ramp = append(ramp, start.Add(step.Mul(float64(s))))
		}
	}
	return ramp
}

// Maps a value in [0,1] onto the ramp blending the two nearest colors. Values outside the
// range are clamped.
func ColorMap(value float64, ramp []r3.Vector) r3.Vector {
	if len(ramp) == 0 {
		return r3.Vector{X: 1, Y: 1, Z: 1}
	}
	if math.IsNaN(value) {
		value = 0
	}
	value = math.Min(math.Max(value, 0), 1)

	factor := value * float64(len(ramp)-1)
	index := int(factor)
	blend := factor - float64(index)

	start := ramp[index]
	end := start
	if index+1 < len(ramp) {
		end = ramp[index+1]
	}
	return start.Mul(1 - blend).Add(end.Mul(blend))
}

// Samples the ramp at size evenly spaced positions from 0 to 1 inclusive
func BuildLUT(t Type, size int) []r3.Vector {
	if size <= 0 {
		size = DefaultLUTSize
	}
	ramp := Colors(t)
	lut := make([]r3.Vector, size)
	if size == 1 {
		lut[0] = ColorMap(0, ramp)
		return lut
	}
	for i := range lut {
		lut[i] = ColorMap(float64(i)/float64(size-1), ramp)
	}
	return lut
}

// Flattens the table into RGB float32 triplets, the layout a 1D texture upload expects
func FlattenLUT(lut []r3.Vector) []float32 {
	out := make([]float32, 0, len(lut)*3)
	for _, c := range lut {
		out = append(out, float32(c.X), float32(c.Y), float32(c.Z))
	}
	return out
}
