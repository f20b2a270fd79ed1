package intensity

import (
	"errors"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// One bucket per possible raw 16 bit intensity value
const BinCount = 1 << 16

type Method string

const (
	MethodCDF        Method = "CDF"
	MethodPercentile Method = "PERCENTILE"
)

var (
	ErrLengthMismatch = errors.New("output length differs from input length")
)

func (m Method) String() string {
	return string(m)
}

func ParseMethod(value string) Method {
	normalizedValue := strings.ToUpper(strings.TrimSpace(value))
	if normalizedValue == string(MethodCDF) {
		return MethodCDF
	} else if normalizedValue == string(MethodPercentile) {
		return MethodPercentile
	}
	return ""
}

// Maps raw intensities into [0,1]
type Normalizer interface {
	Method() Method
	// Writes one normalized value per raw value into out, which must be as long as raw
	NormalizeInto(raw []uint16, out []float32) error
}

// Returns a new slice with the normalized values of raw
func Normalize(n Normalizer, raw []uint16) ([]float32, error) {
	out := make([]float32, len(raw))
	if err := n.NormalizeInto(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func NewNormalizer(method Method, lowPercentile, highPercentile float64) Normalizer {
	if method == MethodPercentile {
		return NewPercentileNormalizer(lowPercentile, highPercentile)
	}
	return NewCDFNormalizer()
}

// Histogram equalization: every value is replaced by the share of points whose intensity is
// lower or equal. Runs in O(BinCount + N) regardless of the value range.
type CDFNormalizer struct{}

func NewCDFNormalizer() *CDFNormalizer {
	return &CDFNormalizer{}
}

func (n *CDFNormalizer) Method() Method {
	return MethodCDF
}

func (n *CDFNormalizer) NormalizeInto(raw []uint16, out []float32) error {
	if len(out) != len(raw) {
		return ErrLengthMismatch
	}
	if len(raw) == 0 {
		return nil
	}

	cumulative := CumulativeHistogram(raw)
	total := float64(len(raw))
	for i, v := range raw {
		out[i] = float32(float64(cumulative[v]) / total)
	}
	return nil
}

// Counts the occurrences of every intensity value, then turns the counts into running sums so
// that entry v holds the number of values <= v
func CumulativeHistogram(raw []uint16) []uint64 {
	histogram := make([]uint64, BinCount)
	for _, v := range raw {
		histogram[v]++
	}
	for i := 1; i < BinCount; i++ {
		histogram[i] += histogram[i-1]
	}
	return histogram
}

// Robust min/max scaling: values are clamped to the [low, high] percentiles and rescaled
// linearly. Needs a sorted copy of the input, O(N log N).
type PercentileNormalizer struct {
	Low  float64
	High float64
}

func NewPercentileNormalizer(low, high float64) *PercentileNormalizer {
	if low < 0 || low >= 1 {
		low = 0.01
	}
	if high <= low || high > 1 {
		high = 0.99
	}
	return &PercentileNormalizer{Low: low, High: high}
}

func (n *PercentileNormalizer) Method() Method {
	return MethodPercentile
}

func (n *PercentileNormalizer) NormalizeInto(raw []uint16, out []float32) error {
	if len(out) != len(raw) {
		return ErrLengthMismatch
	}
	if len(raw) == 0 {
		return nil
	}

	sorted := toFloats(raw)
	sort.Float64s(sorted)
	minValue := stat.Quantile(n.Low, stat.Empirical, sorted, nil)
	maxValue := stat.Quantile(n.High, stat.Empirical, sorted, nil)
	span := maxValue - minValue

	for i, v := range raw {
		if span <= 0 {
			out[i] = 0
			continue
		}
		clamped := clamp(float64(v), minValue, maxValue)
		out[i] = float32((clamped - minValue) / span)
	}
	return nil
}

func toFloats(raw []uint16) []float64 {
	values := make([]float64, len(raw))
	for i, v := range raw {
		values[i] = float64(v)
	}
	return values
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
