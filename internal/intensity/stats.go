package intensity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary of the raw intensities of a read, logged after normalization
type Stats struct {
	Count  int
	Min    uint16
	Max    uint16
	Mean   float64
	StdDev float64
}

func ComputeStats(raw []uint16) Stats {
	if len(raw) == 0 {
		return Stats{}
	}

	s := Stats{Count: len(raw), Min: math.MaxUint16}
	for _, v := range raw {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}

	values := toFloats(raw)
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("count=%d min=%d max=%d mean=%.2f stddev=%.2f", s.Count, s.Min, s.Max, s.Mean, s.StdDev)
}
