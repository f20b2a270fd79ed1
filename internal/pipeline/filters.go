package pipeline

import (
	"math"

	"github.com/ecopia-map/lasviewer/internal/converters"
	"github.com/ecopia-map/lasviewer/internal/data"
	"github.com/golang/geo/r3"
)

const (
	StageReader       = "readers.las"
	StageDecimation   = "filters.decimation"
	StageVoxel        = "filters.voxeldownsize"
	StageReprojection = "filters.reprojection"
	StageCallback     = "filters.callback"
)

// Stage sitting between the reader and the callback. Process may modify the point and returns
// false to drop it.
type Filter interface {
	Name() string
	Process(p *data.Point) (bool, error)
	Counts() (in uint64, out uint64)
}

type counters struct {
	in  uint64
	out uint64
}

func (c *counters) Counts() (uint64, uint64) {
	return c.in, c.out
}

func (c *counters) count(keep bool) bool {
	c.in++
	if keep {
		c.out++
	}
	return keep
}

// Keeps points 0, step, 2*step... of its input
type decimationFilter struct {
	counters
	step uint64
}

func newDecimationFilter(step int) *decimationFilter {
	return &decimationFilter{step: uint64(step)}
}

func (f *decimationFilter) Name() string {
	return StageDecimation
}

func (f *decimationFilter) Process(_ *data.Point) (bool, error) {
	return f.count(f.in%f.step == 0), nil
}

type gridIndex struct {
	x int64
	y int64
	z int64
}

// Keeps the first point falling in every cubic cell of a regular grid anchored at origin
type voxelFilter struct {
	counters
	cellSize float64
	origin   r3.Vector
	seen     map[gridIndex]struct{}
}

const maxVoxelReserve = 1 << 20

func newVoxelFilter(cellSize float64, origin r3.Vector, expectedPoints uint64) *voxelFilter {
	reserve := expectedPoints
	if reserve > maxVoxelReserve {
		reserve = maxVoxelReserve
	}
	return &voxelFilter{
		cellSize: cellSize,
		origin:   origin,
		seen:     make(map[gridIndex]struct{}, reserve),
	}
}

func (f *voxelFilter) Name() string {
	return StageVoxel
}

func (f *voxelFilter) Process(p *data.Point) (bool, error) {
	idx := gridIndex{
		x: getDimensionIndex(p.Position.X, f.origin.X, f.cellSize),
		y: getDimensionIndex(p.Position.Y, f.origin.Y, f.cellSize),
		z: getDimensionIndex(p.Position.Z, f.origin.Z, f.cellSize),
	}
	if _, ok := f.seen[idx]; ok {
		return f.count(false), nil
	}
	f.seen[idx] = struct{}{}
	return f.count(true), nil
}

// Number of occupied cells
func (f *voxelFilter) Cells() int {
	return len(f.seen)
}

// floor keeps cells the same size on both sides of the origin
func getDimensionIndex(coord, origin, cellSize float64) int64 {
	return int64(math.Floor((coord - origin) / cellSize))
}

// Applies the vertical correction and then the coordinate conversion to every point
type reprojectionFilter struct {
	counters
	converter  converters.CoordinateConverter
	corrector  converters.ElevationCorrector
	sourceSrid int
	targetSrid int
}

func (f *reprojectionFilter) Name() string {
	return StageReprojection
}

func (f *reprojectionFilter) Process(p *data.Point) (bool, error) {
	coord, err := f.apply(p.Position)
	if err != nil {
		return f.count(false), err
	}
	p.Position = coord
	return f.count(true), nil
}

func (f *reprojectionFilter) apply(coord r3.Vector) (r3.Vector, error) {
	if f.corrector != nil {
		coord = f.corrector.CorrectElevation(coord)
	}
	if f.converter != nil {
		return f.converter.ConvertCoordinateSrid(f.sourceSrid, f.targetSrid, coord)
	}
	return coord, nil
}
