package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/ecopia-map/lasviewer/internal/converters"
	"github.com/ecopia-map/lasviewer/internal/data"
	"github.com/ecopia-map/lasviewer/internal/geometry"
	"github.com/ecopia-map/lasviewer/internal/las"
	"github.com/golang/geo/r3"
	"github.com/golang/glog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var (
	ErrReaderConstruction = errors.New("failed to create las/laz reader")
	ErrProcessing         = errors.New("point processing failed")
	ErrAlreadyExecuted    = errors.New("pipeline already executed")
	ErrCapacityTooLarge   = errors.New("point count exceeds the instance capacity limit")
	ErrStopped            = errors.New("pipeline stopped")
)

const (
	// Point count above which automatic decimation starts thinning the cloud
	AutoDecimationThreshold = 2_000_000
	MaxAutoDecimationStep   = 10

	// Instances a single read may reserve unless Options.MaxCapacity says otherwise
	DefaultMaxCapacity = 100_000_000

	// Points read between two checks of the context
	cancelCheckInterval = 4096
)

// Receives every point surviving the filters, positioned relative to the cloud center.
// The point is only valid during the call. Returning false leaves it out of the processed count.
type PointCallback func(p *data.Point) bool

type Options struct {
	DecimationStep   int
	AutoDecimate     bool
	VoxelThreshold   uint64
	CellMinSize      float64
	CellMaxSize      float64
	CellSafetyFactor float64
	EightBitColors   bool
	MaxCapacity      int // 0 means DefaultMaxCapacity

	SourceSrid   int
	TargetSrid   int
	Converter    converters.CoordinateConverter
	Corrector    converters.ElevationCorrector
	Decompressor las.Decompressor
}

func DefaultOptions() Options {
	return Options{
		DecimationStep:   1,
		VoxelThreshold:   AutoDecimationThreshold,
		CellMinSize:      0.01,
		CellMaxSize:      3.0,
		CellSafetyFactor: 1.2,
		EightBitColors:   true,
	}
}

// Linear chain reader -> [decimation] -> [voxel] -> [reprojection] -> callback built for a
// single file. A pipeline executes once.
type Pipeline struct {
	path     string
	header   *las.Header
	reader   *pointReader
	filters  []Filter
	center   r3.Vector
	bounds   geometry.BoundingBox
	step     int
	cellSize float64
	capacity int
	executed bool
	stopErr  error
}

// Builds the stage chain for the file. The reader is opened right away so that a file that
// cannot be read fails here, before any point is processed.
func BuildPipeline(ctx context.Context, file *las.File, opts Options) (*Pipeline, error) {
	reader, err := newPointReader(ctx, file, opts.Decompressor, opts.EightBitColors)
	if err != nil {
		return nil, err
	}
	p, err := newPipeline(file, reader, opts)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	glog.V(1).Infof("pipeline for %s: %v, step %d, cell %.4f, capacity %d", file.Path, p.StageNames(), p.step, p.cellSize, p.capacity)
	return p, nil
}

func newPipeline(file *las.File, reader *pointReader, opts Options) (*Pipeline, error) {
	header := file.Header

	// a declared count larger than the stored records never sizes the buffers
	count := header.PointCount()
	if stored := reader.records.StoredPointCount(); stored < count {
		glog.Warningf("%s declares %d points but holds %d, sizing for the stored ones", file.Path, count, stored)
		count = stored
	}

	step := opts.DecimationStep
	if step <= 1 && opts.AutoDecimate {
		step = AutoDecimationStep(count)
	}
	if step < 1 {
		step = 1
	}

	maxCapacity := opts.MaxCapacity
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxCapacity
	}
	capacity := EffectiveCapacity(count, step)
	if capacity > maxCapacity {
		return nil, fmt.Errorf("%w: %s: %w: %d points after decimation, limit %d", ErrReaderConstruction, file.Path, ErrCapacityTooLarge, capacity, maxCapacity)
	}

	p := &Pipeline{
		path:     file.Path,
		header:   header,
		reader:   reader,
		step:     step,
		capacity: capacity,
	}

	if step > 1 {
		p.filters = append(p.filters, newDecimationFilter(step))
	}

	bounds := header.Bounds()
	if opts.VoxelThreshold > 0 && uint64(p.capacity) > opts.VoxelThreshold {
		p.cellSize = VoxelCellSize(header, opts.CellMinSize, opts.CellMaxSize, opts.CellSafetyFactor)
		p.filters = append(p.filters, newVoxelFilter(p.cellSize, bounds.Min, uint64(p.capacity)))
	}

	if reprojection := newReprojection(opts); reprojection != nil {
		transformed, err := transformBounds(bounds, reprojection)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: reprojecting bounds: %w", ErrReaderConstruction, file.Path, err)
		}
		bounds = transformed
		p.filters = append(p.filters, reprojection)
	}

	p.center = bounds.Center()
	p.bounds = bounds.Translate(p.center.Mul(-1))
	return p, nil
}

func newReprojection(opts Options) *reprojectionFilter {
	f := &reprojectionFilter{
		corrector:  opts.Corrector,
		sourceSrid: opts.SourceSrid,
		targetSrid: opts.TargetSrid,
	}
	if opts.Converter != nil && opts.SourceSrid != 0 && opts.TargetSrid != 0 && opts.SourceSrid != opts.TargetSrid {
		f.converter = opts.Converter
	}
	if f.converter == nil && f.corrector == nil {
		return nil
	}
	return f
}

func transformBounds(bounds geometry.BoundingBox, f *reprojectionFilter) (geometry.BoundingBox, error) {
	out := geometry.EmptyBoundingBox()
	for _, corner := range []r3.Vector{bounds.Min, bounds.Max} {
		c, err := f.apply(corner)
		if err != nil {
			return bounds, err
		}
		out = out.Extend(c)
	}
	return out, nil
}

// Runs every point of the file through the stages and hands the survivors to onPoint.
// Returns the number of points the callback kept. Errors raised while traversing the file,
// including panics, are reported as ErrProcessing; points delivered before the failure are not
// taken back. A cancelled context stops the read between two points.
func (p *Pipeline) Execute(ctx context.Context, onPoint PointCallback) (processed uint64, err error) {
	if p.executed {
		return 0, ErrAlreadyExecuted
	}
	p.executed = true

	start := time.Now()
	var read uint64

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrProcessing, p.path, r)
		}
		if closeErr := p.reader.Close(); closeErr != nil {
			glog.Warningf("closing %s failed: %v", p.path, closeErr)
		}

		seconds := time.Since(start).Seconds()
		rate := 0.0
		if seconds > 0 {
			rate = float64(processed) / seconds
		}
		glog.Infof("total points: %d of %d read, finished reading in %.4f seconds (%.0f pts/sec)", processed, read, seconds, rate)
		p.logCounts()
	}()

	var point data.Point
	for {
		if read%cancelCheckInterval == 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return processed, fmt.Errorf("reading %s interrupted after %d points: %w", p.path, read, ctxErr)
			}
		}

		if readErr := p.reader.Next(&point); readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return processed, nil
			}
			return processed, fmt.Errorf("%w: %s: %w", ErrProcessing, p.path, readErr)
		}
		read++

		keep, filterErr := p.runFilters(&point)
		if filterErr != nil {
			return processed, fmt.Errorf("%w: %s: %w", ErrProcessing, p.path, filterErr)
		}
		if !keep {
			continue
		}

		point.Position = point.Position.Sub(p.center)
		if onPoint(&point) {
			processed++
		}
		if p.stopErr != nil {
			return processed, fmt.Errorf("reading %s stopped after %d points: %w", p.path, read, p.stopErr)
		}
	}
}

// Ends a running Execute after the current point, which then returns err. Only valid from
// within the callback.
func (p *Pipeline) Stop(err error) {
	if err == nil {
		err = ErrStopped
	}
	p.stopErr = err
}

func (p *Pipeline) runFilters(point *data.Point) (bool, error) {
	for _, f := range p.filters {
		keep, err := f.Process(point)
		if err != nil {
			return false, fmt.Errorf("%s: %w", f.Name(), err)
		}
		if !keep {
			return false, nil
		}
	}
	return true, nil
}

func (p *Pipeline) logCounts() {
	if !glog.V(1) {
		return
	}
	for _, f := range p.filters {
		in, out := f.Counts()
		glog.Infof("%s: %d in, %d out", f.Name(), in, out)
	}
}

// Releases the reader of a pipeline that is not going to be executed
func (p *Pipeline) Close() error {
	if p.executed {
		return nil
	}
	p.executed = true
	return p.reader.Close()
}

// Names of the stages in execution order
func (p *Pipeline) StageNames() []string {
	names := []string{StageReader}
	names = append(names, lo.Map(p.filters, func(f Filter, _ int) string {
		return f.Name()
	})...)
	return append(names, StageCallback)
}

func (p *Pipeline) HasStage(name string) bool {
	return lo.Contains(p.StageNames(), name)
}

func (p *Pipeline) Header() *las.Header {
	return p.header
}

// Upper bound of the number of points reaching the callback
func (p *Pipeline) Capacity() int {
	return p.capacity
}

func (p *Pipeline) DecimationStep() int {
	return p.step
}

// Voxel cell size, 0 when the voxel stage is not part of the pipeline
func (p *Pipeline) CellSize() float64 {
	return p.cellSize
}

// Point subtracted from every position before the callback
func (p *Pipeline) Center() r3.Vector {
	return p.center
}

// Bounds of the delivered positions
func (p *Pipeline) Bounds() geometry.BoundingBox {
	return p.bounds
}

// Decimation step for clouds above AutoDecimationThreshold points:
// clamp(log10(count / threshold) + 1, 1, 10), rounded to the nearest integer
func AutoDecimationStep(count uint64) int {
	if count <= AutoDecimationThreshold {
		return 1
	}
	step := math.Log10(float64(count)/AutoDecimationThreshold) + 1
	step = math.Min(math.Max(step, 1), MaxAutoDecimationStep)
	return int(math.Round(step))
}

// Number of points kept by a decimation of the given step, ceil(count / step), saturating at
// math.MaxInt
func EffectiveCapacity(count uint64, step int) int {
	if step < 1 {
		step = 1
	}
	s := uint64(step)
	kept := count / s
	if count%s != 0 {
		kept++
	}
	if kept > math.MaxInt {
		return math.MaxInt
	}
	return int(kept)
}

// Cell size proportional to the average point spacing on the XY plane:
// clamp(sqrt(area / count) * safety, min, max), rounded to the precision of the coordinate scale
func VoxelCellSize(header *las.Header, minCell, maxCell, safety float64) float64 {
	count := header.PointCount()
	if count == 0 {
		return maxCell
	}

	density := float64(count) / header.Bounds().PlanArea()
	spacing := math.Sqrt(1 / density)
	cell := clampCell(spacing*safety, minCell, maxCell)

	return clampCell(quantize(cell, math.Min(header.ScaleX, header.ScaleY)), minCell, maxCell)
}

// rounds value to the number of decimals of scale, a cell finer than the coordinate
// resolution cannot separate points
func quantize(value, scale float64) float64 {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return value
	}
	places := -decimal.NewFromFloat(scale).Exponent()
	if places <= 0 {
		return value
	}
	rounded := decimal.NewFromFloat(value).Round(places)
	if !rounded.IsPositive() {
		return scale
	}
	return rounded.InexactFloat64()
}

func clampCell(v, minCell, maxCell float64) float64 {
	return math.Min(math.Max(v, minCell), maxCell)
}
