package io

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/ecopia-map/lasviewer/internal/colorramp"
	"github.com/ecopia-map/lasviewer/internal/data"
	"github.com/ecopia-map/lasviewer/internal/geometry"
	"github.com/ecopia-map/lasviewer/internal/intensity"
	"github.com/ecopia-map/lasviewer/internal/las"
	"github.com/ecopia-map/lasviewer/internal/loader"
	"github.com/ecopia-map/lasviewer/internal/pipeline"
	"github.com/ecopia-map/lasviewer/internal/render"
	"github.com/ecopia-map/lasviewer/tools"
	"github.com/golang/geo/r3"
	"github.com/golang/glog"
)

var (
	ErrReadInProgress = errors.New("a read is already in progress")
	ErrUploadFailed   = errors.New("uploading instances failed")
)

type State int32

const (
	StateIdle State = iota
	StateReading
	StateReadyToUpload
	StateReadFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateReading:
		return "Reading"
	case StateReadyToUpload:
		return "ReadyToUpload"
	case StateReadFailed:
		return "ReadFailed"
	}
	return "Unknown"
}

type Outcome int

const (
	OutcomeNone Outcome = iota
	// every point of the file went through the pipeline
	OutcomeComplete
	// the read stopped early, the buffer holds the points delivered until then
	OutcomePartial
	// the read stopped before delivering any point
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "Complete"
	case OutcomePartial:
		return "Partial"
	case OutcomeFailed:
		return "Failed"
	}
	return "None"
}

// Summary of a finished read
type ReadResult struct {
	Path      string
	Outcome   Outcome
	Processed uint64
	Capacity  int
	Bounds    geometry.BoundingBox
	Center    r3.Vector
	Err       error
	Message   string
}

// Receives the center and radius of the cloud being read, in the centered frame of the
// delivered positions
type CameraBounds interface {
	UpdateBounds(center r3.Vector, radius float64)
}

type CoordinatorOptions struct {
	Pipeline     pipeline.Options
	Normalizer   intensity.Normalizer
	ColorMode    loader.ColorMode
	ColorLUT     []r3.Vector // ramp sampled by normalized intensity, INTENSITY mode only
	StrictHeader bool
	ExportPath   string // .las or .pcd file receiving the delivered points, none when empty
	Camera       CameraBounds
}

// Runs one file read at a time on a worker goroutine and hands the result over to the
// goroutine owning the surface.
//
// StartRead and Poll must be called from the goroutine owning the surface. The worker only
// touches the host arrays of the instance buffer. Ownership of the buffer passes to the
// worker when inProgress is set and comes back when complete is observed, so no lock guards it.
type Coordinator struct {
	buffer  *render.InstanceBuffer
	options CoordinatorOptions

	inProgress atomic.Bool
	complete   atomic.Bool
	state      atomic.Int32

	// written by the worker before complete is set
	pending ReadResult
	// owned by the main goroutine
	last   ReadResult
	cancel context.CancelFunc
}

func NewCoordinator(buffer *render.InstanceBuffer, options CoordinatorOptions) *Coordinator {
	if options.Normalizer == nil {
		options.Normalizer = intensity.NewCDFNormalizer()
	}
	if options.ColorMode == "" {
		options.ColorMode = loader.ColorModeIntensity
	}
	if len(options.ColorLUT) == 0 {
		options.ColorLUT = colorramp.BuildLUT(colorramp.HeatMap, colorramp.DefaultLUTSize)
	}
	return &Coordinator{
		buffer:  buffer,
		options: options,
	}
}

// Validates the file, builds its pipeline, sizes the instance buffer and starts the worker.
// Header, construction and sizing errors are returned here and no worker is started.
// The worker stops between two points once ctx is done.
func (c *Coordinator) StartRead(ctx context.Context, path string) error {
	if c.inProgress.Load() || c.complete.Load() {
		return fmt.Errorf("%w: cannot start reading %s", ErrReadInProgress, path)
	}

	file, err := las.ReadFile(path)
	if err != nil {
		return err
	}
	if c.options.StrictHeader {
		if err := file.ValidationError(); err != nil {
			return err
		}
	}

	p, err := pipeline.BuildPipeline(ctx, file, c.options.Pipeline)
	if err != nil {
		glog.Errorf("aborting read of %s: %v", path, err)
		return err
	}

	var sink PointSink
	if c.options.ExportPath != "" {
		if sink, err = c.newPointSink(file.Header, p); err != nil {
			_ = p.Close()
			return err
		}
	}

	if err := c.buffer.Reserve(p.Capacity()); err != nil {
		_ = p.Close()
		if sink != nil {
			_ = sink.Close()
		}
		return fmt.Errorf("reserving %d instances: %w", p.Capacity(), err)
	}

	bounds := p.Bounds()
	if c.options.Camera != nil {
		c.options.Camera.UpdateBounds(bounds.Center(), bounds.Radius())
	}

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.last = ReadResult{}
	c.pending = ReadResult{
		Path:     path,
		Capacity: p.Capacity(),
		Bounds:   bounds,
		Center:   p.Center(),
	}

	c.state.Store(int32(StateReading))
	c.inProgress.Store(true)
	glog.Infoln("> reading points from", path)
	go c.read(workerCtx, p, sink)
	return nil
}

// PCD exports keep the centered positions, LAS exports go back to the source scale and offset
func (c *Coordinator) newPointSink(header *las.Header, p *pipeline.Pipeline) (PointSink, error) {
	path := c.options.ExportPath
	if err := tools.CreateParentDirectory(path); err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".pcd") {
		return NewPcdExporter(path, p.Capacity())
	}
	if reprojects(c.options.Pipeline) {
		return nil, ErrExportReprojected
	}
	return NewLasExporter(path, header, p.Center(), c.options.Pipeline.EightBitColors)
}

func reprojects(opts pipeline.Options) bool {
	return opts.SourceSrid != 0 && opts.TargetSrid != 0 && opts.SourceSrid != opts.TargetSrid
}

// worker goroutine
func (c *Coordinator) read(ctx context.Context, p *pipeline.Pipeline, sink PointSink) {
	result := c.pending

	var sinkErr error
	processed, err := p.Execute(ctx, func(pt *data.Point) bool {
		if _, appendErr := c.buffer.Append(pt.Position, pt.Intensity, pt.Color); appendErr != nil {
			p.Stop(appendErr)
			return false
		}
		if sink != nil && sinkErr == nil {
			sinkErr = sink.WritePoint(pt)
		}
		return true
	})
	if sink != nil {
		if closeErr := sink.Close(); closeErr != nil && sinkErr == nil {
			sinkErr = closeErr
		}
	}

	result.Processed = processed
	// append errors come back through err
	result.Err = errors.Join(err, sinkErr)
	switch {
	case result.Err == nil:
		result.Outcome = OutcomeComplete
		result.Message = fmt.Sprintf("read %d points", processed)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result.Outcome = OutcomePartial
		result.Message = fmt.Sprintf("read cancelled after %d points", processed)
	case processed > 0:
		result.Outcome = OutcomePartial
		result.Message = fmt.Sprintf("read stopped after %d points: %v", processed, result.Err)
	default:
		result.Outcome = OutcomeFailed
		result.Message = fmt.Sprintf("read failed: %v", result.Err)
	}
	if result.Err != nil {
		glog.Errorf("%s: %s", result.Path, result.Message)
	}

	state := StateReadyToUpload
	if result.Outcome == OutcomeFailed {
		state = StateReadFailed
	}

	c.pending = result
	c.state.Store(int32(state))
	c.complete.Store(true)
}

// Called once per frame. When the worker has finished, normalizes the intensities, colors the
// instances and uploads them to the surface. Returns the result of the read handed over in this
// call, false when there was none.
func (c *Coordinator) Poll() (ReadResult, bool) {
	if !c.complete.Load() {
		return ReadResult{}, false
	}

	result := c.pending
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	if err := c.upload(); err != nil {
		result.Err = errors.Join(result.Err, err)
		result.Outcome = OutcomeFailed
		result.Message = err.Error()
		glog.Errorf("%s: %v", result.Path, err)
	}

	state := StateIdle
	if result.Outcome == OutcomeFailed {
		state = StateReadFailed
	}
	c.last = result
	c.state.Store(int32(state))

	c.complete.Store(false)
	c.inProgress.Store(false)
	return result, true
}

func (c *Coordinator) upload() error {
	raw := c.buffer.Intensities()
	normalized, err := intensity.Normalize(c.options.Normalizer, raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	glog.Infoln("intensity:", intensity.ComputeStats(raw))

	colorByIntensity := c.options.ColorMode == loader.ColorModeIntensity
	for i, v := range normalized {
		if err := c.buffer.UpdateScalarAt(i, v); err != nil {
			return fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		if colorByIntensity {
			if err := c.buffer.UpdateColorAt(i, colorramp.ColorMap(float64(v), c.options.ColorLUT)); err != nil {
				return fmt.Errorf("%w: %w", ErrUploadFailed, err)
			}
		}
	}

	if err := c.buffer.FlushToGPU(); err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	glog.V(1).Infof("uploaded %d instances", c.buffer.Len())
	return nil
}

// Asks the running worker, if any, to stop. Does not wait for it: the stop is observed
// through Poll like any other completion.
func (c *Coordinator) Cancel() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Coordinator) IsReadInProgress() bool {
	return c.inProgress.Load()
}

func (c *Coordinator) IsReadComplete() bool {
	return c.complete.Load()
}

func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Result of the last read handed over by Poll
func (c *Coordinator) LastResult() ReadResult {
	return c.last
}

// Must only be inspected from the goroutine owning the surface while no read is in progress
func (c *Coordinator) Buffer() *render.InstanceBuffer {
	return c.buffer
}
