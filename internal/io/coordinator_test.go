package io

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ecopia-map/lasviewer/internal/colorramp"
	"github.com/ecopia-map/lasviewer/internal/las"
	"github.com/ecopia-map/lasviewer/internal/loader"
	"github.com/ecopia-map/lasviewer/internal/pipeline"
	"github.com/ecopia-map/lasviewer/internal/render"
	"github.com/golang/geo/r3"
	"github.com/seqsense/pcgol/pc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cloud of n points spread over (0,0,0)-(100,100,10) with intensities evenly spread over 0..65535
func writeCloud(t *testing.T, dir string, n int) string {
	t.Helper()
	path := filepath.Join(dir, "cloud.las")
	w, err := las.CreateWriter(path, &las.Header{
		VersionMajor:    1,
		VersionMinor:    2,
		PointFormatBits: 2,
		ScaleX:          0.01,
		ScaleY:          0.01,
		ScaleZ:          0.01,
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		p := las.RawPoint{
			X:              int32(frac * 10000),
			Y:              int32((1 - frac) * 10000),
			Z:              int32(frac * 1000),
			Intensity:      uint16(frac * 65535),
			Classification: 2,
			Red:            255,
			Green:          uint16(i % 256),
		}
		require.NoError(t, w.WritePoint(&p))
	}
	require.NoError(t, w.Close())
	return path
}

func pollUntilDone(t *testing.T, c *Coordinator) ReadResult {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if result, ok := c.Poll(); ok {
			return result
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("read did not complete")
	return ReadResult{}
}

type recordingCamera struct {
	center r3.Vector
	radius float64
	calls  int
}

func (c *recordingCamera) UpdateBounds(center r3.Vector, radius float64) {
	c.center = center
	c.radius = radius
	c.calls++
}

// identity converter blocking every point conversion until released. The first two calls
// transform the bounds while the pipeline is built.
type gateConverter struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateConverter() *gateConverter {
	return &gateConverter{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gateConverter) ConvertCoordinateSrid(_ int, _ int, coord r3.Vector) (r3.Vector, error) {
	if g.calls.Add(1) > 2 {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return coord, nil
}

func (g *gateConverter) Cleanup() {}

type identityConverter struct{}

func (identityConverter) ConvertCoordinateSrid(_ int, _ int, coord r3.Vector) (r3.Vector, error) {
	return coord, nil
}

func (identityConverter) Cleanup() {}

func newTestCoordinator(options CoordinatorOptions) (*Coordinator, *render.HeadlessSurface) {
	surface := render.NewHeadlessSurface()
	if options.Pipeline.CellMaxSize == 0 {
		options.Pipeline = pipeline.DefaultOptions()
	}
	return NewCoordinator(render.NewInstanceBuffer(surface, 1), options), surface
}

func TestCoordinatorReadsAndUploads(t *testing.T) {
	path := writeCloud(t, t.TempDir(), 1000)
	camera := &recordingCamera{}
	c, surface := newTestCoordinator(CoordinatorOptions{Camera: camera})

	require.Equal(t, StateIdle, c.State())
	require.NoError(t, c.StartRead(context.Background(), path))

	result := pollUntilDone(t, c)
	assert.Equal(t, OutcomeComplete, result.Outcome)
	assert.Equal(t, uint64(1000), result.Processed)
	assert.Equal(t, 1000, result.Capacity)
	assert.NoError(t, result.Err)
	assert.InDelta(t, 50.0, result.Center.X, 1e-9)
	assert.InDelta(t, 5.0, result.Center.Z, 1e-9)

	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.IsReadInProgress())
	assert.False(t, c.IsReadComplete())
	assert.Equal(t, result, c.LastResult())

	assert.Equal(t, 1, camera.calls)
	assert.InDelta(t, 0.0, camera.center.Norm(), 1e-9)
	assert.InDelta(t, r3.Vector{X: 100, Y: 100, Z: 10}.Norm()/2, camera.radius, 1e-9)

	assert.Equal(t, []render.SurfaceCall{render.CallReserve, render.CallUpload}, surface.Calls())
	assert.Equal(t, 1000, surface.InstanceCount())

	buffer := c.Buffer()
	require.Equal(t, 1000, buffer.Len())
	scalars := buffer.Scalars()
	assert.InDelta(t, 0.001, scalars[0], 1e-6)
	assert.InDelta(t, 1.0, scalars[999], 1e-6)
	for i := 1; i < len(scalars); i++ {
		assert.LessOrEqual(t, scalars[i-1], scalars[i])
	}

	lut := colorramp.BuildLUT(colorramp.HeatMap, colorramp.DefaultLUTSize)
	top := lut[len(lut)-1]
	assert.InDeltaSlice(t, []float32{float32(top.X), float32(top.Y), float32(top.Z)}, buffer.Colors()[999][:], 1e-6)

	for i := 0; i < buffer.Len(); i++ {
		pos, err := buffer.PositionAt(i)
		require.NoError(t, err)
		assert.True(t, pos.X >= -50.0001 && pos.X <= 50.0001)
		assert.True(t, pos.Y >= -50.0001 && pos.Y <= 50.0001)
		assert.True(t, pos.Z >= -5.0001 && pos.Z <= 5.0001)
	}
}

func TestCoordinatorRGBModeKeepsFileColors(t *testing.T) {
	path := writeCloud(t, t.TempDir(), 10)
	c, _ := newTestCoordinator(CoordinatorOptions{ColorMode: loader.ColorModeRGB})

	require.NoError(t, c.StartRead(context.Background(), path))
	result := pollUntilDone(t, c)
	require.Equal(t, OutcomeComplete, result.Outcome)

	colors := c.Buffer().Colors()
	require.Len(t, colors, 10)
	assert.InDelta(t, 1.0, colors[3][0], 1e-6)
	assert.InDelta(t, 3.0/255, colors[3][1], 1e-6)
	assert.InDelta(t, 0.0, colors[3][2], 1e-6)
}

func TestCoordinatorRejectsSecondReadWhileReading(t *testing.T) {
	dir := t.TempDir()
	path := writeCloud(t, dir, 20)
	gate := newGateConverter()
	opts := pipeline.DefaultOptions()
	opts.SourceSrid, opts.TargetSrid, opts.Converter = 1, 2, gate
	c, surface := newTestCoordinator(CoordinatorOptions{Pipeline: opts})

	require.NoError(t, c.StartRead(context.Background(), path))
	<-gate.entered

	assert.True(t, c.IsReadInProgress())
	assert.False(t, c.IsReadComplete())
	assert.Equal(t, StateReading, c.State())
	_, done := c.Poll()
	assert.False(t, done)
	assert.ErrorIs(t, c.StartRead(context.Background(), path), ErrReadInProgress)
	assert.Equal(t, []render.SurfaceCall{render.CallReserve}, surface.Calls())

	close(gate.release)
	result := pollUntilDone(t, c)
	assert.Equal(t, OutcomeComplete, result.Outcome)
	assert.Equal(t, uint64(20), result.Processed)

	// idle again, a new read can start
	require.NoError(t, c.StartRead(context.Background(), path))
	result = pollUntilDone(t, c)
	assert.Equal(t, uint64(20), result.Processed)
}

func TestCoordinatorCancel(t *testing.T) {
	path := writeCloud(t, t.TempDir(), 5000)
	gate := newGateConverter()
	opts := pipeline.DefaultOptions()
	opts.SourceSrid, opts.TargetSrid, opts.Converter = 1, 2, gate
	c, surface := newTestCoordinator(CoordinatorOptions{Pipeline: opts})

	require.NoError(t, c.StartRead(context.Background(), path))
	<-gate.entered
	c.Cancel()
	close(gate.release)

	result := pollUntilDone(t, c)
	assert.Equal(t, OutcomePartial, result.Outcome)
	assert.ErrorIs(t, result.Err, context.Canceled)
	// the context is checked every 4096 points
	assert.Equal(t, uint64(4096), result.Processed)
	assert.Equal(t, 4096, c.Buffer().Len())
	assert.Equal(t, 4096, surface.InstanceCount())
	assert.Equal(t, StateIdle, c.State())
}

func TestCoordinatorConstructionErrorStartsNoWorker(t *testing.T) {
	path := writeCloud(t, t.TempDir(), 10)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{2 | 0x80}, 104)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	c, surface := newTestCoordinator(CoordinatorOptions{})
	err = c.StartRead(context.Background(), path)
	assert.ErrorIs(t, err, pipeline.ErrReaderConstruction)
	assert.ErrorIs(t, err, las.ErrNoDecompressor)
	assert.False(t, c.IsReadInProgress())
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, surface.Calls())
}

func TestCoordinatorStrictHeader(t *testing.T) {
	path := writeCloud(t, t.TempDir(), 10)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-10))

	strict, surface := newTestCoordinator(CoordinatorOptions{StrictHeader: true})
	assert.ErrorIs(t, strict.StartRead(context.Background(), path), las.ErrInvalidHeader)
	assert.False(t, strict.IsReadInProgress())
	assert.Empty(t, surface.Calls())

	lenient, surface := newTestCoordinator(CoordinatorOptions{})
	require.NoError(t, lenient.StartRead(context.Background(), path))
	result := pollUntilDone(t, lenient)
	assert.Equal(t, OutcomePartial, result.Outcome)
	assert.Equal(t, uint64(9), result.Processed)
	assert.ErrorIs(t, result.Err, pipeline.ErrProcessing)
	assert.ErrorIs(t, result.Err, las.ErrTruncatedPointData)
	assert.Equal(t, StateIdle, lenient.State())
	assert.Equal(t, 9, surface.InstanceCount())
}

func TestCoordinatorReadFailed(t *testing.T) {
	path := writeCloud(t, t.TempDir(), 10)
	require.NoError(t, os.Truncate(path, las.Size12))

	c, surface := newTestCoordinator(CoordinatorOptions{})
	require.NoError(t, c.StartRead(context.Background(), path))
	result := pollUntilDone(t, c)

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Zero(t, result.Processed)
	assert.ErrorIs(t, result.Err, las.ErrTruncatedPointData)
	assert.NotEmpty(t, result.Message)
	assert.Equal(t, StateReadFailed, c.State())
	assert.Equal(t, []render.SurfaceCall{render.CallReserve, render.CallUpload}, surface.Calls())
	assert.Zero(t, surface.InstanceCount())

	// a failed read does not block the next one
	good := writeCloud(t, t.TempDir(), 5)
	require.NoError(t, c.StartRead(context.Background(), good))
	assert.Equal(t, OutcomeComplete, pollUntilDone(t, c).Outcome)
	assert.Equal(t, StateIdle, c.State())
}

func TestCoordinatorExport(t *testing.T) {
	dir := t.TempDir()
	path := writeCloud(t, dir, 100)
	out := filepath.Join(dir, "export.las")

	opts := pipeline.DefaultOptions()
	opts.DecimationStep = 2
	c, _ := newTestCoordinator(CoordinatorOptions{Pipeline: opts, ExportPath: out})

	require.NoError(t, c.StartRead(context.Background(), path))
	result := pollUntilDone(t, c)
	require.Equal(t, OutcomeComplete, result.Outcome)
	require.Equal(t, uint64(50), result.Processed)

	source, err := las.ReadFile(path)
	require.NoError(t, err)
	exported, err := las.ReadFile(out)
	require.NoError(t, err)
	assert.Empty(t, exported.Warnings)
	assert.Equal(t, uint64(50), exported.Header.PointCount())
	assert.Equal(t, source.Header.PointFormat(), exported.Header.PointFormat())
	assert.InDelta(t, source.Header.MinX, exported.Header.MinX, 0.011)
	assert.InDelta(t, source.Header.MinZ, exported.Header.MinZ, 0.011)
	assert.InDelta(t, source.Header.MaxY, exported.Header.MaxY, 0.011)
}

func TestCoordinatorExportPcd(t *testing.T) {
	dir := t.TempDir()
	path := writeCloud(t, dir, 40)
	out := filepath.Join(dir, "export.pcd")

	opts := pipeline.DefaultOptions()
	opts.SourceSrid, opts.TargetSrid, opts.Converter = 1, 2, identityConverter{}
	c, _ := newTestCoordinator(CoordinatorOptions{Pipeline: opts, ExportPath: out})

	require.NoError(t, c.StartRead(context.Background(), path))
	require.Equal(t, OutcomeComplete, pollUntilDone(t, c).Outcome)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	cloud, err := pc.Unmarshal(f)
	require.NoError(t, err)
	assert.Equal(t, 40, cloud.Points)
	assert.Equal(t, []string{"x", "y", "z", "intensity"}, cloud.Fields)
}

func TestCoordinatorExportRejectsReprojection(t *testing.T) {
	dir := t.TempDir()
	path := writeCloud(t, dir, 10)
	opts := pipeline.DefaultOptions()
	opts.SourceSrid, opts.TargetSrid, opts.Converter = 1, 2, identityConverter{}
	c, surface := newTestCoordinator(CoordinatorOptions{Pipeline: opts, ExportPath: filepath.Join(dir, "out.las")})

	assert.ErrorIs(t, c.StartRead(context.Background(), path), ErrExportReprojected)
	assert.False(t, c.IsReadInProgress())
	assert.Empty(t, surface.Calls())
}

// The worker appends every point before it raises the complete flag and the surface is only
// touched once the flag is observed: before the handoff no instance is visible, after it all are.
func TestCoordinatorHandoffStress(t *testing.T) {
	const points = 64
	path := writeCloud(t, t.TempDir(), points)
	c, surface := newTestCoordinator(CoordinatorOptions{})

	for iteration := 0; iteration < 200; iteration++ {
		require.NoError(t, c.StartRead(context.Background(), path))

		deadline := time.Now().Add(10 * time.Second)
		for {
			result, ok := c.Poll()
			if ok {
				require.Equal(t, uint64(points), result.Processed)
				require.Equal(t, points, c.Buffer().Len())
				require.Len(t, c.Buffer().Intensities(), points)
				require.Len(t, c.Buffer().Scalars(), points)
				require.Equal(t, points, surface.InstanceCount())
				break
			}
			require.Zero(t, surface.InstanceCount(), "iteration %d", iteration)
			require.True(t, time.Now().Before(deadline), "iteration %d did not complete", iteration)
		}
	}
}

func TestCoordinatorHugeDeclaredCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.las")
	w, err := las.CreateWriter(path, &las.Header{
		VersionMajor:    1,
		VersionMinor:    4,
		PointFormatBits: 6,
		ScaleX:          0.01,
		ScaleY:          0.01,
		ScaleZ:          0.01,
	})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.WritePoint(&las.RawPoint{X: int32(i * 100), Y: int32(i * 100), Z: int32(i)}))
	}
	require.NoError(t, w.Close())

	file, err := las.ReadFile(path)
	require.NoError(t, err)
	header := *file.Header
	header.ExtendedPointCount = 1 << 62
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt(las.EncodeHeader(&header), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	c, surface := newTestCoordinator(CoordinatorOptions{})
	require.NoError(t, c.StartRead(context.Background(), path))
	result := pollUntilDone(t, c)

	assert.Equal(t, 3, result.Capacity)
	assert.Equal(t, OutcomePartial, result.Outcome)
	assert.Equal(t, uint64(3), result.Processed)
	assert.ErrorIs(t, result.Err, las.ErrTruncatedPointData)
	assert.Equal(t, 3, surface.InstanceCount())
}

func TestCoordinatorRefusesCapacityAboveLimit(t *testing.T) {
	path := writeCloud(t, t.TempDir(), 50)
	options := pipeline.DefaultOptions()
	options.MaxCapacity = 10

	c, surface := newTestCoordinator(CoordinatorOptions{Pipeline: options, ExportPath: filepath.Join(t.TempDir(), "out.pcd")})
	err := c.StartRead(context.Background(), path)
	assert.ErrorIs(t, err, pipeline.ErrReaderConstruction)
	assert.ErrorIs(t, err, pipeline.ErrCapacityTooLarge)
	assert.False(t, c.IsReadInProgress())
	assert.Empty(t, surface.Calls())
}
