package pkg

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ecopia-map/lasviewer/internal/colorramp"
	"github.com/ecopia-map/lasviewer/internal/io"
	"github.com/ecopia-map/lasviewer/internal/loader"
	"github.com/ecopia-map/lasviewer/internal/pipeline"
	"github.com/ecopia-map/lasviewer/internal/render"
	"github.com/ecopia-map/lasviewer/pkg/algorithm_manager"
	"github.com/ecopia-map/lasviewer/tools"
	"github.com/golang/glog"
)

const defaultFrameRate = 60

type IViewer interface {
	Run(ctx context.Context, opts *loader.LoaderOptions) ([]io.ReadResult, error)
	Close()
}

// Host of the frame loop: picks the files to read, starts one read at a time through the
// coordinator and polls it once per frame.
type Viewer struct {
	fileFinder       tools.FileFinder
	algorithmManager algorithm_manager.AlgorithmManager
	surface          render.Surface
	camera           *OrbitCamera
	coordinator      *io.Coordinator
}

func NewViewer(fileFinder tools.FileFinder, algorithmManager algorithm_manager.AlgorithmManager, surface render.Surface) *Viewer {
	return &Viewer{
		fileFinder:       fileFinder,
		algorithmManager: algorithmManager,
		surface:          surface,
		camera:           NewOrbitCamera(),
	}
}

// Reads every input file in turn, each read replacing the instances of the previous one.
// Returns once the last file has been uploaded and the configured viewing time has elapsed, or
// as soon as ctx is done. A negative viewing time keeps the loop running until ctx is done. Runs on the goroutine owning the surface.
func (v *Viewer) Run(ctx context.Context, opts *loader.LoaderOptions) ([]io.ReadResult, error) {
	tools.LogOutput("Preparing list of files to process...")
	lasFiles, err := v.fileFinder.GetLasFilesToProcess(opts)
	if err != nil {
		return nil, err
	}
	if len(lasFiles) == 0 {
		return nil, errors.New("no las/laz file found")
	}
	for i, filePath := range lasFiles {
		glog.V(1).Infof("las_file path %d [%s]", i, filePath)
	}

	v.coordinator = io.NewCoordinator(render.NewInstanceBuffer(v.surface, opts.InstanceScale), v.coordinatorOptions(opts))

	frameRate, viewFor := defaultFrameRate, time.Duration(0)
	if opts.ViewerOptions != nil {
		if opts.ViewerOptions.FrameRate > 0 {
			frameRate = opts.ViewerOptions.FrameRate
		}
		viewFor = time.Duration(opts.ViewerOptions.Duration * float64(time.Second))
	}

	ticker := time.NewTicker(time.Second / time.Duration(frameRate))
	defer ticker.Stop()

	results := make([]io.ReadResult, 0, len(lasFiles))
	next := 0
	lastFrame := time.Now()
	var lastUpload time.Time

	for {
		select {
		case <-ctx.Done():
			v.coordinator.Cancel()
			return results, ctx.Err()
		case now := <-ticker.C:
			v.camera.Update(now.Sub(lastFrame).Seconds())
			lastFrame = now
		}

		if result, ok := v.coordinator.Poll(); ok {
			results = append(results, result)
			lastUpload = time.Now()
			tools.LogOutput(fmt.Sprintf("> %s: %s (%s)", filepath.Base(result.Path), result.Message, result.Outcome))
		}

		if v.coordinator.IsReadInProgress() {
			continue
		}

		if next < len(lasFiles) {
			filePath := lasFiles[next]
			next++
			tools.LogOutput(fmt.Sprintf("Processing file %d/%d", next, len(lasFiles)))
			if err := v.coordinator.StartRead(ctx, filePath); err != nil {
				glog.Errorf("cannot read %s: %v", filePath, err)
				results = append(results, io.ReadResult{
					Path:    filePath,
					Outcome: io.OutcomeFailed,
					Err:     err,
					Message: err.Error(),
				})
			}
			continue
		}

		if viewFor >= 0 && time.Since(lastUpload) >= viewFor {
			return results, nil
		}
	}
}

func (v *Viewer) coordinatorOptions(opts *loader.LoaderOptions) io.CoordinatorOptions {
	pipelineOptions := pipeline.Options{
		DecimationStep:   opts.DecimationStep,
		AutoDecimate:     opts.AutoDecimate,
		VoxelThreshold:   opts.VoxelThreshold,
		CellMinSize:      opts.CellMinSize,
		CellMaxSize:      opts.CellMaxSize,
		CellSafetyFactor: opts.CellSafetyFactor,
		MaxCapacity:      opts.MaxInstances,
		EightBitColors:   opts.EightBitColors,
		SourceSrid:       opts.Srid,
		TargetSrid:       opts.TargetSrid,
		Converter:        v.algorithmManager.GetCoordinateConverterAlgorithm(),
		Corrector:        v.algorithmManager.GetElevationCorrectionAlgorithm(),
		Decompressor:     v.algorithmManager.GetDecompressor(),
	}

	exportPath := ""
	if opts.ReadOptions != nil {
		exportPath = opts.ReadOptions.Export
	}

	return io.CoordinatorOptions{
		Pipeline:     pipelineOptions,
		Normalizer:   v.algorithmManager.GetNormalizerAlgorithm(),
		ColorMode:    opts.ColorMode,
		ColorLUT:     colorramp.BuildLUT(opts.ColorRamp, opts.LUTSize),
		StrictHeader: opts.StrictHeader,
		ExportPath:   exportPath,
		Camera:       v.camera,
	}
}

// Stops the read in progress without waiting for it and releases the projection resources
func (v *Viewer) Close() {
	if v.coordinator != nil {
		v.coordinator.Cancel()
	}
	if converter := v.algorithmManager.GetCoordinateConverterAlgorithm(); converter != nil {
		converter.Cleanup()
	}
}

func (v *Viewer) Camera() *OrbitCamera {
	return v.camera
}

func (v *Viewer) Coordinator() *io.Coordinator {
	return v.coordinator
}
