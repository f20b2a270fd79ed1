package io

import (
	"errors"
	"fmt"
	"os"

	"github.com/ecopia-map/lasviewer/internal/data"
	"github.com/golang/glog"
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

var (
	ErrExportFull = errors.New("export holds more points than the reserved capacity")
)

// Collects delivered points in a PCD cloud with x y z (float32, centered like the instances)
// and intensity fields, written on Close
type PcdExporter struct {
	path      string
	cloud     *pc.PointCloud
	positions pc.Vec3Iterator
	intensity pc.Uint32Iterator
	count     int
}

func NewPcdExporter(path string, capacity int) (*PcdExporter, error) {
	cloud := &pc.PointCloud{
		PointCloudHeader: pc.PointCloudHeader{
			Version: 0.7,
			Fields:  []string{"x", "y", "z", "intensity"},
			Size:    []int{4, 4, 4, 4},
			Type:    []string{"F", "F", "F", "U"},
			Count:   []int{1, 1, 1, 1},
			Width:   capacity,
			Height:  1,
		},
		Points: capacity,
	}
	cloud.Data = make([]byte, capacity*cloud.Stride())

	positions, err := cloud.Vec3Iterator()
	if err != nil {
		return nil, err
	}
	intensity, err := cloud.Uint32Iterator("intensity")
	if err != nil {
		return nil, err
	}

	return &PcdExporter{
		path:      path,
		cloud:     cloud,
		positions: positions,
		intensity: intensity,
	}, nil
}

func (e *PcdExporter) WritePoint(p *data.Point) error {
	if e.count >= e.cloud.Points {
		return fmt.Errorf("%w: %d", ErrExportFull, e.cloud.Points)
	}
	e.positions.SetVec3(mat.Vec3{float32(p.Position.X), float32(p.Position.Y), float32(p.Position.Z)})
	e.intensity.SetUint32(uint32(p.Intensity))
	e.positions.Incr()
	e.intensity.Incr()
	e.count++
	return nil
}

func (e *PcdExporter) Close() error {
	e.cloud.Points = e.count
	e.cloud.Width = e.count
	e.cloud.Data = e.cloud.Data[:e.count*e.cloud.Stride()]

	file, err := os.Create(e.path)
	if err != nil {
		return err
	}
	if err := pc.Marshal(e.cloud, file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	glog.Infof("exported %d points to %s", e.count, e.path)
	return nil
}
