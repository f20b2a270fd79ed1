package io

import (
	"errors"
	"math"

	"github.com/ecopia-map/lasviewer/internal/data"
	"github.com/ecopia-map/lasviewer/internal/las"
	"github.com/golang/geo/r3"
	"github.com/golang/glog"
)

var (
	ErrExportReprojected = errors.New("points reprojected to another srid cannot be exported with the source scale and offset")
)

// Receives, on the reading goroutine, every point delivered to the instance buffer
type PointSink interface {
	WritePoint(p *data.Point) error
	Close() error
}

// Writes delivered points back to an uncompressed LAS file with the point format, scale and
// offset of the source header
type LasExporter struct {
	path       string
	writer     *las.Writer
	center     r3.Vector
	scale      r3.Vector
	offset     r3.Vector
	colorScale float64
	raw        las.RawPoint
}

// center is the vector the pipeline subtracted from every position
func NewLasExporter(path string, source *las.Header, center r3.Vector, eightBitColors bool) (*LasExporter, error) {
	writer, err := las.CreateWriter(path, source)
	if err != nil {
		return nil, err
	}

	colorScale := 65535.0
	if eightBitColors {
		colorScale = 255.0
	}

	return &LasExporter{
		path:       path,
		writer:     writer,
		center:     center,
		scale:      source.Scale(),
		offset:     source.Offset(),
		colorScale: colorScale,
	}, nil
}

func (e *LasExporter) WritePoint(p *data.Point) error {
	abs := p.Position.Add(e.center)
	e.raw = las.RawPoint{
		X:              toRecordCoordinate(abs.X, e.scale.X, e.offset.X),
		Y:              toRecordCoordinate(abs.Y, e.scale.Y, e.offset.Y),
		Z:              toRecordCoordinate(abs.Z, e.scale.Z, e.offset.Z),
		Intensity:      p.Intensity,
		Classification: p.Classification,
		Red:            uint16(math.Round(p.Color.X * e.colorScale)),
		Green:          uint16(math.Round(p.Color.Y * e.colorScale)),
		Blue:           uint16(math.Round(p.Color.Z * e.colorScale)),
	}
	if p.PointExtend != nil {
		e.raw.GpsTime = p.PointExtend.GpsTime
	}
	return e.writer.WritePoint(&e.raw)
}

func (e *LasExporter) Close() error {
	count := e.writer.Count()
	if err := e.writer.Close(); err != nil {
		return err
	}
	glog.Infof("exported %d points to %s", count, e.path)
	return nil
}

func toRecordCoordinate(v, scale, offset float64) int32 {
	if scale == 0 {
		scale = 1
	}
	return int32(math.Round((v - offset) / scale))
}
