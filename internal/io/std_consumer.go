package io

import (
	"fmt"
	"sync"

	"github.com/ecopia-map/lasviewer/internal/las"
	"github.com/golang/glog"
	"github.com/shopspring/decimal"
)

// Header summary of a scanned file
type HeaderReport struct {
	Path               string     `json:"path"`
	Version            string     `json:"version"`
	PointFormat        int        `json:"point_format"`
	PointSize          uint16     `json:"point_size"`
	ExtraBytes         int        `json:"extra_bytes"`
	Compressed         bool       `json:"compressed"`
	PointCount         uint64     `json:"point_count"`
	SystemID           string     `json:"system_id"`
	GeneratingSoftware string     `json:"generating_software"`
	ProjectID          string     `json:"project_id"`
	CreationDay        uint16     `json:"creation_day"`
	CreationYear       uint16     `json:"creation_year"`
	Scale              [3]string  `json:"scale"`
	Offset             [3]string  `json:"offset"`
	Min                [3]float64 `json:"min"`
	Max                [3]float64 `json:"max"`
	Radius             float64    `json:"radius"`
	Supported          bool       `json:"supported"`
	Warnings           []string   `json:"warnings,omitempty"`
	Error              string     `json:"error,omitempty"`
}

// Reports are valid when the header could be decoded and raised no warning
func (r *HeaderReport) Valid() bool {
	return r.Error == "" && len(r.Warnings) == 0
}

type StandardConsumer struct{}

func NewStandardConsumer() *StandardConsumer {
	return &StandardConsumer{}
}

// Continually consumes WorkUnits submitted to a work channel producing a HeaderReport per file.
// Continues working until the work channel is closed. Files that cannot be decoded are reported,
// with strict header checking they also submit an error to the error channel and stop the consumer.
func (c *StandardConsumer) Consume(workchan chan *WorkUnit, reports chan *HeaderReport, errchan chan error, waitGroup *sync.WaitGroup) {
	for {
		// get work from channel
		work, ok := <-workchan
		if !ok {
			// channel was closed by producer, quit infinite loop
			break
		}

		// do work
		report, err := c.doWork(work)
		reports <- report

		// if there were errors during work send in error channel and quit
		if err != nil {
			errchan <- err
			glog.Errorln("exception in scan worker:", err)
			break
		}
	}

	// signal waitgroup finished work
	waitGroup.Done()
}

func (c *StandardConsumer) doWork(work *WorkUnit) (*HeaderReport, error) {
	report := &HeaderReport{Path: work.Path}

	file, err := las.ReadFile(work.Path)
	if err != nil {
		report.Error = err.Error()
		if work.Opts != nil && work.Opts.StrictHeader {
			return report, err
		}
		return report, nil
	}

	fillReport(report, file)
	if work.Opts != nil && work.Opts.StrictHeader {
		return report, file.ValidationError()
	}
	return report, nil
}

func fillReport(report *HeaderReport, file *las.File) {
	h := file.Header
	report.Version = h.Version()
	report.PointFormat = h.PointFormat()
	report.PointSize = h.PointSize
	report.ExtraBytes = h.ExtraBytes()
	report.Compressed = h.Compressed()
	report.PointCount = h.PointCount()
	report.SystemID = h.SystemID
	report.GeneratingSoftware = h.GeneratingSoftware
	report.ProjectID = h.ProjectID()
	report.CreationDay = h.CreationDay
	report.CreationYear = h.CreationYear
	report.Scale = [3]string{exact(h.ScaleX), exact(h.ScaleY), exact(h.ScaleZ)}
	report.Offset = [3]string{exact(h.OffsetX), exact(h.OffsetY), exact(h.OffsetZ)}
	report.Min = [3]float64{h.MinX, h.MinY, h.MinZ}
	report.Max = [3]float64{h.MaxX, h.MaxY, h.MaxZ}
	report.Radius = h.Bounds().Radius()
	report.Supported = h.PointFormatSupported()
	report.Warnings = file.Warnings
}

// shortest decimal representation, 0.01 stays 0.01
func exact(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func (r *HeaderReport) String() string {
	if r.Error != "" {
		return fmt.Sprintf("%s: %s", r.Path, r.Error)
	}
	return fmt.Sprintf("%s: LAS %s, format %d, %d points, %d warnings", r.Path, r.Version, r.PointFormat, r.PointCount, len(r.Warnings))
}
