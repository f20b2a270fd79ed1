package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/ecopia-map/lasviewer/internal/data"
	"github.com/ecopia-map/lasviewer/internal/las"
	"github.com/golang/geo/r3"
)

// Base stage: pulls records from the file and turns them into points with absolute,
// scale and offset corrected coordinates
type pointReader struct {
	records    las.RecordReader
	decoder    *las.PointDecoder
	record     []byte
	raw        las.RawPoint
	extend     data.PointExtend
	scale      r3.Vector
	offset     r3.Vector
	hasColor   bool
	colorScale float64
	index      int
}

func newPointReader(ctx context.Context, file *las.File, decompressor las.Decompressor, eightBitColors bool) (*pointReader, error) {
	if !file.Header.PointFormatSupported() {
		return nil, fmt.Errorf("%w: %s: %w", ErrReaderConstruction, file.Path,
			fmt.Errorf("%w: %d", las.ErrUnsupportedPointFormat, file.Header.PointFormat()))
	}

	records, err := file.OpenRecords(ctx, decompressor)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReaderConstruction, file.Path, err)
	}
	header := records.Header()

	decoder, err := las.NewPointDecoder(header.PointFormat())
	if err != nil {
		_ = records.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrReaderConstruction, file.Path, err)
	}
	if int(header.PointSize) < decoder.BaseSize() {
		_ = records.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrReaderConstruction, file.Path,
			fmt.Errorf("%w: record length %d, format %d needs %d", las.ErrShortPointRecord, header.PointSize, decoder.Format(), decoder.BaseSize()))
	}

	colorScale := 1.0 / 65535
	if eightBitColors {
		colorScale = 1.0 / 255
	}

	return &pointReader{
		records:    records,
		decoder:    decoder,
		record:     make([]byte, header.PointSize),
		scale:      header.Scale(),
		offset:     header.Offset(),
		hasColor:   header.HasColor(),
		colorScale: colorScale,
	}, nil
}

// Fills p with the next point, returns io.EOF after the last one
func (r *pointReader) Next(p *data.Point) error {
	if err := r.records.ReadRecord(r.record); err != nil {
		return err
	}
	if err := r.decoder.Decode(r.record, &r.raw); err != nil {
		return err
	}

	p.Position = r3.Vector{
		X: float64(r.raw.X)*r.scale.X + r.offset.X,
		Y: float64(r.raw.Y)*r.scale.Y + r.offset.Y,
		Z: float64(r.raw.Z)*r.scale.Z + r.offset.Z,
	}
	p.Color = data.White
	if r.hasColor {
		p.Color = r3.Vector{
			X: r.channel(r.raw.Red),
			Y: r.channel(r.raw.Green),
			Z: r.channel(r.raw.Blue),
		}
	}
	p.Intensity = r.raw.Intensity
	p.Classification = r.raw.Classification

	r.extend.LasPointIndex = r.index
	r.extend.GpsTime = r.raw.GpsTime
	p.PointExtend = &r.extend
	r.index++
	return nil
}

func (r *pointReader) channel(v uint16) float64 {
	return math.Min(float64(v)*r.colorScale, 1)
}

func (r *pointReader) Close() error {
	return r.records.Close()
}
