package las

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

var (
	ErrWriterClosed = errors.New("las writer already closed")
)

// Serializes the header into its on-disk layout, Size() bytes long
func EncodeHeader(h *Header) []byte {
	buf := make([]byte, 0, Size14)
	le := binary.LittleEndian

	putString := func(s string, n int) {
		b := make([]byte, n)
		copy(b, s)
		buf = append(buf, b...)
	}
	putFloat := func(v float64) {
		buf = le.AppendUint64(buf, math.Float64bits(v))
	}

	putString(h.Signature, 4)
	buf = le.AppendUint16(buf, h.FileSourceID)
	buf = le.AppendUint16(buf, h.GlobalEncoding)
	buf = append(buf, h.ProjectGUID[:]...)
	buf = append(buf, h.VersionMajor, h.VersionMinor)
	putString(h.SystemID, 32)
	putString(h.GeneratingSoftware, 32)
	buf = le.AppendUint16(buf, h.CreationDay)
	buf = le.AppendUint16(buf, h.CreationYear)
	buf = le.AppendUint16(buf, h.HeaderSize)
	buf = le.AppendUint32(buf, h.PointOffset)
	buf = le.AppendUint32(buf, h.VlrCount)
	buf = append(buf, h.PointFormatBits)
	buf = le.AppendUint16(buf, h.PointSize)
	buf = le.AppendUint32(buf, h.LegacyPointCount)
	for _, c := range h.LegacyPointsByReturn {
		buf = le.AppendUint32(buf, c)
	}

	putFloat(h.ScaleX)
	putFloat(h.ScaleY)
	putFloat(h.ScaleZ)
	putFloat(h.OffsetX)
	putFloat(h.OffsetY)
	putFloat(h.OffsetZ)
	putFloat(h.MaxX)
	putFloat(h.MinX)
	putFloat(h.MaxY)
	putFloat(h.MinY)
	putFloat(h.MaxZ)
	putFloat(h.MinZ)

	if h.VersionMinor >= 3 {
		buf = le.AppendUint64(buf, h.WaveOffset)
		if h.VersionMinor >= 4 {
			buf = le.AppendUint64(buf, h.EvlrOffset)
			buf = le.AppendUint32(buf, h.EvlrCount)
			buf = le.AppendUint64(buf, h.ExtendedPointCount)
			for _, c := range h.ExtendedPointsByReturn {
				buf = le.AppendUint64(buf, c)
			}
		}
	}

	return buf
}

// Encodes a raw point into a record of the given format. The record must be at least
// the base size of the format, extra bytes are left untouched.
func EncodePoint(format int, p *RawPoint, record []byte) error {
	layout, ok := recordLayouts[format]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnsupportedPointFormat, format)
	}
	if len(record) < baseSizes[format] {
		return fmt.Errorf("%w: %d < %d", ErrShortPointRecord, len(record), baseSizes[format])
	}

	le := binary.LittleEndian
	le.PutUint32(record[0:], uint32(p.X))
	le.PutUint32(record[4:], uint32(p.Y))
	le.PutUint32(record[8:], uint32(p.Z))
	le.PutUint16(record[12:], p.Intensity)
	record[layout.classification] = p.Classification
	if layout.gpsTime >= 0 {
		le.PutUint64(record[layout.gpsTime:], math.Float64bits(p.GpsTime))
	}
	if layout.rgb >= 0 {
		le.PutUint16(record[layout.rgb:], p.Red)
		le.PutUint16(record[layout.rgb+2:], p.Green)
		le.PutUint16(record[layout.rgb+4:], p.Blue)
	}
	if layout.nir >= 0 {
		le.PutUint16(record[layout.nir:], p.NIR)
	}
	return nil
}

// Writes an uncompressed LAS file without VLRs. Point count and bounds are tracked while
// writing and the header is rewritten on Close.
type Writer struct {
	file   *os.File
	writer *bufio.Writer
	header Header
	record []byte
	count  uint64
	closed bool
}

// Creates a LAS file reusing version, point format, scale and offset of the template header
func CreateWriter(path string, template *Header) (*Writer, error) {
	format := template.PointFormat()
	if _, ok := recordLayouts[format]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedPointFormat, format)
	}

	h := *template
	h.Signature = Signature
	if h.VersionMajor == 0 {
		h.VersionMajor = 1
	}
	if h.VersionMinor < 2 {
		h.VersionMinor = 2
	}
	if format > 5 && h.VersionMinor < 4 {
		h.VersionMinor = 4
	}
	h.PointFormatBits = uint8(format)
	h.PointSize = uint16(baseSizes[format])
	h.HeaderSize = uint16(h.Size())
	h.PointOffset = uint32(h.Size())
	h.VlrCount = 0
	h.WaveOffset = 0
	h.EvlrOffset = 0
	h.EvlrCount = 0
	h.LegacyPointsByReturn = [LegacyReturnCount]uint32{}
	h.ExtendedPointsByReturn = [ReturnCount]uint64{}
	h.MinX, h.MinY, h.MinZ = math.Inf(1), math.Inf(1), math.Inf(1)
	h.MaxX, h.MaxY, h.MaxZ = math.Inf(-1), math.Inf(-1), math.Inf(-1)

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		file:   file,
		writer: bufio.NewWriterSize(file, readBufferSize),
		header: h,
		record: make([]byte, h.PointSize),
	}

	// placeholder header, rewritten on Close
	if _, err := w.writer.Write(EncodeHeader(&w.header)); err != nil {
		_ = file.Close()
		return nil, err
	}

	return w, nil
}

func (w *Writer) WritePoint(p *RawPoint) error {
	if w.closed {
		return ErrWriterClosed
	}
	if err := EncodePoint(w.header.PointFormat(), p, w.record); err != nil {
		return err
	}
	if _, err := w.writer.Write(w.record); err != nil {
		return err
	}

	x := float64(p.X)*w.header.ScaleX + w.header.OffsetX
	y := float64(p.Y)*w.header.ScaleY + w.header.OffsetY
	z := float64(p.Z)*w.header.ScaleZ + w.header.OffsetZ
	h := &w.header
	h.MinX, h.MaxX = math.Min(h.MinX, x), math.Max(h.MaxX, x)
	h.MinY, h.MaxY = math.Min(h.MinY, y), math.Max(h.MaxY, y)
	h.MinZ, h.MaxZ = math.Min(h.MinZ, z), math.Max(h.MaxZ, z)

	w.count++
	return nil
}

func (w *Writer) Count() uint64 {
	return w.count
}

func (w *Writer) Close() error {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true

	if err := w.writer.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}

	h := &w.header
	if w.count == 0 {
		h.MinX, h.MinY, h.MinZ = 0, 0, 0
		h.MaxX, h.MaxY, h.MaxZ = 0, 0, 0
	}
	h.ExtendedPointCount = w.count
	if w.count <= math.MaxUint32 && h.PointFormat() <= 5 {
		h.LegacyPointCount = uint32(w.count)
	} else {
		h.LegacyPointCount = 0
	}

	if _, err := w.file.WriteAt(EncodeHeader(h), 0); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}
