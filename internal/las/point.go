package las

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnsupportedPointFormat = errors.New("unsupported point data format")
	ErrShortPointRecord       = errors.New("point record shorter than its format requires")
)

// Raw point as stored in a record: integer coordinates before scale and offset.
type RawPoint struct {
	X, Y, Z        int32
	Intensity      uint16
	Classification uint8
	GpsTime        float64
	Red            uint16
	Green          uint16
	Blue           uint16
	NIR            uint16
}

// Byte offsets of the optional fields of a point format, -1 when absent
type recordLayout struct {
	classification int
	gpsTime        int
	rgb            int
	nir            int
	legacyClass    bool
}

var recordLayouts = map[int]recordLayout{
	0: {classification: 15, gpsTime: -1, rgb: -1, nir: -1, legacyClass: true},
	1: {classification: 15, gpsTime: 20, rgb: -1, nir: -1, legacyClass: true},
	2: {classification: 15, gpsTime: -1, rgb: 20, nir: -1, legacyClass: true},
	3: {classification: 15, gpsTime: 20, rgb: 28, nir: -1, legacyClass: true},
	6: {classification: 16, gpsTime: 22, rgb: -1, nir: -1},
	7: {classification: 16, gpsTime: 22, rgb: 30, nir: -1},
	8: {classification: 16, gpsTime: 22, rgb: 30, nir: 36},
}

// Decodes point records of one point data format
type PointDecoder struct {
	format int
	layout recordLayout
	size   int
}

func NewPointDecoder(format int) (*PointDecoder, error) {
	layout, ok := recordLayouts[format]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedPointFormat, format)
	}
	return &PointDecoder{
		format: format,
		layout: layout,
		size:   baseSizes[format],
	}, nil
}

func (d *PointDecoder) Format() int {
	return d.format
}

// Minimum record length accepted by Decode
func (d *PointDecoder) BaseSize() int {
	return d.size
}

func (d *PointDecoder) Decode(record []byte, p *RawPoint) error {
	if len(record) < d.size {
		return fmt.Errorf("%w: %d < %d", ErrShortPointRecord, len(record), d.size)
	}

	p.X = int32(binary.LittleEndian.Uint32(record[0:4]))
	p.Y = int32(binary.LittleEndian.Uint32(record[4:8]))
	p.Z = int32(binary.LittleEndian.Uint32(record[8:12]))
	p.Intensity = binary.LittleEndian.Uint16(record[12:14])

	p.Classification = record[d.layout.classification]
	if d.layout.legacyClass {
		p.Classification &= 0x1F
	}

	p.GpsTime = 0
	if d.layout.gpsTime >= 0 {
		p.GpsTime = math.Float64frombits(binary.LittleEndian.Uint64(record[d.layout.gpsTime:]))
	}

	p.Red, p.Green, p.Blue = 0, 0, 0
	if d.layout.rgb >= 0 {
		o := d.layout.rgb
		p.Red = binary.LittleEndian.Uint16(record[o:])
		p.Green = binary.LittleEndian.Uint16(record[o+2:])
		p.Blue = binary.LittleEndian.Uint16(record[o+4:])
	}

	p.NIR = 0
	if d.layout.nir >= 0 {
		p.NIR = binary.LittleEndian.Uint16(record[d.layout.nir:])
	}

	return nil
}
