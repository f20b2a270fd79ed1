package las

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ecopia-map/lasviewer/internal/geometry"
	"github.com/golang/geo/r3"
)

const (
	Signature = "LASF"

	LegacyReturnCount = 5
	ReturnCount       = 15

	Size12 = 227
	Size13 = 235
	Size14 = 375

	FormatMask      = 0x0F
	CompressionMask = 0x80
)

var (
	ErrHeaderTooShort = errors.New("header buffer shorter than the LAS 1.2 header size")
)

// Contains the public header block of a LAS/LAZ file. Values are stored as read from disk,
// everything else is derived on demand.
type Header struct {
	Signature            string
	FileSourceID         uint16
	GlobalEncoding       uint16
	ProjectGUID          [16]byte
	VersionMajor         uint8
	VersionMinor         uint8
	SystemID             string
	GeneratingSoftware   string
	CreationDay          uint16
	CreationYear         uint16
	HeaderSize           uint16
	PointOffset          uint32
	VlrCount             uint32
	PointFormatBits      uint8
	PointSize            uint16
	LegacyPointCount     uint32
	LegacyPointsByReturn [LegacyReturnCount]uint32

	ScaleX, ScaleY, ScaleZ    float64
	OffsetX, OffsetY, OffsetZ float64
	MinX, MinY, MinZ          float64
	MaxX, MaxY, MaxZ          float64

	WaveOffset             uint64
	EvlrOffset             uint64
	EvlrCount              uint32
	ExtendedPointCount     uint64
	ExtendedPointsByReturn [ReturnCount]uint64
}

var baseSizes = map[int]int{
	0: 20,
	1: 28,
	2: 26,
	3: 34,
	6: 30,
	7: 36,
	8: 38,
}

// restricted to the formats of baseSizes, waveform formats are not decoded
var colorFormats = map[int]bool{2: true, 3: true, 7: true, 8: true}

// Parses the header from the first bytes of a file. The buffer must hold at least Size12 bytes,
// fields introduced by LAS 1.3 and 1.4 are read only when the version asks for them and the
// buffer still has room for them.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < Size12 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrHeaderTooShort, len(buf))
	}

	h := &Header{}
	r := newLeExtractor(buf)

	h.Signature = r.fixedString(4)
	h.FileSourceID = r.uint16()
	h.GlobalEncoding = r.uint16()
	copy(h.ProjectGUID[:], r.bytes(16))
	h.VersionMajor = r.uint8()
	h.VersionMinor = r.uint8()
	h.SystemID = r.fixedString(32)
	h.GeneratingSoftware = r.fixedString(32)
	h.CreationDay = r.uint16()
	h.CreationYear = r.uint16()
	h.HeaderSize = r.uint16()
	h.PointOffset = r.uint32()
	h.VlrCount = r.uint32()
	h.PointFormatBits = r.uint8()
	h.PointSize = r.uint16()
	h.LegacyPointCount = r.uint32()
	for i := range h.LegacyPointsByReturn {
		h.LegacyPointsByReturn[i] = r.uint32()
	}

	h.ScaleX, h.ScaleY, h.ScaleZ = r.float64(), r.float64(), r.float64()
	h.OffsetX, h.OffsetY, h.OffsetZ = r.float64(), r.float64(), r.float64()

	// bounds are interleaved max/min per axis on disk
	h.MaxX, h.MinX = r.float64(), r.float64()
	h.MaxY, h.MinY = r.float64(), r.float64()
	h.MaxZ, h.MinZ = r.float64(), r.float64()

	if h.VersionMinor >= 3 && r.remaining() >= 8 {
		h.WaveOffset = r.uint64()
		if h.VersionMinor >= 4 && r.remaining() >= Size14-Size13 {
			h.EvlrOffset = r.uint64()
			h.EvlrCount = r.uint32()
			h.ExtendedPointCount = r.uint64()
			for i := range h.ExtendedPointsByReturn {
				h.ExtendedPointsByReturn[i] = r.uint64()
			}
		}
	}

	return h, nil
}

// Checks the header against the real size of the file. Problems are reported as messages,
// the caller decides whether they are fatal.
func (h *Header) Validate(fileSize uint64) []string {
	var errs []string
	if h.Signature != Signature {
		errs = append(errs, "Invalid file signature. Was expecting 'LASF', check the first four bytes of the file.")
	}
	if !h.Compressed() && uint64(h.PointOffset) > fileSize {
		errs = append(errs, "Invalid point offset - exceeds file size.")
	}
	if !h.Compressed() && !h.pointDataFits(fileSize) {
		errs = append(errs, fmt.Sprintf("Invalid point count: %d. Number of points too large for file size.", h.PointCount()))
	}
	if uint64(h.VlrOffset()) > fileSize {
		errs = append(errs, "Invalid VLR offset - exceeds file size.")
	}
	if !h.PointFormatSupported() {
		errs = append(errs, fmt.Sprintf("Unsupported LAS input point format: %d.", h.PointFormat()))
	}
	return errs
}

func (h *Header) pointDataFits(fileSize uint64) bool {
	count := h.PointCount()
	size := uint64(h.PointSize)
	if size != 0 && count > (^uint64(0)-uint64(h.PointOffset))/size {
		return false
	}
	return uint64(h.PointOffset)+count*size <= fileSize
}

// The VLR block starts right after the public header block
func (h *Header) VlrOffset() uint16 {
	return h.HeaderSize
}

func (h *Header) PointCount() uint64 {
	if h.VersionMinor >= 4 {
		return h.ExtendedPointCount
	}
	return uint64(h.LegacyPointCount)
}

func (h *Header) PointFormat() int {
	return int(h.PointFormatBits & FormatMask)
}

func (h *Header) Compressed() bool {
	return h.PointFormatBits&CompressionMask != 0
}

func (h *Header) PointFormatSupported() bool {
	_, ok := baseSizes[h.PointFormat()]
	return ok
}

// Size in bytes of the standard fields of a point record, 0 for unsupported formats
func (h *Header) BaseSize() int {
	return baseSizes[h.PointFormat()]
}

// Number of user defined bytes appended to every point record
func (h *Header) ExtraBytes() int {
	base := h.BaseSize()
	if base == 0 {
		return 0
	}
	return int(h.PointSize) - base
}

// Size of the public header block implied by the minor version
func (h *Header) Size() int {
	switch {
	case h.VersionMinor >= 4:
		return Size14
	case h.VersionMinor == 3:
		return Size13
	default:
		return Size12
	}
}

func (h *Header) MaxReturnCount() int {
	if h.VersionMinor >= 4 {
		return ReturnCount
	}
	return LegacyReturnCount
}

func (h *Header) VersionAtLeast(major, minor int) bool {
	if int(h.VersionMajor) != major {
		return int(h.VersionMajor) > major
	}
	return int(h.VersionMinor) >= minor
}

func (h *Header) Has14PointFormat() bool {
	return h.PointFormat() > 5
}

func (h *Header) HasTime() bool {
	return h.PointFormatSupported() && h.PointFormat() != 0 && h.PointFormat() != 2
}

func (h *Header) HasColor() bool {
	return colorFormats[h.PointFormat()]
}

func (h *Header) HasInfrared() bool {
	return h.PointFormat() == 8
}

func (h *Header) Bounds() geometry.BoundingBox {
	return geometry.NewBoundingBox(
		r3.Vector{X: h.MinX, Y: h.MinY, Z: h.MinZ},
		r3.Vector{X: h.MaxX, Y: h.MaxY, Z: h.MaxZ},
	)
}

// Scale factors applied to the integer record coordinates
func (h *Header) Scale() r3.Vector {
	return r3.Vector{X: h.ScaleX, Y: h.ScaleY, Z: h.ScaleZ}
}

func (h *Header) Offset() r3.Vector {
	return r3.Vector{X: h.OffsetX, Y: h.OffsetY, Z: h.OffsetZ}
}

// Formats the project GUID as 8-4-4-4-12 hex groups
func (h *Header) ProjectID() string {
	g := h.ProjectGUID
	return fmt.Sprintf("%x-%x-%x-%x-%x", g[0:4], g[4:6], g[6:8], g[8:10], g[10:16])
}

func (h *Header) Version() string {
	return fmt.Sprintf("%d.%d", h.VersionMajor, h.VersionMinor)
}

func (h *Header) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "LAS %s, format %d", h.Version(), h.PointFormat())
	if h.Compressed() {
		sb.WriteString(" (compressed)")
	}
	fmt.Fprintf(&sb, ", %d points of %d bytes", h.PointCount(), h.PointSize)
	fmt.Fprintf(&sb, ", bounds [%f %f %f] - [%f %f %f]", h.MinX, h.MinY, h.MinZ, h.MaxX, h.MaxY, h.MaxZ)
	return sb.String()
}
