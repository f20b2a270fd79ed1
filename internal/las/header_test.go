package las

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// builds a header buffer by hand at the documented byte offsets
func rawHeader(minor uint8, formatBits uint8, pointSize uint16, count uint64) []byte {
	size := Size12
	if minor == 3 {
		size = Size13
	} else if minor >= 4 {
		size = Size14
	}
	buf := make([]byte, size)
	le := binary.LittleEndian
	putF := func(off int, v float64) { le.PutUint64(buf[off:], math.Float64bits(v)) }

	copy(buf[0:], "LASF")
	buf[24] = 1
	buf[25] = minor
	copy(buf[26:], "synthetic")
	le.PutUint16(buf[94:], uint16(size))
	le.PutUint32(buf[96:], uint32(size))
	buf[104] = formatBits
	le.PutUint16(buf[105:], pointSize)
	if minor < 4 {
		le.PutUint32(buf[107:], uint32(count))
	}

	putF(131, 0.01)
	putF(139, 0.01)
	putF(147, 0.001)
	putF(155, 1000)
	putF(163, 2000)
	putF(171, 0)
	// max/min interleaved per axis
	putF(179, 10)
	putF(187, 1)
	putF(195, 20)
	putF(203, 2)
	putF(211, 30)
	putF(219, 3)

	if minor >= 4 {
		le.PutUint64(buf[247:], count)
	}
	return buf
}

func TestDecodeHeader12(t *testing.T) {
	h, err := DecodeHeader(rawHeader(2, 3, 34, 1234))
	require.NoError(t, err)

	assert.Equal(t, "LASF", h.Signature)
	assert.Equal(t, "1.2", h.Version())
	assert.Equal(t, "synthetic", h.SystemID)
	assert.Equal(t, 3, h.PointFormat())
	assert.False(t, h.Compressed())
	assert.Equal(t, uint64(1234), h.PointCount())
	assert.Equal(t, uint16(34), h.PointSize)
	assert.Equal(t, uint16(Size12), h.VlrOffset())

	assert.Equal(t, 0.01, h.ScaleX)
	assert.Equal(t, 0.001, h.ScaleZ)
	assert.Equal(t, 2000.0, h.OffsetY)
	assert.Equal(t, []float64{1, 2, 3}, []float64{h.MinX, h.MinY, h.MinZ})
	assert.Equal(t, []float64{10, 20, 30}, []float64{h.MaxX, h.MaxY, h.MaxZ})

	assert.Zero(t, h.WaveOffset)
	assert.Zero(t, h.ExtendedPointCount)
	assert.Equal(t, LegacyReturnCount, h.MaxReturnCount())
}

func TestDecodeHeader14UsesExtendedCount(t *testing.T) {
	buf := rawHeader(4, 6, 30, 5_000_000_000)
	binary.LittleEndian.PutUint32(buf[107:], 17)

	h, err := DecodeHeader(buf)
	require.NoError(t, err)

	assert.Equal(t, uint64(5_000_000_000), h.PointCount())
	assert.Equal(t, uint32(17), h.LegacyPointCount)
	assert.True(t, h.Has14PointFormat())
	assert.Equal(t, ReturnCount, h.MaxReturnCount())
	assert.True(t, h.VersionAtLeast(1, 4))
	assert.False(t, h.VersionAtLeast(2, 0))
}

func TestDecodeHeader14ShortBufferSkipsExtendedFields(t *testing.T) {
	buf := rawHeader(4, 6, 30, 99)
	h, err := DecodeHeader(buf[:Size13])
	require.NoError(t, err)

	assert.Zero(t, h.ExtendedPointCount)
	assert.Zero(t, h.PointCount())
}

func TestDecodeHeaderTooShort(t *testing.T) {
	_, err := DecodeHeader(make([]byte, Size12-1))
	assert.ErrorIs(t, err, ErrHeaderTooShort)
}

func TestEncodeDecodeHeader(t *testing.T) {
	for _, minor := range []uint8{2, 3, 4} {
		h, err := DecodeHeader(rawHeader(minor, 7, 36, 42))
		require.NoError(t, err)
		h.ProjectGUID = [16]byte{0xde, 0xad, 0xbe, 0xef, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
		h.GeneratingSoftware = "lasviewer"
		h.CreationYear = 2024

		encoded := EncodeHeader(h)
		assert.Len(t, encoded, h.Size(), "minor %d", minor)

		decoded, err := DecodeHeader(encoded)
		require.NoError(t, err)
		assert.Equal(t, h, decoded, "minor %d", minor)
	}
}

func TestCompressionBit(t *testing.T) {
	h, err := DecodeHeader(rawHeader(2, 0x80|3, 34, 10))
	require.NoError(t, err)

	assert.True(t, h.Compressed())
	assert.Equal(t, 3, h.PointFormat())
	assert.True(t, h.PointFormatSupported())
}

func TestPointFormatSupport(t *testing.T) {
	supported := map[int]int{0: 20, 1: 28, 2: 26, 3: 34, 6: 30, 7: 36, 8: 38}

	for bits := 0; bits < 256; bits++ {
		h := &Header{PointFormatBits: uint8(bits)}
		format := bits & FormatMask
		size, ok := supported[format]

		assert.Equal(t, ok, h.PointFormatSupported(), "format bits %d", bits)
		assert.Equal(t, size, h.BaseSize(), "format bits %d", bits)
	}
}

func TestFormatCapabilities(t *testing.T) {
	tests := []struct {
		format   uint8
		time     bool
		color    bool
		infrared bool
	}{
		{0, false, false, false},
		{1, true, false, false},
		{2, false, true, false},
		{3, true, true, false},
		{6, true, false, false},
		{7, true, true, false},
		{8, true, true, true},
	}

	for _, tt := range tests {
		h := &Header{PointFormatBits: tt.format}
		assert.Equal(t, tt.time, h.HasTime(), "format %d time", tt.format)
		assert.Equal(t, tt.color, h.HasColor(), "format %d color", tt.format)
		assert.Equal(t, tt.infrared, h.HasInfrared(), "format %d infrared", tt.format)
	}
}

func TestUnsupportedFormatsHaveNoCapabilities(t *testing.T) {
	for _, format := range []uint8{4, 5, 9, 10, 11, 15} {
		h := &Header{PointFormatBits: format}
		assert.False(t, h.PointFormatSupported(), "format %d", format)
		assert.False(t, h.HasTime(), "format %d time", format)
		assert.False(t, h.HasColor(), "format %d color", format)
		assert.False(t, h.HasInfrared(), "format %d infrared", format)
	}
}

func TestExtraBytes(t *testing.T) {
	h := &Header{PointFormatBits: 1, PointSize: 32}
	assert.Equal(t, 4, h.ExtraBytes())

	h = &Header{PointFormatBits: 5, PointSize: 63}
	assert.Equal(t, 0, h.ExtraBytes())
}

func TestValidate(t *testing.T) {
	valid, err := DecodeHeader(rawHeader(2, 1, 28, 100))
	require.NoError(t, err)
	fileSize := uint64(Size12 + 100*28)

	t.Run("clean", func(t *testing.T) {
		assert.Empty(t, valid.Validate(fileSize))
	})

	t.Run("signature", func(t *testing.T) {
		h := *valid
		h.Signature = "LASX"
		assert.Equal(t, []string{
			"Invalid file signature. Was expecting 'LASF', check the first four bytes of the file.",
		}, h.Validate(fileSize))
	})

	t.Run("point offset", func(t *testing.T) {
		h := *valid
		h.PointOffset = uint32(fileSize) + 1
		errs := h.Validate(fileSize)
		assert.Contains(t, errs, "Invalid point offset - exceeds file size.")
		assert.Contains(t, errs, "Invalid point count: 100. Number of points too large for file size.")
	})

	t.Run("point count", func(t *testing.T) {
		h := *valid
		h.LegacyPointCount = 101
		assert.Equal(t, []string{
			"Invalid point count: 101. Number of points too large for file size.",
		}, h.Validate(fileSize))
	})

	t.Run("point count overflow", func(t *testing.T) {
		h := *valid
		h.VersionMinor = 4
		h.ExtendedPointCount = math.MaxUint64 / 2
		errs := h.Validate(fileSize)
		assert.Contains(t, errs, "Invalid point count: 9223372036854775807. Number of points too large for file size.")
	})

	t.Run("compressed skips size checks", func(t *testing.T) {
		h := *valid
		h.PointFormatBits |= CompressionMask
		h.LegacyPointCount = 1_000_000
		assert.Empty(t, h.Validate(fileSize))
	})

	t.Run("vlr offset", func(t *testing.T) {
		h := *valid
		errs := h.Validate(100)
		assert.Len(t, errs, 3)
		assert.Contains(t, errs, "Invalid VLR offset - exceeds file size.")
	})

	t.Run("unsupported format", func(t *testing.T) {
		h := *valid
		h.PointFormatBits = 5
		assert.Equal(t, []string{"Unsupported LAS input point format: 5."}, h.Validate(fileSize))
	})
}

func TestProjectID(t *testing.T) {
	h := &Header{ProjectGUID: [16]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0, 1, 2, 3, 4, 5, 6, 7}}
	assert.Equal(t, "01234567-89ab-cdef-0001-020304050607", h.ProjectID())
}
