package las

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointDecoderRoundTrip(t *testing.T) {
	in := RawPoint{
		X: -12345, Y: 67890, Z: 42,
		Intensity:      4096,
		Classification: 6,
		GpsTime:        123456.789,
		Red:            65535, Green: 32768, Blue: 1,
		NIR: 777,
	}

	for _, format := range []int{0, 1, 2, 3, 6, 7, 8} {
		decoder, err := NewPointDecoder(format)
		require.NoError(t, err)
		assert.Equal(t, format, decoder.Format())

		record := make([]byte, decoder.BaseSize()+3)
		require.NoError(t, EncodePoint(format, &in, record))

		var out RawPoint
		require.NoError(t, decoder.Decode(record, &out))

		assert.Equal(t, in.X, out.X, "format %d", format)
		assert.Equal(t, in.Y, out.Y, "format %d", format)
		assert.Equal(t, in.Z, out.Z, "format %d", format)
		assert.Equal(t, in.Intensity, out.Intensity, "format %d", format)
		assert.Equal(t, in.Classification, out.Classification, "format %d", format)

		h := &Header{PointFormatBits: uint8(format)}
		if h.HasTime() {
			assert.Equal(t, in.GpsTime, out.GpsTime, "format %d", format)
		} else {
			assert.Zero(t, out.GpsTime, "format %d", format)
		}
		if h.HasColor() {
			assert.Equal(t, []uint16{in.Red, in.Green, in.Blue}, []uint16{out.Red, out.Green, out.Blue}, "format %d", format)
		} else {
			assert.Zero(t, out.Red, "format %d", format)
		}
		if h.HasInfrared() {
			assert.Equal(t, in.NIR, out.NIR)
		} else {
			assert.Zero(t, out.NIR, "format %d", format)
		}
	}
}

func TestLegacyClassificationMasksFlags(t *testing.T) {
	decoder, err := NewPointDecoder(1)
	require.NoError(t, err)

	record := make([]byte, 28)
	// synthetic, key-point and withheld flags live in the top three bits
	record[15] = 0xE0 | 2

	var p RawPoint
	require.NoError(t, decoder.Decode(record, &p))
	assert.Equal(t, uint8(2), p.Classification)
}

func TestExtendedClassificationByte(t *testing.T) {
	decoder, err := NewPointDecoder(6)
	require.NoError(t, err)

	record := make([]byte, 30)
	record[15] = 0xFF
	record[16] = 200

	var p RawPoint
	require.NoError(t, decoder.Decode(record, &p))
	assert.Equal(t, uint8(200), p.Classification)
}

func TestPointDecoderErrors(t *testing.T) {
	_, err := NewPointDecoder(5)
	assert.ErrorIs(t, err, ErrUnsupportedPointFormat)

	decoder, err := NewPointDecoder(3)
	require.NoError(t, err)
	err = decoder.Decode(make([]byte, 33), &RawPoint{})
	assert.ErrorIs(t, err, ErrShortPointRecord)

	err = EncodePoint(9, &RawPoint{}, make([]byte, 64))
	assert.ErrorIs(t, err, ErrUnsupportedPointFormat)
}
