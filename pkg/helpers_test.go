package pkg

import (
	"path/filepath"
	"testing"

	"github.com/ecopia-map/lasviewer/internal/las"
	"github.com/stretchr/testify/require"
)

// writes a format 2 cloud of n points along the diagonal of (0,0,0)-(100,100,10)
func writeTestLas(t *testing.T, dir string, name string, n int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	w, err := las.CreateWriter(path, &las.Header{
		VersionMajor:    1,
		VersionMinor:    2,
		PointFormatBits: 2,
		ScaleX:          0.01,
		ScaleY:          0.01,
		ScaleZ:          0.01,
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n)
		p := las.RawPoint{
			X:         int32(frac * 10000),
			Y:         int32(frac * 10000),
			Z:         int32(frac * 1000),
			Intensity: uint16(i * 7),
			Red:       200,
			Green:     100,
			Blue:      50,
		}
		require.NoError(t, w.WritePoint(&p))
	}
	require.NoError(t, w.Close())
	return path
}
