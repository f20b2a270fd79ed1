package las

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
)

var (
	ErrInvalidHeader = errors.New("invalid las header")
)

// A LAS/LAZ file whose header has been read and checked against the file size
type File struct {
	Path     string
	Header   *Header
	Size     uint64
	Warnings []string
}

// Reads and validates the header of the given file. Validation problems do not fail the call,
// they are kept in Warnings so the caller can decide how strict to be.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, Size14)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s is empty", ErrHeaderTooShort, path)
		}
		return nil, err
	}

	header, err := DecodeHeader(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	lasFile := &File{
		Path:   path,
		Header: header,
		Size:   uint64(info.Size()),
	}
	lasFile.Warnings = header.Validate(lasFile.Size)
	for _, w := range lasFile.Warnings {
		glog.Warningf("%s: %s", path, w)
	}

	return lasFile, nil
}

// Returns an error listing the validation warnings, nil when the header is clean
func (f *File) ValidationError() error {
	if len(f.Warnings) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrInvalidHeader, f.Path, f.Warnings)
}

// Number of whole point records present in the file: the declared count, lowered to what fits
// between the point offset and the end of the file. Compressed files keep the declared count.
func (f *File) StoredPointCount() uint64 {
	h := f.Header
	count := h.PointCount()
	if h.Compressed() || h.PointSize == 0 {
		return count
	}
	if uint64(h.PointOffset) >= f.Size {
		return 0
	}
	return min(count, (f.Size-uint64(h.PointOffset))/uint64(h.PointSize))
}
