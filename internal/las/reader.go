package las

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrTruncatedPointData = errors.New("point data ended before the declared point count")
	ErrNoDecompressor     = errors.New("compressed point data needs a decompressor")
)

const readBufferSize = 1 << 20

// Produces raw point records one at a time. ReadRecord returns io.EOF after the last record.
type RecordReader interface {
	Header() *Header
	// Upper bound of the records ReadRecord can deliver
	StoredPointCount() uint64
	ReadRecord(record []byte) error
	Close() error
}

// Reads the uncompressed point records of a LAS file sequentially
type lasRecordReader struct {
	file    *os.File
	reader  *bufio.Reader
	header  *Header
	total   uint64
	stored  uint64
	read    uint64
	cleanup func()
}

// Opens the point records of the file. Compressed files are first expanded by the decompressor
// into a temporary LAS file which is removed on Close.
func (f *File) OpenRecords(ctx context.Context, decompressor Decompressor) (RecordReader, error) {
	if !f.Header.Compressed() {
		return openLasRecords(f, nil)
	}

	if decompressor == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDecompressor, f.Path)
	}

	lasPath, cleanup, err := decompressor.Decompress(ctx, f.Path)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", f.Path, err)
	}

	expanded, err := ReadFile(lasPath)
	if err != nil {
		cleanup()
		return nil, err
	}
	if expanded.Header.Compressed() {
		cleanup()
		return nil, fmt.Errorf("decompressor output %s is still compressed", lasPath)
	}

	return openLasRecords(expanded, cleanup)
}

func openLasRecords(lasFile *File, cleanup func()) (*lasRecordReader, error) {
	path, header := lasFile.Path, lasFile.Header
	closeOnError := func() {
		if cleanup != nil {
			cleanup()
		}
	}

	file, err := os.Open(path)
	if err != nil {
		closeOnError()
		return nil, err
	}

	if _, err := file.Seek(int64(header.PointOffset), io.SeekStart); err != nil {
		_ = file.Close()
		closeOnError()
		return nil, err
	}

	return &lasRecordReader{
		file:    file,
		reader:  bufio.NewReaderSize(file, readBufferSize),
		header:  header,
		total:   header.PointCount(),
		stored:  lasFile.StoredPointCount(),
		cleanup: cleanup,
	}, nil
}

func (r *lasRecordReader) Header() *Header {
	return r.header
}

func (r *lasRecordReader) StoredPointCount() uint64 {
	return r.stored
}

func (r *lasRecordReader) ReadRecord(record []byte) error {
	if r.read >= r.total {
		return io.EOF
	}
	if _, err := io.ReadFull(r.reader, record); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: read %d of %d", ErrTruncatedPointData, r.read, r.total)
		}
		return err
	}
	r.read++
	return nil
}

func (r *lasRecordReader) Close() error {
	err := r.file.Close()
	if r.cleanup != nil {
		r.cleanup()
		r.cleanup = nil
	}
	return err
}
