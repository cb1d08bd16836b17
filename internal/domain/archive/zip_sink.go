package archive

import (
	"archive/zip"
	"compress/flate"
	"errors"
	"io"
	"time"
)

// ZipSink writes entries as a streamed ZIP archive using maximum deflate compression.
type ZipSink struct {
	zw      *zip.Writer
	aborted error
	done    bool
}

func NewZipSink(w io.Writer) *ZipSink {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return &ZipSink{zw: zw}
}

func (z *ZipSink) CreateEntry(name string, modified time.Time) (io.Writer, error) {
	if z.aborted != nil {
		return nil, z.aborted
	}
	if z.done {
		return nil, errors.New("archive already finalized")
	}
	header := &zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	}
	if !modified.IsZero() {
		header.Modified = modified.UTC()
	}
	return z.zw.CreateHeader(header)
}

// Finalize writes the central directory.
func (z *ZipSink) Finalize() error {
	if z.aborted != nil {
		return z.aborted
	}
	if z.done {
		return nil
	}
	z.done = true
	return z.zw.Close()
}

// Abort stops the archive without writing the central directory.
func (z *ZipSink) Abort(cause error) {
	if cause == nil {
		cause = errors.New("archive aborted")
	}
	z.aborted = cause
}
