package zipwriter

import (
	"archive/zip"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

// NoCompression stores entries as is.
const NoCompression = 0

// Writer wraps a zip.Writer, counting the archive bytes it emits.
// Entries are deflated at level, or stored when level is NoCompression.
type Writer struct {
	counter *countingWriter
	writer  *zip.Writer
	method  uint16
}

func New(w io.Writer, level int) *Writer {
	counter := &countingWriter{w: w}
	zw := zip.NewWriter(counter)

	method := zip.Store
	if level != NoCompression {
		method = zip.Deflate
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
	}

	return &Writer{
		counter: counter,
		writer:  zw,
		method:  method,
	}
}

// Create adds a file entry named name and returns its content writer.
func (z *Writer) Create(name string, modTime time.Time, size int64) (io.Writer, error) {
	return z.writer.CreateHeader(&zip.FileHeader{
		Name:               name,
		Modified:           modTime,
		Method:             z.method,
		UncompressedSize64: uint64(size),
	})
}

// Written is the number of archive bytes emitted so far.
func (z *Writer) Written() int64 {
	return z.counter.n
}

// Compressed reports whether entries are deflated.
func (z *Writer) Compressed() bool {
	return z.method == zip.Deflate
}

// Close writes the central directory. It does not close the underlying writer.
func (z *Writer) Close() error {
	return z.writer.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
