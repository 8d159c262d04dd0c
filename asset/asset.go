package asset

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Asset is one regular file found under a backup source.
type Asset interface {
	zerolog.LogObjectMarshaler
	Path() string    // path on disk
	RelPath() string // slash-separated path relative to the scanned root
	Name() string    // base name of the file
	Size() int64     // length in bytes
	ModTime() time.Time
	Open() (io.ReadCloser, error)
}
