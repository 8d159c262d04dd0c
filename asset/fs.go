package asset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"
)

const fourGiB = 4 << 30

var ErrMaxSizeExceeded = errors.New("file too large")

// NewFromFS builds an asset for the regular file at path, found under root.
func NewFromFS(root string, path string, info fs.FileInfo) (Asset, error) {
	mode := info.Mode()
	if !mode.IsRegular() {
		return nil, errors.New("not a regular file")
	}

	if info.Size() > fourGiB {
		return nil, fmt.Errorf("%w: current size %s, maximum %s",
			ErrMaxSizeExceeded, units.BytesSize(float64(info.Size())), units.BytesSize(fourGiB))
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, err
	}

	return &fsAsset{
		path: path,
		rel:  filepath.ToSlash(rel),
		info: info,
	}, nil
}

type fsAsset struct {
	path string
	rel  string
	info fs.FileInfo
}

// Name implements Asset.
func (a *fsAsset) Name() string {
	return a.info.Name()
}

// Size implements Asset.
func (a *fsAsset) Size() int64 {
	return a.info.Size()
}

// ModTime implements Asset.
func (a *fsAsset) ModTime() time.Time {
	return a.info.ModTime()
}

// MarshalZerologObject implements Asset.
func (a *fsAsset) MarshalZerologObject(e *zerolog.Event) {
	e.Str("path", a.rel)
	e.Int64("size", a.info.Size())
}

// Path implements Asset.
func (a *fsAsset) Path() string {
	return a.path
}

// RelPath implements Asset.
func (a *fsAsset) RelPath() string {
	return a.rel
}

// Open implements Asset.
func (a *fsAsset) Open() (io.ReadCloser, error) {
	return os.Open(a.path)
}
