package ziparchiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/asset"
	"github.com/stupid-simple/cloudbackup/ziparchiver/zipwriter"
)

var ErrArchiveTooLarge = errors.New("archive exceeds maximum size")

// ArchiveStats describes a written archive.
type ArchiveStats struct {
	Files        int
	OriginalSize int64 // Sum of the archived file sizes.
	ArchiveSize  int64 // Bytes of the zip stream.
	Compressed   bool
}

// Ratio is ArchiveSize/OriginalSize for compressed archives, nil otherwise.
func (s ArchiveStats) Ratio() *float64 {
	if !s.Compressed || s.OriginalSize == 0 {
		return nil
	}
	r := float64(s.ArchiveSize) / float64(s.OriginalSize)
	return &r
}

func (s ArchiveStats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("files", s.Files)
	e.Str("original_size", units.HumanSize(float64(s.OriginalSize)))
	e.Str("archive_size", units.HumanSize(float64(s.ArchiveSize)))
	if r := s.Ratio(); r != nil {
		e.Float64("ratio", *r)
	}
}

// WriteArchive writes assets as a zip stream to w. Entries are named by their
// path relative to the scanned root. A file that cannot be opened is logged
// and left out; a read error mid-copy or exceeding the maximum archive size
// aborts.
func WriteArchive(
	ctx context.Context,
	w io.Writer,
	assets iter.Seq[asset.Asset],
	logger zerolog.Logger,
	opts ...WriteOption,
) (ArchiveStats, error) {
	o := writeOptions{}
	for _, applyOpts := range opts {
		applyOpts(&o)
	}

	zipFile := zipwriter.New(w, o.level)
	stats := ArchiveStats{Compressed: zipFile.Compressed()}

	startTime := time.Now()
	defer func() {
		tookSeconds := time.Since(startTime).Seconds()
		if ctx.Err() != nil {
			logger.Info().Object("archive", stats).Float64("seconds", tookSeconds).Msg("cancelled archive")
		} else {
			logger.Info().Object("archive", stats).Float64("seconds", tookSeconds).Msg("done writing archive")
		}
	}()

	for a := range assets {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if o.maxArchiveBytes > 0 && stats.OriginalSize+a.Size() > o.maxArchiveBytes {
			return stats, fmt.Errorf("%w: adding %s would exceed %s",
				ErrArchiveTooLarge, a.RelPath(), units.HumanSize(float64(o.maxArchiveBytes)))
		}

		reader, err := a.Open()
		if err != nil {
			logger.Warn().Err(err).Object("asset", a).Msg("could not read asset, skipping")
			continue
		}
		n, err := writeAsset(zipFile, a, reader, logger)
		if err != nil {
			return stats, fmt.Errorf("could not archive %s: %w", a.RelPath(), err)
		}
		stats.Files++
		stats.OriginalSize += n
	}

	if err := zipFile.Close(); err != nil {
		return stats, fmt.Errorf("could not finish archive: %w", err)
	}
	stats.ArchiveSize = zipFile.Written()
	return stats, nil
}

func writeAsset(zipFile *zipwriter.Writer, a asset.Asset, reader io.ReadCloser, logger zerolog.Logger) (int64, error) {
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close asset file")
		}
	}()

	w, err := zipFile.Create(a.RelPath(), a.ModTime(), a.Size())
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, reader)
	if err != nil {
		return n, err
	}
	logger.Debug().Object("asset", a).Msg("archived asset")
	return n, nil
}
