package ziparchiver

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	ErrUnsafePath = errors.New("archive entry escapes destination")

	errSkippedSameFile = errors.New("skipped same file")
	errSkippedModified = errors.New("skipped modified file")
)

type ExtractStats struct {
	Restored int
	Skipped  int
	Bytes    int64
}

func (s ExtractStats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("restored", s.Restored)
	e.Int("skipped", s.Skipped)
	e.Int64("bytes", s.Bytes)
}

// Extract restores the zip archive in r below destDir. Existing files with the
// same content are skipped; differing ones are only replaced WithOverwrite.
// Entries whose name would resolve outside destDir fail the whole extraction
// before anything is written.
func Extract(
	ctx context.Context,
	r io.ReaderAt,
	size int64,
	destDir string,
	logger zerolog.Logger,
	opts ...ExtractOption,
) (ExtractStats, error) {
	o := extractOptions{}
	for _, applyOpts := range opts {
		applyOpts(&o)
	}

	stats := ExtractStats{}
	defer func() {
		if ctx.Err() != nil {
			logger.Info().Object("restore", stats).Msg("cancelled restore")
		} else if stats.Restored == 0 {
			logger.Info().Object("restore", stats).Msg("no assets restored")
		} else {
			logger.Info().Object("restore", stats).Msg("done restoring assets")
		}
	}()

	reader, err := zip.NewReader(r, size)
	if errors.Is(err, zip.ErrInsecurePath) {
		return stats, fmt.Errorf("%w: %w", ErrUnsafePath, err)
	}
	if err != nil {
		return stats, fmt.Errorf("could not read archive: %w", err)
	}

	for _, f := range reader.File {
		if !filepath.IsLocal(filepath.FromSlash(f.Name)) {
			return stats, fmt.Errorf("%w: %q", ErrUnsafePath, f.Name)
		}
	}

	for _, f := range reader.File {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if f.FileInfo().IsDir() {
			continue
		}

		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		entryLogger := logger.With().Str("path", f.Name).Logger()

		n, err := restoreEntry(f, target, entryLogger, o)
		switch {
		case errors.Is(err, errSkippedSameFile):
			entryLogger.Info().Msg("file already present, skipping")
			stats.Skipped++
		case errors.Is(err, errSkippedModified):
			entryLogger.Info().Msg("found existing file. The file has been modified, skipping")
			stats.Skipped++
		case err != nil:
			return stats, fmt.Errorf("could not restore %s: %w", f.Name, err)
		default:
			entryLogger.Debug().Int64("bytes", n).Msg("restored asset")
			stats.Restored++
			stats.Bytes += n
		}
	}

	return stats, nil
}

func restoreEntry(f *zip.File, target string, logger zerolog.Logger, o extractOptions) (int64, error) {
	if _, err := os.Stat(target); err == nil {
		logger.Debug().Msg("found existing file")

		sum, err := fileCRC32(target)
		if err != nil {
			return 0, err
		}
		if sum == f.CRC32 {
			return 0, errSkippedSameFile
		}
		if !o.overwrite {
			return 0, errSkippedModified
		}
		logger.Info().Msg("found existing file, overwriting")
	} else if !os.IsNotExist(err) {
		return 0, err
	}

	if o.dryRun {
		return int64(f.UncompressedSize64), nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}

	src, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	w, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, src)
	if err = errors.Join(err, w.Close()); err != nil {
		return n, err
	}
	if !f.Modified.IsZero() {
		_ = os.Chtimes(target, f.Modified, f.Modified)
	}
	return n, nil
}

func fileCRC32(path string) (uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, file); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}
