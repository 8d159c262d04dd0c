package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

var ErrSourceUnreadable = errors.New("source path unreadable")

// ScanDirectory enumerates the regular files under dirPath. The root itself
// must be a readable directory; entries below it that cannot be read are
// logged and skipped.
func ScanDirectory(ctx context.Context, dirPath string, logger zerolog.Logger) (iter.Seq[Asset], error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceUnreadable, dirPath)
	}
	dir, err := os.Open(dirPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	_, err = dir.ReadDir(1)
	dir.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}

	return func(yield func(Asset) bool) {
		var scannedCount int
		var statFiles int

		logger := logger.With().Str("dir", dirPath).Logger()
		logger.Info().Msg("start scanning for assets")
		defer func() {
			logger.Info().
				Int("scanned", statFiles).
				Int("scanned_success", scannedCount).
				Msg("done scanning assets")
		}()

		throttledLogger := logger.Sample(&zerolog.BurstSampler{
			Burst:  1,
			Period: 1 * time.Second,
		})
		err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}

			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("could not scan path")
				return nil
			}
			if d.IsDir() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("could not stat path")
				return nil
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			statFiles++

			newAsset, err := NewFromFS(dirPath, path, info)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("could not create asset")
				return nil
			}

			if !yield(newAsset) {
				return filepath.SkipAll
			}
			scannedCount++
			logger.Debug().Object("asset", newAsset).Msg("scanned asset")
			throttledLogger.Info().
				Int("scanned", statFiles).
				Int("scanned_success", scannedCount).
				Msg("scanning assets")

			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("could not scan path")
		}
	}, nil
}
