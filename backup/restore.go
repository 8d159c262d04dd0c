package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stupid-simple/cloudbackup/database"
	"github.com/stupid-simple/cloudbackup/encryption"
	"github.com/stupid-simple/cloudbackup/fileutils"
	"github.com/stupid-simple/cloudbackup/ziparchiver"
)

// ErrNotRestorable is returned for runs that did not upload an archive.
var ErrNotRestorable = errors.New("run has no restorable archive")

type RestoreParams struct {
	RunID     string
	DestDir   string
	Overwrite bool // Replace existing files whose content differs.
	DryRun    bool
}

// Restore downloads the archive of a successful run and extracts it into
// params.DestDir.
func (s *Service) Restore(ctx context.Context, params RestoreParams) (ziparchiver.ExtractStats, error) {
	logger := s.logger.With().Str("run", params.RunID).Str("dest", params.DestDir).Logger()
	if params.DryRun {
		logger = logger.With().Bool("dryrun", true).Logger()
	}

	startTime := time.Now()
	logger.Info().Msg("starting restore")
	defer func() {
		tookSeconds := time.Since(startTime).Seconds()
		if ctx.Err() != nil {
			logger.Info().Float64("seconds", tookSeconds).Msg("restore cancelled")
		} else {
			logger.Info().Float64("seconds", tookSeconds).Msg("restore done")
		}
	}()

	run, err := s.db.GetRun(ctx, params.RunID)
	if err != nil {
		return ziparchiver.ExtractStats{}, err
	}
	if run.Status != database.RunSuccess || run.ObjectPath == "" {
		return ziparchiver.ExtractStats{}, fmt.Errorf("%w: %s is %s", ErrNotRestorable, run.ID, run.Status)
	}
	job, err := s.db.GetJob(ctx, run.JobID)
	if err != nil {
		return ziparchiver.ExtractStats{}, err
	}

	if !params.DryRun {
		if err := prepareDestination(params.DestDir); err != nil {
			return ziparchiver.ExtractStats{}, err
		}
	}

	provider, err := s.registry.Get(ctx, job.StorageProviderID)
	if err != nil {
		return ziparchiver.ExtractStats{}, err
	}
	data, err := provider.Get(ctx, run.ObjectPath)
	if err != nil {
		return ziparchiver.ExtractStats{}, fmt.Errorf("could not download archive: %w", err)
	}
	if run.Checksum != "" && fileutils.Checksum(data) != run.Checksum {
		return ziparchiver.ExtractStats{}, fmt.Errorf("archive %s checksum mismatch", run.ObjectPath)
	}

	if strings.HasSuffix(run.ObjectPath, encryption.Extension) {
		data, err = encryption.Open(s.engine.o.encryptionKey, data)
		if err != nil {
			return ziparchiver.ExtractStats{}, fmt.Errorf("could not decrypt archive: %w", err)
		}
	}

	return ziparchiver.Extract(
		ctx,
		bytes.NewReader(data),
		int64(len(data)),
		params.DestDir,
		logger,
		ziparchiver.WithOverwrite(params.Overwrite),
		ziparchiver.WithExtractDryRun(params.DryRun),
	)
}

func prepareDestination(dir string) error {
	if !fileutils.Exists(dir) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create dest path: %w", err)
		}
	}
	if err := fileutils.VerifyWritable(dir); err != nil {
		return fmt.Errorf("dest path must be writable: %w", err)
	}
	return nil
}
