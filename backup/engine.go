package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/stupid-simple/cloudbackup/asset"
	"github.com/stupid-simple/cloudbackup/database"
	"github.com/stupid-simple/cloudbackup/encryption"
	"github.com/stupid-simple/cloudbackup/fileutils"
	"github.com/stupid-simple/cloudbackup/metrics"
	"github.com/stupid-simple/cloudbackup/storage"
	"github.com/stupid-simple/cloudbackup/ziparchiver"
)

// ErrEmptySource is returned when a source directory has nothing to archive.
var ErrEmptySource = errors.New("source contains no readable files")

const objectTimeFormat = "20060102T150405Z"

// Store is the persistence an execution reads and writes.
type Store interface {
	GetJob(ctx context.Context, id string) (*database.BackupJob, error)
	GetSettings(ctx context.Context) (database.Settings, error)
	StartRun(ctx context.Context, jobID string, startedAt time.Time) (*database.BackupHistory, error)
	FinishRun(ctx context.Context, run *database.BackupHistory) error
	SetLastRun(ctx context.Context, id string, lastRun time.Time) error
}

// Providers resolves managed storage clients by provider id.
type Providers interface {
	Get(ctx context.Context, id string) (storage.Provider, error)
}

type EngineParams struct {
	Store     Store
	Providers Providers
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

func NewEngine(params EngineParams, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	m := params.Metrics
	if m == nil {
		m = metrics.Nop()
	}
	return &Engine{
		store:     params.Store,
		providers: params.Providers,
		logger:    params.Logger,
		metrics:   m,
		o:         o,
	}
}

// Engine runs one admitted job: archive, upload, record, prune.
type Engine struct {
	store     Store
	providers Providers
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	o         options
}

type outcome struct {
	stats      ziparchiver.ArchiveStats
	objectPath string
	size       int64
	checksum   string
	provider   storage.Provider
	settings   database.Settings
}

// Execute runs jobID to a terminal history row. The returned error is the
// run failure, already recorded in the history. The job is left running;
// the caller that admitted it returns it to active.
func (e *Engine) Execute(ctx context.Context, jobID string) error {
	logger := e.logger.With().Str("job", jobID).Logger()

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("could not load job: %w", err)
	}

	startTime := e.o.now()
	run, err := e.store.StartRun(ctx, job.ID, startTime)
	if err != nil {
		return err
	}
	logger = logger.With().Str("run", run.ID).Logger()
	logger.Info().Object("job", job).Msg("starting backup")

	out, runErr := e.perform(ctx, job, startTime, logger)

	endTime := e.o.now()
	took := endTime.Sub(startTime)
	run.EndedAt = &endTime
	run.Duration = took.Milliseconds()
	if runErr != nil {
		run.Status = database.RunFailed
		run.Message = runErr.Error()
	} else {
		run.Status = database.RunSuccess
		run.Size = out.size
		run.CompressionRatio = out.stats.Ratio()
		run.ObjectPath = out.objectPath
		run.Checksum = out.checksum
		run.Files = out.stats.Files
		run.Message = fmt.Sprintf("uploaded %d files (%s)", out.stats.Files, units.HumanSize(float64(out.size)))
	}

	if err := e.store.FinishRun(ctx, run); err != nil {
		logger.Error().Err(err).Msg("could not record run outcome")
	}
	e.metrics.RunFinished(string(run.Status), took)

	if runErr != nil {
		logger.Error().Err(runErr).Float64("seconds", took.Seconds()).Msg("backup failed")
		return runErr
	}

	logger.Info().Object("run", run).Object("archive", out.stats).Float64("seconds", took.Seconds()).Msg("backup done")
	if err := e.store.SetLastRun(ctx, job.ID, endTime); err != nil {
		logger.Error().Err(err).Msg("could not record last run")
	}

	window := RetentionWindow(job.RetentionDays, out.settings.RetentionDays)
	report, err := Enforce(ctx, out.provider, remotePrefix(job.RemotePath), window, endTime, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("could not enforce retention")
	} else if window > 0 {
		e.metrics.RetentionPruned(len(report.Deleted), len(report.Failures))
		logger.Info().Object("retention", report).Msg("retention enforced")
	}
	return nil
}

// perform builds and uploads the archive. Panics become run failures.
func (e *Engine) perform(ctx context.Context, job *database.BackupJob, startTime time.Time, logger zerolog.Logger) (out outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("backup panicked")
			err = fmt.Errorf("backup panicked: %v", rec)
		}
	}()

	out.settings, err = e.store.GetSettings(ctx)
	if err != nil {
		return out, err
	}

	scanned, err := asset.ScanDirectory(ctx, job.SourcePath, logger)
	if err != nil {
		return out, err
	}

	level := ziparchiver.NoCompression
	if job.Compression {
		level = out.settings.CompressionLevel
	}
	buf := &bytes.Buffer{}
	out.stats, err = ziparchiver.WriteArchive(
		ctx,
		buf,
		scanned,
		logger,
		ziparchiver.WithCompressionLevel(level),
		ziparchiver.WithMaxArchiveBytes(e.o.maxArchiveBytes),
	)
	if err != nil {
		return out, err
	}
	if out.stats.Files == 0 {
		return out, fmt.Errorf("%w: %s", ErrEmptySource, job.SourcePath)
	}

	payload := buf.Bytes()
	name := ObjectName(job.Name, startTime)
	if job.Encryption {
		payload, err = encryption.Seal(e.o.encryptionKey, payload)
		if err != nil {
			return out, fmt.Errorf("could not encrypt archive: %w", err)
		}
		name += encryption.Extension
	}

	out.provider, err = e.providers.Get(ctx, job.StorageProviderID)
	if err != nil {
		return out, err
	}

	out.objectPath = path.Join(remotePrefix(job.RemotePath), name)
	if err := e.upload(ctx, out.provider, out.objectPath, payload, logger); err != nil {
		return out, err
	}
	out.size = int64(len(payload))
	out.checksum = fileutils.Checksum(payload)
	e.metrics.Uploaded(out.size)
	return out, nil
}

// upload puts data at key, retrying network failures with capped
// exponential backoff.
func (e *Engine) upload(ctx context.Context, provider storage.Provider, key string, data []byte, logger zerolog.Logger) error {
	backoff := retry.NewExponential(e.o.initialBackoff)
	backoff = retry.WithCappedDuration(e.o.maxBackoff, backoff)
	backoff = retry.WithMaxRetries(uint64(e.o.uploadAttempts-1), backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := provider.Put(ctx, key, data)
		if err == nil {
			return nil
		}
		if !storage.IsRetryable(err) || attempt >= e.o.uploadAttempts {
			return fmt.Errorf("could not upload archive after %d attempts: %w", attempt, err)
		}
		logger.Warn().Err(err).Int("attempt", attempt).Str("key", key).Msg("upload failed, retrying")
		e.metrics.UploadRetried()
		return retry.RetryableError(err)
	})
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName is the archive name of a run of job started at t.
func ObjectName(job string, t time.Time) string {
	name := strings.Trim(unsafeNameChars.ReplaceAllString(job, "-"), "-")
	if name == "" {
		name = "backup"
	}
	return fmt.Sprintf("%s-%s.zip", name, t.UTC().Format(objectTimeFormat))
}

// remotePrefix normalises a job remote path to a bucket key prefix.
func remotePrefix(remotePath string) string {
	p := strings.Trim(path.Clean("/"+remotePath), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
