package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/storage"
)

// RetentionFailure is one entry that could not be deleted.
type RetentionFailure struct {
	Path string
	Err  error
}

type RetentionReport struct {
	Deleted  []string
	Kept     int
	Failures []RetentionFailure
}

func (r RetentionReport) MarshalZerologObject(e *zerolog.Event) {
	e.Int("deleted", len(r.Deleted))
	e.Int("kept", r.Kept)
	e.Int("failures", len(r.Failures))
}

// RetentionWindow resolves the retention of a job: its own value, or the
// settings default when the job has none. Zero disables pruning.
func RetentionWindow(jobDays, defaultDays int) time.Duration {
	days := jobDays
	if days <= 0 {
		days = defaultDays
	}
	if days <= 0 {
		return 0
	}
	return time.Duration(days) * 24 * time.Hour
}

// Enforce deletes every entry under prefix last modified before now-window.
// Deletion failures are collected per entry and never stop the sweep; only a
// failing listing is returned as an error.
func Enforce(
	ctx context.Context,
	provider storage.Provider,
	prefix string,
	window time.Duration,
	now time.Time,
	logger zerolog.Logger,
) (RetentionReport, error) {
	report := RetentionReport{}
	if window <= 0 {
		return report, nil
	}

	entries, err := provider.List(ctx, prefix)
	if err != nil {
		return report, fmt.Errorf("could not list %q: %w", prefix, err)
	}

	cutoff := now.Add(-window)
	for _, entry := range entries {
		if !entry.ModTime.Before(cutoff) {
			report.Kept++
			continue
		}
		if err := provider.Delete(ctx, entry.Path); err != nil {
			logger.Warn().Err(err).Object("entry", entry).Msg("could not delete expired backup")
			report.Failures = append(report.Failures, RetentionFailure{Path: entry.Path, Err: err})
			continue
		}
		logger.Info().Object("entry", entry).Msg("deleted expired backup")
		report.Deleted = append(report.Deleted, entry.Path)
	}
	return report, nil
}
