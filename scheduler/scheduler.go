package scheduler

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/database"
	"github.com/stupid-simple/cloudbackup/dispatch"
	"github.com/stupid-simple/cloudbackup/metrics"
)

const DefaultInterval = time.Minute

// Store is the job and settings persistence read at every tick.
type Store interface {
	GetSettings(ctx context.Context) (database.Settings, error)
	ListActiveJobs(ctx context.Context) ([]database.BackupJob, error)
	SetNextRun(ctx context.Context, id string, nextRun time.Time) error
	FlagJob(ctx context.Context, id string, message string) error
}

type Dispatcher interface {
	SetLimit(n int)
	Submit(ctx context.Context, req dispatch.Request) (*dispatch.Execution, error)
}

type SchedulerParams struct {
	Store      Store
	Dispatcher Dispatcher
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	Interval   time.Duration  // Defaults to DefaultInterval.
	Location   *time.Location // Schedules are evaluated here. Defaults to UTC.
	Now        func() time.Time
}

func NewScheduler(params SchedulerParams) *Scheduler {
	s := &Scheduler{
		store:      params.Store,
		dispatcher: params.Dispatcher,
		logger:     params.Logger,
		metrics:    params.Metrics,
		interval:   params.Interval,
		loc:        params.Location,
		now:        params.Now,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop()
	}
	return s
}

// Scheduler runs one evaluation tick per interval. Ticks never overlap.
type Scheduler struct {
	store      Store
	dispatcher Dispatcher
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	interval   time.Duration
	loc        *time.Location
	now        func() time.Time

	mu    sync.Mutex
	cron  *cron.Cron
	first sync.WaitGroup
}

type TickReport struct {
	Dispatched []string
	Coalesced  []string
	Flagged    []string
	Scheduled  []string
}

func (r TickReport) MarshalZerologObject(e *zerolog.Event) {
	e.Int("dispatched", len(r.Dispatched))
	e.Int("coalesced", len(r.Coalesced))
	e.Int("flagged", len(r.Flagged))
	e.Int("scheduled", len(r.Scheduled))
}

type dueJob struct {
	job  database.BackupJob
	next time.Time
}

// Tick evaluates every active job once against now.
//
// A due job gets its next due time computed first; the controller persists
// it together with the running flag, so an immediate second tick never
// dispatches it again. When admission is refused the next due time is still
// stored and the trigger is dropped. Due jobs are submitted earliest due
// first, so they take free slots in that order.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickReport, error) {
	report := TickReport{}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return report, err
	}
	s.dispatcher.SetLimit(settings.MaxConcurrentJobs)

	jobs, err := s.store.ListActiveJobs(ctx)
	if err != nil {
		return report, err
	}

	due := []dueJob{}
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		logger := s.logger.With().Str("job", job.ID).Str("name", job.Name).Logger()

		next, err := NextRun(job.Schedule, now, s.loc)
		if err != nil {
			logger.Warn().Err(err).Str("schedule", job.Schedule).Msg("flagging job with malformed schedule")
			if err := s.store.FlagJob(ctx, job.ID, err.Error()); err != nil {
				logger.Error().Err(err).Msg("could not flag job")
				continue
			}
			report.Flagged = append(report.Flagged, job.ID)
			continue
		}

		if job.NextRun == nil {
			if err := s.store.SetNextRun(ctx, job.ID, next); err != nil {
				logger.Error().Err(err).Msg("could not schedule job")
				continue
			}
			logger.Debug().Time("next_run", next).Msg("scheduled job")
			report.Scheduled = append(report.Scheduled, job.ID)
			continue
		}

		if job.NextRun.After(now) {
			continue
		}
		due = append(due, dueJob{job: job, next: next})
	}

	slices.SortStableFunc(due, func(a, b dueJob) int {
		if c := a.job.NextRun.Compare(*b.job.NextRun); c != 0 {
			return c
		}
		return strings.Compare(a.job.ID, b.job.ID)
	})

	for _, d := range due {
		if ctx.Err() != nil {
			break
		}
		job, next := d.job, d.next
		logger := s.logger.With().Str("job", job.ID).Str("name", job.Name).Logger()

		_, err := s.dispatcher.Submit(ctx, dispatch.Request{
			JobID:   job.ID,
			Due:     *job.NextRun,
			NextRun: &next,
		})
		switch {
		case errors.Is(err, dispatch.ErrNotAdmitted):
			if err := s.store.SetNextRun(ctx, job.ID, next); err != nil {
				logger.Error().Err(err).Msg("could not advance next run")
			}
			logger.Info().Time("next_run", next).Msg("job already running, trigger coalesced")
			report.Coalesced = append(report.Coalesced, job.ID)
		case err != nil:
			logger.Error().Err(err).Msg("could not dispatch job")
		default:
			logger.Info().Time("due", *job.NextRun).Time("next_run", next).Msg("dispatched job")
			report.Dispatched = append(report.Dispatched, job.ID)
		}
	}

	s.metrics.Ticked(len(report.Dispatched), len(report.Coalesced), len(report.Flagged))
	return report, nil
}

func (s *Scheduler) tick(ctx context.Context) {
	startTime := time.Now()
	report, err := s.Tick(ctx, s.now())
	logger := s.logger.With().Float64("seconds", time.Since(startTime).Seconds()).Logger()
	if err != nil {
		logger.Error().Err(err).Msg("scheduler tick failed")
		return
	}
	logger.Debug().Object("report", report).Msg("scheduler tick done")
}

// Start runs a first tick right away and then one per interval, each in the
// cron goroutine. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	cronLog := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cronLog),
	)
	// Shared by the first tick and the cron entry, so they cannot overlap either.
	job := cron.NewChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)).
		Then(cron.FuncJob(func() { s.tick(ctx) }))
	s.cron.Schedule(cron.Every(s.interval), job)
	s.cron.Start()
	s.first.Add(1)
	go func() {
		defer s.first.Done()
		job.Run()
	}()

	s.logger.Info().Dur("interval", s.interval).Str("location", s.loc.String()).Msg("scheduler started")
}

// Stop halts the tick loop and waits for a running tick to return.
// It does not wait for dispatched executions.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.first.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
