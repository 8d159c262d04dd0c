package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/database"
	"github.com/stupid-simple/cloudbackup/dispatch"
	"github.com/stupid-simple/cloudbackup/metrics"
	"github.com/stupid-simple/cloudbackup/scheduler"
	"github.com/stupid-simple/cloudbackup/storage"
)

type ServiceParams struct {
	DB           *database.Database
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
	Location     *time.Location // Schedules are evaluated here. Defaults to UTC.
	TickInterval time.Duration

	// Factory builds storage clients. Defaults to storage.NewFactory(StorageOptions...).
	Factory        storage.Factory
	StorageOptions []storage.Option
}

func NewService(params ServiceParams, opts ...Option) *Service {
	m := params.Metrics
	if m == nil {
		m = metrics.Nop()
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	factory := params.Factory
	if factory == nil {
		factory = storage.NewFactory(params.StorageOptions...)
	}

	registry := storage.NewRegistry(storage.RegistryParams{
		Loader:  params.DB,
		Logger:  params.Logger.With().Str("component", "storage").Logger(),
		Factory: factory,
	})
	engine := NewEngine(EngineParams{
		Store:     params.DB,
		Providers: registry,
		Logger:    params.Logger.With().Str("component", "engine").Logger(),
		Metrics:   m,
	}, opts...)
	controller := dispatch.NewController(dispatch.ControllerParams{
		Store:     params.DB,
		Execute:   engine.Execute,
		Logger:    params.Logger.With().Str("component", "dispatch").Logger(),
		Limit:     database.DefaultSettings().MaxConcurrentJobs,
		OnRelease: m.SlotReleased,
	})
	sched := scheduler.NewScheduler(scheduler.SchedulerParams{
		Store:      params.DB,
		Dispatcher: controller,
		Logger:     params.Logger.With().Str("component", "scheduler").Logger(),
		Metrics:    m,
		Interval:   params.TickInterval,
		Location:   loc,
		Now:        engine.o.now,
	})

	return &Service{
		db:         params.DB,
		registry:   registry,
		factory:    factory,
		engine:     engine,
		controller: controller,
		scheduler:  sched,
		logger:     params.Logger,
		loc:        loc,
	}
}

// Service is the operator surface of the backup engine. It owns the job
// registry, the storage clients, the controller and the scheduler.
type Service struct {
	db         *database.Database
	registry   *storage.Registry
	factory    storage.Factory
	engine     *Engine
	controller *dispatch.Controller
	scheduler  *scheduler.Scheduler
	logger     zerolog.Logger
	loc        *time.Location
}

// Start resets jobs interrupted by a previous process, then starts ticking.
func (s *Service) Start(ctx context.Context) error {
	reset, err := Recover(ctx, s.db, s.logger)
	if err != nil {
		return fmt.Errorf("could not recover interrupted jobs: %w", err)
	}
	if len(reset) > 0 {
		s.logger.Info().Strs("jobs", reset).Msg("recovered interrupted jobs")
	}

	settings, err := s.db.GetSettings(ctx)
	if err != nil {
		return err
	}
	s.controller.SetLimit(settings.MaxConcurrentJobs)
	s.scheduler.Start(ctx)
	return nil
}

// Stop stops ticking and waits for in-flight executions.
func (s *Service) Stop() {
	s.scheduler.Stop()
	s.controller.Wait()
}

// Tick runs one scheduler evaluation now.
func (s *Service) Tick(ctx context.Context) (scheduler.TickReport, error) {
	return s.scheduler.Tick(ctx, s.engine.o.now())
}

// SlotStats reports controller occupancy.
func (s *Service) SlotStats() (running, queued, limit int) {
	st := s.controller.Stats()
	return st.Running, st.Queued, st.Limit
}

func (s *Service) nextRun(schedule string) (*time.Time, error) {
	next, err := scheduler.NextRun(schedule, s.engine.o.now(), s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", database.ErrValidation, err)
	}
	return &next, nil
}

// CreateJob validates the schedule, computes the first due time and stores job.
func (s *Service) CreateJob(ctx context.Context, job *database.BackupJob) error {
	if job.Status != database.JobPaused {
		job.Status = database.JobActive
	}
	job.StatusMessage = ""
	next, err := s.nextRun(job.Schedule)
	if err != nil {
		return err
	}
	job.NextRun = next
	return s.db.CreateJob(ctx, job)
}

// UpdateJob rewrites a job definition. The next due time is recomputed and a
// failed job becomes active again.
func (s *Service) UpdateJob(ctx context.Context, job *database.BackupJob) error {
	next, err := s.nextRun(job.Schedule)
	if err != nil {
		return err
	}
	job.NextRun = next
	return s.db.UpdateJob(ctx, job)
}

func (s *Service) GetJob(ctx context.Context, id string) (*database.BackupJob, error) {
	return s.db.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context) ([]database.BackupJob, error) {
	return s.db.ListJobs(ctx)
}

func (s *Service) DeleteJob(ctx context.Context, id string) error {
	return s.db.DeleteJob(ctx, id)
}

// buildProvider checks a credential payload by building a client from it.
func (s *Service) buildProvider(variant string, config []byte) error {
	v, err := storage.ParseVariant(variant)
	if err != nil {
		return fmt.Errorf("%w: %w", database.ErrValidation, err)
	}
	if _, err := s.factory(v, config); err != nil {
		return fmt.Errorf("%w: %w", database.ErrValidation, err)
	}
	return nil
}

func (s *Service) CreateProvider(ctx context.Context, p *database.StorageProvider) error {
	if err := s.buildProvider(p.Variant, p.Config); err != nil {
		return err
	}
	return s.db.CreateProvider(ctx, p)
}

func (s *Service) GetProvider(ctx context.Context, id string) (*database.StorageProvider, error) {
	return s.db.GetProvider(ctx, id)
}

func (s *Service) ListProviders(ctx context.Context) ([]database.StorageProvider, error) {
	return s.db.ListProviders(ctx)
}

// RotateProviderCredentials replaces the payload of provider id wholesale.
// Runs that start afterwards use the new credentials.
func (s *Service) RotateProviderCredentials(ctx context.Context, id string, config []byte) error {
	p, err := s.db.GetProvider(ctx, id)
	if err != nil {
		return err
	}
	if err := s.buildProvider(p.Variant, config); err != nil {
		return err
	}
	if err := s.db.ReplaceProviderConfig(ctx, id, config); err != nil {
		return err
	}
	s.registry.Invalidate(id)
	s.logger.Info().Object("provider", p).Msg("rotated provider credentials")
	return nil
}

// DeleteProvider removes a provider no job references.
func (s *Service) DeleteProvider(ctx context.Context, id string) error {
	if err := s.db.DeleteProvider(ctx, id); err != nil {
		return err
	}
	s.registry.Invalidate(id)
	return nil
}

func (s *Service) CheckProvider(ctx context.Context, id string) storage.CheckResult {
	return s.registry.Check(ctx, id)
}

// CheckProviderConfig tests credentials that are not persisted. It never
// mutates state.
func (s *Service) CheckProviderConfig(ctx context.Context, variant string, config []byte) storage.CheckResult {
	v, err := storage.ParseVariant(variant)
	if err != nil {
		return storage.CheckResult{Error: err.Error(), Status: storage.HTTPStatus(err), Err: err}
	}
	return s.registry.CheckConfig(ctx, v, config)
}

func (s *Service) CheckAllProviders(ctx context.Context) ([]storage.CheckResult, error) {
	providers, err := s.db.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(providers))
	for _, p := range providers {
		ids = append(ids, p.ID)
	}
	return s.registry.CheckAll(ctx, ids), nil
}

// ListHistory returns runs newest first, of jobID when set. A limit <= 0
// returns all of them.
func (s *Service) ListHistory(ctx context.Context, jobID string, limit int) ([]database.BackupHistory, error) {
	opts := []database.ListRunsOption{database.WithListRunsLimit(limit)}
	if jobID != "" {
		opts = append(opts, database.WithListRunsJob(jobID))
	}
	return s.db.ListRuns(ctx, opts...)
}

func (s *Service) GetSettings(ctx context.Context) (database.Settings, error) {
	return s.db.GetSettings(ctx)
}

// SaveSettings stores a new settings row. The concurrency limit applies
// immediately; the scheduler rereads the rest at its next tick.
func (s *Service) SaveSettings(ctx context.Context, settings database.Settings) (database.Settings, error) {
	saved, err := s.db.SaveSettings(ctx, settings)
	if err != nil {
		return saved, err
	}
	s.controller.SetLimit(saved.MaxConcurrentJobs)
	return saved, nil
}

// RunNow admits jobID outside its schedule and waits for the run to finish.
// The job keeps its next due time. It returns the recorded run and the run
// failure, if any. Cancelling ctx stops waiting, not the run.
func (s *Service) RunNow(ctx context.Context, jobID string) (*database.BackupHistory, error) {
	exec, err := s.controller.Submit(ctx, dispatch.Request{JobID: jobID, Due: s.engine.o.now()})
	if errors.Is(err, dispatch.ErrNotAdmitted) {
		if _, getErr := s.db.GetJob(ctx, jobID); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("job %s is not active: %w", jobID, err)
	}
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-exec.Done():
	}
	runErr := exec.Wait()

	runs, err := s.db.ListRuns(ctx, database.WithListRunsJob(jobID), database.WithListRunsLimit(1))
	if err != nil {
		return nil, errors.Join(runErr, err)
	}
	if len(runs) == 0 {
		return nil, runErr
	}
	return &runs[0], runErr
}

// Prune applies the retention window of jobID to its remote path now.
func (s *Service) Prune(ctx context.Context, jobID string) (RetentionReport, error) {
	job, err := s.db.GetJob(ctx, jobID)
	if err != nil {
		return RetentionReport{}, err
	}
	settings, err := s.db.GetSettings(ctx)
	if err != nil {
		return RetentionReport{}, err
	}
	provider, err := s.registry.Get(ctx, job.StorageProviderID)
	if err != nil {
		return RetentionReport{}, err
	}

	logger := s.logger.With().Str("job", job.ID).Logger()
	window := RetentionWindow(job.RetentionDays, settings.RetentionDays)
	report, err := Enforce(ctx, provider, remotePrefix(job.RemotePath), window, s.engine.o.now(), logger)
	if err != nil {
		return report, err
	}
	s.engine.metrics.RetentionPruned(len(report.Deleted), len(report.Failures))
	return report, nil
}
