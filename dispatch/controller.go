package dispatch

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotAdmitted is returned by Submit when the job is not active, usually
// because an execution of it is already running.
var ErrNotAdmitted = errors.New("job not admitted")

// Store is the job status persistence the controller needs.
type Store interface {
	// AdmitJob atomically flips an active job to running, storing nextRun when non-nil.
	AdmitJob(ctx context.Context, id string, nextRun *time.Time) (bool, error)
	// ResetJob flips a running job back to active. The controller calls it
	// once per admission.
	ResetJob(ctx context.Context, id string) (bool, error)
}

// ExecuteFunc runs one admitted job to completion, including its ledger writes.
type ExecuteFunc func(ctx context.Context, jobID string) error

type Request struct {
	JobID   string
	Due     time.Time
	NextRun *time.Time
}

type ControllerParams struct {
	Store   Store
	Execute ExecuteFunc
	Logger  zerolog.Logger
	Limit   int

	// OnRelease, when set, is called once for every released slot.
	OnRelease func(jobID string)
}

func NewController(params ControllerParams) *Controller {
	return &Controller{
		store:     params.Store,
		execute:   params.Execute,
		logger:    params.Logger,
		limit:     clampLimit(params.Limit),
		onRelease: params.OnRelease,
	}
}

// Controller bounds in-flight executions and queues the rest by due time.
type Controller struct {
	store     Store
	execute   ExecuteFunc
	logger    zerolog.Logger
	onRelease func(jobID string)

	mu       sync.Mutex
	limit    int
	running  int
	pending  queue
	seq      uint64
	released uint64
	wg       sync.WaitGroup
}

// Execution is a handle on one admitted run.
type Execution struct {
	JobID string
	ctx   context.Context
	done  chan struct{}
	err   error
}

// Done is closed once the run finished and its slot was released.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the run finished and returns its error.
func (e *Execution) Wait() error {
	<-e.done
	return e.err
}

type Stats struct {
	Running  int
	Queued   int
	Limit    int
	Released uint64
}

func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("running", s.Running)
	e.Int("queued", s.Queued)
	e.Int("limit", s.Limit)
}

func clampLimit(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// SetLimit resizes the slot pool. Lowering it never interrupts running work.
func (c *Controller) SetLimit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n = clampLimit(n)
	if n != c.limit {
		c.logger.Info().Int("from", c.limit).Int("to", n).Msg("concurrency limit changed")
	}
	c.limit = n
	c.startPendingLocked()
}

// Submit admits req.JobID and queues it for a slot. Admission flips the job to
// running in the store; ErrNotAdmitted means another execution holds it.
// The due time is consumed at admission: req.NextRun is stored with the
// running flag, before the job gets a slot.
// Cancelling ctx after Submit returns does not stop the execution.
func (c *Controller) Submit(ctx context.Context, req Request) (*Execution, error) {
	ok, err := c.store.AdmitJob(ctx, req.JobID, req.NextRun)
	if err != nil {
		return nil, fmt.Errorf("could not admit job %s: %w", req.JobID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAdmitted, req.JobID)
	}

	exec := &Execution{
		JobID: req.JobID,
		ctx:   context.WithoutCancel(ctx),
		done:  make(chan struct{}),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	heap.Push(&c.pending, &queued{exec: exec, due: req.Due, seq: c.seq})
	c.wg.Add(1)
	c.logger.Debug().Str("job", req.JobID).Time("due", req.Due).Msg("admitted job")
	c.startPendingLocked()
	return exec, nil
}

func (c *Controller) startPendingLocked() {
	for c.running < c.limit && c.pending.Len() > 0 {
		next := heap.Pop(&c.pending).(*queued)
		c.running++
		go c.run(next.exec)
	}
}

func (c *Controller) run(exec *Execution) {
	logger := c.logger.With().Str("job", exec.JobID).Logger()
	var once sync.Once
	release := func() {
		once.Do(func() {
			c.release(exec.JobID)
			close(exec.done)
		})
	}

	defer c.wg.Done()
	defer release()
	defer func() {
		// The only running -> active transition of an admitted job. It runs
		// after the executor returned, retention included.
		if _, err := c.store.ResetJob(context.Background(), exec.JobID); err != nil {
			logger.Error().Err(err).Msg("could not reset job status")
		}
	}()
	defer func() {
		if rec := recover(); rec != nil {
			exec.err = fmt.Errorf("execution panicked: %v", rec)
			logger.Error().Err(exec.err).Msg("recovered execution fault")
		}
	}()

	exec.err = c.execute(exec.ctx, exec.JobID)
}

func (c *Controller) release(jobID string) {
	c.mu.Lock()
	c.running--
	c.released++
	c.startPendingLocked()
	c.mu.Unlock()

	if c.onRelease != nil {
		c.onRelease(jobID)
	}
}

// Wait blocks until every admitted execution finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Running:  c.running,
		Queued:   c.pending.Len(),
		Limit:    c.limit,
		Released: c.released,
	}
}
