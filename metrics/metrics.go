package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the backup engine collectors.
type Metrics struct {
	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	uploadedBytes     prometheus.Counter
	uploadRetries     prometheus.Counter
	retentionDeleted  prometheus.Counter
	retentionFailures prometheus.Counter
	ticksTotal        prometheus.Counter
	dispatchedTotal   prometheus.Counter
	coalescedTotal    prometheus.Counter
	flaggedTotal      prometheus.Counter
	slotsReleased     prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to
// expose them on the default handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudbackup_runs_total",
			Help: "Finished backup runs by terminal status",
		}, []string{"status"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cloudbackup_run_duration_seconds",
			Help:    "Wall time of finished backup runs",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		uploadedBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "cloudbackup_uploaded_bytes_total",
			Help: "Bytes uploaded to storage providers",
		}),
		uploadRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "cloudbackup_upload_retries_total",
			Help: "Upload attempts retried after a transient network failure",
		}),
		retentionDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "cloudbackup_retention_deleted_total",
			Help: "Remote entries deleted by retention",
		}),
		retentionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "cloudbackup_retention_failures_total",
			Help: "Remote entries retention failed to delete",
		}),
		ticksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "cloudbackup_scheduler_ticks_total",
			Help: "Scheduler evaluation ticks",
		}),
		dispatchedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "cloudbackup_scheduler_dispatched_total",
			Help: "Due jobs handed to the concurrency controller",
		}),
		coalescedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "cloudbackup_scheduler_coalesced_total",
			Help: "Due triggers dropped because the job was already running",
		}),
		flaggedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "cloudbackup_scheduler_flagged_total",
			Help: "Jobs flagged for a malformed schedule",
		}),
		slotsReleased: f.NewCounter(prometheus.CounterOpts{
			Name: "cloudbackup_slots_released_total",
			Help: "Execution slots released by the concurrency controller",
		}),
	}
}

// Nop returns collectors registered nowhere.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) RunFinished(status string, took time.Duration) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(took.Seconds())
}

func (m *Metrics) Uploaded(size int64) {
	m.uploadedBytes.Add(float64(size))
}

func (m *Metrics) UploadRetried() {
	m.uploadRetries.Inc()
}

func (m *Metrics) RetentionPruned(deleted, failed int) {
	m.retentionDeleted.Add(float64(deleted))
	m.retentionFailures.Add(float64(failed))
}

func (m *Metrics) Ticked(dispatched, coalesced, flagged int) {
	m.ticksTotal.Inc()
	m.dispatchedTotal.Add(float64(dispatched))
	m.coalescedTotal.Add(float64(coalesced))
	m.flaggedTotal.Add(float64(flagged))
}

func (m *Metrics) SlotReleased(string) {
	m.slotsReleased.Inc()
}

// SlotStats is the concurrency controller view exported as gauges.
type SlotStats func() (running, queued, limit int)

// RegisterSlots exposes controller occupancy as gauges.
func RegisterSlots(reg prometheus.Registerer, stats SlotStats) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "cloudbackup_slots_running",
			Help: "Executions currently holding a slot",
		}, func() float64 {
			running, _, _ := stats()
			return float64(running)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "cloudbackup_slots_queued",
			Help: "Admitted executions waiting for a slot",
		}, func() float64 {
			_, queued, _ := stats()
			return float64(queued)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "cloudbackup_slots_limit",
			Help: "Current concurrency limit",
		}, func() float64 {
			_, _, limit := stats()
			return float64(limit)
		}),
	)
}
