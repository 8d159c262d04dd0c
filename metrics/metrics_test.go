package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/cloudbackup/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RunFinished("success", 2*time.Second)
	m.RunFinished("failed", time.Second)
	m.RunFinished("success", time.Second)
	m.Uploaded(1024)
	m.RetentionPruned(2, 1)
	m.Ticked(3, 1, 0)

	expected := `
# HELP cloudbackup_runs_total Finished backup runs by terminal status
# TYPE cloudbackup_runs_total counter
cloudbackup_runs_total{status="failed"} 1
cloudbackup_runs_total{status="success"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cloudbackup_runs_total"))

	count, err := testutil.GatherAndCount(reg, "cloudbackup_uploaded_bytes_total", "cloudbackup_scheduler_ticks_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRegisterSlots(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.RegisterSlots(reg, func() (int, int, int) { return 2, 5, 2 })

	expected := `
# HELP cloudbackup_slots_queued Admitted executions waiting for a slot
# TYPE cloudbackup_slots_queued gauge
cloudbackup_slots_queued 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cloudbackup_slots_queued"))
}

func TestServer_Endpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg).Uploaded(10)
	srv := httptest.NewServer(metrics.NewServer(":0", reg).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "cloudbackup_uploaded_bytes_total 10")
}
