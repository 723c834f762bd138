package metrics_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/CZERTAINLY/dispatcher/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)

	c.RunStarted()
	c.JobStarted()
	c.JobStarted()
	c.JobFinished(metrics.OutcomeSuccess, 20*time.Millisecond)
	c.JobFailed(metrics.OutcomeSpawnError)

	count, err := testutil.GatherAndCount(reg,
		"dispatcher_jobs_started_total",
		"dispatcher_jobs_finished_total",
		"dispatcher_jobs_running",
		"dispatcher_job_duration_seconds",
		"dispatcher_runs_total",
	)
	require.NoError(t, err)
	// finished has two label sets
	require.Equal(t, 6, count)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	require.Equal(t, 2.0, values["dispatcher_jobs_started_total"])
	require.Equal(t, 1.0, values["dispatcher_jobs_running"])
	require.Equal(t, 2.0, values["dispatcher_jobs_finished_total"])
	require.Equal(t, 1.0, values["dispatcher_runs_total"])
}

func TestCollectorRegisterTwice(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)
	_, err = metrics.New(reg)
	require.Error(t, err)
}

func TestServer(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)
	c.JobStarted()

	srv := metrics.NewServer("127.0.0.1:0", reg)
	require.NoError(t, srv.Start(t.Context()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	get := func(path string) (int, string) {
		resp, err := http.Get("http://" + srv.Addr() + path)
		require.NoError(t, err)
		defer func() {
			_ = resp.Body.Close()
		}()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/healthz")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok\n", body)

	code, body = get("/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "dispatcher_jobs_started_total 1")
}
