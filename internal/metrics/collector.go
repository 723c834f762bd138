// Package metrics exposes Prometheus metrics about dispatched jobs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels of dispatcher_jobs_finished_total.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeAbnormal   = "abnormal"
	OutcomeTimeout    = "timeout"
	OutcomeCanceled   = "canceled"
	OutcomeSpawnError = "spawn_error"
	OutcomeWaitError  = "wait_error"
)

// Collector records job lifecycle events.
type Collector struct {
	started  prometheus.Counter
	finished *prometheus.CounterVec
	running  prometheus.Gauge
	duration prometheus.Histogram
	runs     prometheus.Counter
}

// New creates the collectors and registers them to reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		started: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dispatcher_jobs_started_total",
				Help: "Total jobs whose process was spawned",
			},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatcher_jobs_finished_total",
				Help: "Total jobs by outcome",
			},
			[]string{"outcome"},
		),
		running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dispatcher_jobs_running",
				Help: "Jobs currently running",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dispatcher_job_duration_seconds",
				Help:    "Wall time between spawn and reap",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		runs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dispatcher_runs_total",
				Help: "Total dispatcher runs",
			},
		),
	}

	for _, col := range []prometheus.Collector{c.started, c.finished, c.running, c.duration, c.runs} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) RunStarted() {
	c.runs.Inc()
}

func (c *Collector) JobStarted() {
	c.started.Inc()
	c.running.Inc()
}

// JobFinished records a job which was started before.
func (c *Collector) JobFinished(outcome string, d time.Duration) {
	c.running.Dec()
	c.finished.WithLabelValues(outcome).Inc()
	c.duration.Observe(d.Seconds())
}

// JobFailed records a job which never started.
func (c *Collector) JobFailed(outcome string) {
	c.finished.WithLabelValues(outcome).Inc()
}
