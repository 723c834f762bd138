// Package dispatch runs a set of jobs with bounded parallelism and collects
// their outcomes into a Report.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/dispatcher/internal/job"
	"github.com/CZERTAINLY/dispatcher/internal/log"
	"github.com/CZERTAINLY/dispatcher/internal/metrics"
	"github.com/CZERTAINLY/dispatcher/internal/model"

	"golang.org/x/sync/errgroup"
)

// Recorder observes job lifecycle events, *metrics.Collector implements it.
type Recorder interface {
	RunStarted()
	JobStarted()
	JobFinished(outcome string, d time.Duration)
	JobFailed(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RunStarted()                          {}
func (nopRecorder) JobStarted()                          {}
func (nopRecorder) JobFinished(_ string, _ time.Duration) {}
func (nopRecorder) JobFailed(_ string)                   {}

// handle is the part of *job.Job driven by the dispatcher
type handle interface {
	ID() string
	PID() int
	State() job.State
	Started() time.Time
	Stopped() time.Time
	Start(ctx context.Context) error
	TryWait() (job.ExitStatus, bool, error)
	Wait(ctx context.Context) (job.ExitStatus, error)
	Close() error
}

type Dispatcher struct {
	specs       []model.JobSpec
	parallelism int
	poll        time.Duration
	recorder    Recorder
	newJob      func(command, argument string) handle
}

type Option func(*Dispatcher)

// WithParallelism limits the number of jobs running at once, values < 1 are ignored.
func WithParallelism(n int) Option {
	return func(d *Dispatcher) {
		if n >= 1 {
			d.parallelism = n
		}
	}
}

// WithPollInterval makes the dispatcher poll jobs with TryWait instead of
// blocking in Wait.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		d.poll = interval
	}
}

func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

func New(specs []model.JobSpec, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		specs:       append([]model.JobSpec(nil), specs...),
		parallelism: model.DefaultParallelism,
		recorder:    nopRecorder{},
		newJob: func(command, argument string) handle {
			return job.New(command, argument)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run starts every job and waits for all of them. A job which fails to spawn
// does not stop the others. The returned error joins the errors which
// prevented jobs from running or being observed, a non-zero exit is not one
// of them, see Report.Failed.
// When ctx is cancelled the running jobs are killed.
func (d *Dispatcher) Run(ctx context.Context) (Report, error) {
	d.recorder.RunStarted()
	rep := Report{
		Started: time.Now().UTC(),
		Results: make([]Result, len(d.specs)),
	}
	slog.DebugContext(ctx, "dispatching jobs", "jobs", len(d.specs), "parallelism", d.parallelism)

	var g errgroup.Group
	g.SetLimit(d.parallelism)
	for i, spec := range d.specs {
		g.Go(func() error {
			rep.Results[i] = d.runOne(ctx, spec)
			return nil
		})
	}
	_ = g.Wait() // goroutines do not return an error
	rep.Stopped = time.Now().UTC()

	var errs []error
	for _, res := range rep.Results {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", res.Name, res.err))
		}
	}
	return rep, errors.Join(errs...)
}

func (d *Dispatcher) runOne(ctx context.Context, spec model.JobSpec) Result {
	j := d.newJob(spec.Command, spec.Argument)
	res := Result{
		ID:       j.ID(),
		Name:     spec.Name,
		Command:  spec.Command,
		Argument: spec.Argument,
	}
	ctx = log.ContextAttrs(ctx, slog.Group("job",
		slog.String("name", spec.Name),
		slog.String("id", j.ID()),
	))

	if err := ctx.Err(); err != nil {
		res.setErr(metrics.OutcomeCanceled, err)
		d.recorder.JobFailed(res.Outcome)
		return res
	}

	timeout, err := spec.TimeoutDuration()
	if err != nil {
		res.setErr(metrics.OutcomeSpawnError, err)
		d.recorder.JobFailed(res.Outcome)
		return res
	}

	if err := j.Start(ctx); err != nil {
		slog.WarnContext(ctx, "job failed to start", "error", err)
		res.setErr(metrics.OutcomeSpawnError, err)
		d.recorder.JobFailed(res.Outcome)
		return res
	}
	d.recorder.JobStarted()
	res.PID = j.PID()
	res.Started = j.Started()

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	st, err := d.await(waitCtx, j)
	var canceled error
	if err != nil && waitCtx.Err() != nil && errors.Is(err, waitCtx.Err()) {
		if cerr := j.Close(); cerr != nil {
			// the child may still run, waiting for it could block forever
			slog.ErrorContext(ctx, "killing job failed", "error", cerr)
			res.TimedOut = ctx.Err() == nil
			res.Status = j.State().String()
			res.setErr(interruptedOutcome(res.TimedOut), errors.Join(err, cerr))
			d.recorder.JobFinished(res.Outcome, time.Since(res.Started))
			return res
		}
		// reaped by Close, returns immediately
		st, err = j.Wait(context.WithoutCancel(ctx))
		// a child exiting on its own right before the kill keeps its status
		if err == nil && st.Abnormal() {
			if ctx.Err() != nil {
				canceled = ctx.Err()
			} else {
				res.TimedOut = true
				slog.WarnContext(ctx, "job timed out: killed", "timeout", timeout.String())
			}
		}
	}
	res.Stopped = j.Stopped()
	duration := res.Stopped.Sub(res.Started)

	switch {
	case err != nil:
		res.Status = j.State().String()
		res.setErr(metrics.OutcomeWaitError, err)
	case canceled != nil:
		res.setStatus(st)
		res.setErr(metrics.OutcomeCanceled, canceled)
	default:
		res.setStatus(st)
	}
	d.recorder.JobFinished(res.Outcome, duration)
	slog.InfoContext(ctx, "job finished",
		"status", res.Status,
		"outcome", res.Outcome,
		"duration", duration.String(),
	)
	return res
}

func interruptedOutcome(timedOut bool) string {
	if timedOut {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeCanceled
}

// await returns the status of j, or ctx.Err() if j is still running when ctx
// ends.
func (d *Dispatcher) await(ctx context.Context, j handle) (job.ExitStatus, error) {
	if d.poll <= 0 {
		return j.Wait(ctx)
	}

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()
	for {
		st, ok, err := j.TryWait()
		if err != nil {
			return job.ExitStatus{}, err
		}
		if ok {
			return st, nil
		}
		select {
		case <-ctx.Done():
			// the child may have exited between two ticks
			st, ok, err := j.TryWait()
			switch {
			case err != nil:
				return job.ExitStatus{}, err
			case ok:
				return st, nil
			}
			return job.ExitStatus{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
