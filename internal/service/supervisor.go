package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocron "github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/CZERTAINLY/dispatcher/internal/dispatch"
	"github.com/CZERTAINLY/dispatcher/internal/metrics"
	"github.com/CZERTAINLY/dispatcher/internal/model"
)

var (
	ErrRunInProgress = errors.New("run in progress")
	ErrJobsFailed    = errors.New("some jobs have failed")
)

type Supervisor struct {
	dispatcher *dispatch.Dispatcher
	uploaders  []model.Uploader
	oneshot    bool
	scheduler  gocron.Scheduler
	metrics    *metrics.Server
	start      chan struct{}
	results    chan runResult
	running    bool // owned by the Do loop
	wg         sync.WaitGroup
}

type runResult struct {
	report dispatch.Report
	err    error
}

func NewSupervisor(ctx context.Context, cfg model.Config) (*Supervisor, error) {
	svcCfg := cfg.Service
	uploaders, err := uploaders(ctx, svcCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing uploaders: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}

	var supervisor = &Supervisor{}
	if svcCfg.Mode == model.ServiceModeTimer {
		supervisor.scheduler, err = newScheduler(ctx, svcCfg.Schedule, supervisor.Start)
		if err != nil {
			return nil, fmt.Errorf("timer mode failed: %w", err)
		}
	}
	if svcCfg.Metrics != nil && svcCfg.Metrics.Enabled {
		supervisor.metrics = metrics.NewServer(svcCfg.Metrics.Addr, reg)
	}

	supervisor.dispatcher = dispatch.New(cfg.Jobs,
		dispatch.WithParallelism(svcCfg.Parallelism),
		dispatch.WithRecorder(collector),
	)
	supervisor.uploaders = uploaders
	supervisor.oneshot = svcCfg.Mode != model.ServiceModeTimer
	supervisor.start = make(chan struct{}, 1)
	supervisor.results = make(chan runResult, 1)

	return supervisor, nil
}

// WithUploaders replaces the uploaders of an initialized Supervisor.
// This method exists for a unit testing only.
func (s *Supervisor) WithUploaders(ctx context.Context, uploaders ...model.Uploader) *Supervisor {
	s.closeUploaders(ctx)
	s.uploaders = uploaders
	return s
}

// Start asks the supervisor to run all jobs. It never blocks, a request made
// while another one is pending is merged with it.
func (s *Supervisor) Start() {
	select {
	case s.start <- struct{}{}:
	default:
	}
}

// Do runs the supervisor event loop.
// It multiplexes three concerns:
//  1. Start triggers - launch a dispatcher run unless one is active.
//  2. Run results - upload the report; log or return failures.
//  3. Context cancellation - terminates the loop and begins shutdown.
//
// In manual mode a run is triggered on entry and its error is returned. In
// timer mode errors are only logged and the loop runs until ctx is cancelled.
// Shutdown (deferred order): wait for the active run -> close uploaders ->
// stop scheduler -> stop metrics server.
func (s *Supervisor) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a supervisor", "oneshot", s.oneshot)

	if s.metrics != nil {
		if err := s.metrics.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := s.metrics.Shutdown(shutdownCtx); err != nil {
				slog.ErrorContext(ctx, "shutting down metrics server has failed", "error", err)
			}
		}()
	}

	if s.scheduler != nil {
		s.scheduler.Start()
		defer func() {
			err := s.scheduler.Shutdown()
			if err != nil {
				slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
			}
		}()
	}

	defer func() {
		s.closeUploaders(ctx)
	}()

	defer func() {
		s.wg.Wait()
	}()

	if s.oneshot {
		s.Start()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.start:
			if s.running {
				slog.WarnContext(ctx, "ignoring start", "error", ErrRunInProgress)
				continue
			}
			s.running = true
			s.wg.Go(func() {
				report, err := s.dispatcher.Run(ctx)
				s.results <- runResult{report: report, err: err}
			})
		case result := <-s.results:
			s.running = false
			err := s.handleResult(ctx, result)
			if s.oneshot {
				return err
			}
			if err != nil {
				slog.ErrorContext(ctx, "run failed", "error", err)
			}
		}
	}
}

func (s *Supervisor) handleResult(ctx context.Context, result runResult) error {
	errs := []error{result.err}
	if result.report.Failed() {
		errs = append(errs, ErrJobsFailed)
	}

	var buf bytes.Buffer
	if err := result.report.AsJSON(&buf); err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}
	if err := s.upload(ctx, buf.Bytes()); err != nil {
		errs = append(errs, fmt.Errorf("upload failed: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Supervisor) closeUploaders(ctx context.Context) {
	for _, uploader := range s.uploaders {
		if closer, ok := uploader.(model.UploadCloser); ok {
			err := closer.Close()
			if err != nil {
				slog.ErrorContext(ctx, "closing uploader have failed", "error", err)
			}
		}
	}
}

func (s *Supervisor) upload(ctx context.Context, raw []byte) error {
	var errs []error
	for _, u := range s.uploaders {
		err := u.Upload(ctx, raw)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newScheduler(ctx context.Context, cfgp *model.TimerSchedule, startFunc func()) (gocron.Scheduler, error) {
	if cfgp == nil {
		return nil, errors.New("service.schedule is nil")
	}
	cfg := *cfgp
	var job gocron.JobDefinition
	switch {
	case cfg.Cron != "":
		_, err := model.ParseCron(cfg.Cron)
		if err != nil {
			return nil, fmt.Errorf("parsing service.schedule.cron: %w", err)
		}
		job = gocron.CronJob(cfg.Cron, false)
		slog.DebugContext(ctx, "successfully parsed", "cron", cfg.Cron)
	case cfg.Duration != "":
		d, err := model.ParseISODuration(cfg.Duration)
		if err != nil {
			return nil, fmt.Errorf("parsing service.schedule.duration: %w", err)
		}
		if d <= 0 {
			return nil, errors.New("service.schedule.duration must be positive")
		}
		slog.DebugContext(ctx, "successfully parsed", "duration", d.String())
		job = gocron.DurationJob(d)
	default:
		return nil, errors.New("both cron and duration are empty")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		job,
		gocron.NewTask(startFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}
