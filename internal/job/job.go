package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job owns one external process started as `command argument`.
// It is safe for concurrent use.
type Job struct {
	id       string
	command  string
	argument string

	mx      sync.Mutex
	state   State
	cmd     *exec.Cmd
	done    chan struct{}
	exit    reaped // written by reap before done is closed
	status  ExitStatus
	waitErr error
	started time.Time
	stopped time.Time
}

type reaped struct {
	state   *os.ProcessState
	err     error
	stopped time.Time
}

// New returns a Job which is not started yet. The command is not looked up
// until Start.
func New(command, argument string) *Job {
	return &Job{
		id:       uuid.NewString(),
		command:  command,
		argument: argument,
		state:    StateNotStarted,
	}
}

func (j *Job) ID() string       { return j.id }
func (j *Job) Command() string  { return j.command }
func (j *Job) Argument() string { return j.argument }

func (j *Job) State() State {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.state
}

// PID returns the process id or -1 if the job was never started.
func (j *Job) PID() int {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.cmd == nil || j.cmd.Process == nil {
		return -1
	}
	return j.cmd.Process.Pid
}

func (j *Job) Started() time.Time {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.started
}

// Stopped returns when the process was reaped, zero until the job is Finished.
func (j *Job) Stopped() time.Time {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.stopped
}

// Start spawns the process and returns without waiting for it. The ctx is used
// for logging only, cancelling it does not affect the child.
// A job can be started once, a second call returns ErrAlreadyStarted.
func (j *Job) Start(ctx context.Context) error {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.state != StateNotStarted {
		return ErrAlreadyStarted
	}

	// nil Stdin, Stdout and Stderr are connected to the null device
	cmd := exec.Command(j.command, j.argument)
	started := time.Now().UTC()
	if err := cmd.Start(); err != nil {
		slog.DebugContext(ctx, "job spawn failed", "job", j.logValue(), "error", err)
		return &SpawnError{Command: j.command, Err: err}
	}

	j.cmd = cmd
	j.done = make(chan struct{})
	j.started = started
	j.state = StateRunning
	slog.DebugContext(ctx, "job started", "job", j.logValue())

	go j.reap(cmd, j.done)
	return nil
}

func (j *Job) reap(cmd *exec.Cmd, done chan<- struct{}) {
	err := cmd.Wait()
	j.exit = reaped{
		state:   cmd.ProcessState,
		err:     err,
		stopped: time.Now().UTC(),
	}
	close(done)
}

// TryWait checks the process without blocking. It returns ok=false and a nil
// error while the process is still running. Once the process has exited the
// job becomes Finished and the recorded status is returned on every call.
func (j *Job) TryWait() (ExitStatus, bool, error) {
	j.mx.Lock()
	defer j.mx.Unlock()
	switch j.state {
	case StateNotStarted:
		return ExitStatus{}, false, ErrNotStarted
	case StateFinished:
		if j.waitErr != nil {
			return ExitStatus{}, false, j.waitErr
		}
		return j.status, true, nil
	}

	select {
	case <-j.done:
		st, err := j.finishLocked()
		if err != nil {
			return ExitStatus{}, false, err
		}
		return st, true, nil
	default:
		return ExitStatus{}, false, nil
	}
}

// Wait blocks the calling goroutine until the process exits and returns its
// status. When ctx ends first, ctx.Err() is returned and the job stays
// Running, so Wait or TryWait may be called again.
// Calling Wait on a Finished job returns ErrAlreadyFinished, use Status to
// read the recorded outcome.
func (j *Job) Wait(ctx context.Context) (ExitStatus, error) {
	j.mx.Lock()
	switch j.state {
	case StateNotStarted:
		j.mx.Unlock()
		return ExitStatus{}, ErrNotStarted
	case StateFinished:
		j.mx.Unlock()
		return ExitStatus{}, ErrAlreadyFinished
	}
	done := j.done
	j.mx.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		// select picks at random when both are ready, prefer the exit
		select {
		case <-done:
		default:
			return ExitStatus{}, ctx.Err()
		}
	}

	j.mx.Lock()
	defer j.mx.Unlock()
	// another caller may have observed the exit meanwhile
	if j.state == StateFinished {
		return ExitStatus{}, ErrAlreadyFinished
	}
	st, err := j.finishLocked()
	if err == nil {
		slog.DebugContext(ctx, "job finished", "job", j.logValue(), "status", st)
	}
	return st, err
}

// Status returns the recorded exit status. ok is false until the job is
// Finished with a known status.
func (j *Job) Status() (ExitStatus, bool) {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.state != StateFinished || j.waitErr != nil {
		return ExitStatus{}, false
	}
	return j.status, true
}

// Close kills a running process and blocks until it is reaped. The job stays
// Running, the kill is observed by the next TryWait or Wait. Close does
// nothing for jobs which are not running.
func (j *Job) Close() error {
	j.mx.Lock()
	if j.state != StateRunning {
		j.mx.Unlock()
		return nil
	}
	cmd, done := j.cmd, j.done
	j.mx.Unlock()

	select {
	case <-done:
		return nil
	default:
	}

	err := cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing %s: %w", j.command, err)
	}
	<-done
	return nil
}

// finishLocked moves a reaped job to Finished. j.mx must be held and done closed.
func (j *Job) finishLocked() (ExitStatus, error) {
	j.state = StateFinished
	j.stopped = j.exit.stopped

	if j.exit.state == nil {
		j.waitErr = &WaitError{Err: j.exit.err}
		return ExitStatus{}, j.waitErr
	}

	// exec.ExitError only reports a non-zero or signal exit, which is
	// already part of the ProcessState
	j.status = exitStatusOf(j.exit.state)
	return j.status, nil
}

func (j *Job) logValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", j.id),
		slog.String("command", j.command),
		slog.String("argument", j.argument),
	}
	if j.cmd != nil && j.cmd.Process != nil {
		attrs = append(attrs, slog.Int("pid", j.cmd.Process.Pid))
	}
	return slog.GroupValue(attrs...)
}
