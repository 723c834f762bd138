package job

import (
	"errors"
)

var (
	ErrNotStarted      = errors.New("job not started")
	ErrAlreadyStarted  = errors.New("job already started")
	ErrAlreadyFinished = errors.New("job already finished")
	ErrSpawnFailed     = errors.New("spawn failed")
	ErrWaitFailed      = errors.New("wait failed")
)

// SpawnError is returned by Start when the OS refused to create the process.
// It matches ErrSpawnFailed and the underlying os/exec error.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return "spawning " + e.Command + ": " + e.Err.Error()
}

func (e *SpawnError) Unwrap() []error {
	return []error{ErrSpawnFailed, e.Err}
}

// WaitError means the OS wait call itself failed, so no exit status is known.
type WaitError struct {
	Err error
}

func (e *WaitError) Error() string {
	return "waiting on process: " + e.Err.Error()
}

func (e *WaitError) Unwrap() []error {
	return []error{ErrWaitFailed, e.Err}
}
