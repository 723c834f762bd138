package job

import (
	"log/slog"
	"strconv"
)

// State is the lifecycle state of a Job.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

type exitKind int

const (
	kindUnknown exitKind = iota
	kindExited
	kindSignaled
	kindAbnormal
)

// ExitStatus is the terminal outcome of a process: either an exit code, or an
// abnormal termination which carries no code (a signal on POSIX hosts).
type ExitStatus struct {
	kind   exitKind
	code   int
	signal string
}

// Exited builds the status of a process which terminated normally with code.
func Exited(code int) ExitStatus {
	return ExitStatus{kind: kindExited, code: code}
}

// Signaled builds the status of a process killed by the named signal.
func Signaled(signal string) ExitStatus {
	return ExitStatus{kind: kindSignaled, code: -1, signal: signal}
}

func fromCode(code int) ExitStatus {
	if code < 0 {
		return ExitStatus{kind: kindAbnormal, code: -1}
	}
	return Exited(code)
}

// Code returns the exit code and true if the process exited normally.
func (s ExitStatus) Code() (int, bool) {
	if s.kind != kindExited {
		return -1, false
	}
	return s.code, true
}

// Signal returns the name of the terminating signal, if it is known.
func (s ExitStatus) Signal() (string, bool) {
	if s.kind != kindSignaled {
		return "", false
	}
	return s.signal, true
}

// Abnormal reports a termination without an exit code.
func (s ExitStatus) Abnormal() bool {
	return s.kind == kindSignaled || s.kind == kindAbnormal
}

func (s ExitStatus) Success() bool {
	return s.kind == kindExited && s.code == 0
}

func (s ExitStatus) String() string {
	switch s.kind {
	case kindExited:
		return "exit(" + strconv.Itoa(s.code) + ")"
	case kindSignaled:
		return "signal(" + s.signal + ")"
	case kindAbnormal:
		return "abnormal"
	default:
		return "unknown"
	}
}

func (s ExitStatus) LogValue() slog.Value {
	switch s.kind {
	case kindExited:
		return slog.GroupValue(slog.Int("code", s.code))
	case kindSignaled:
		return slog.GroupValue(slog.String("signal", s.signal))
	default:
		return slog.StringValue(s.String())
	}
}
