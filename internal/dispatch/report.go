package dispatch

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/CZERTAINLY/dispatcher/internal/job"
	"github.com/CZERTAINLY/dispatcher/internal/metrics"
)

// Result is the outcome of one dispatched job.
type Result struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Command  string    `json:"command"`
	Argument string    `json:"argument"`
	PID      int       `json:"pid,omitempty"`
	Started  time.Time `json:"started,omitzero"`
	Stopped  time.Time `json:"stopped,omitzero"`
	Status   string    `json:"status"`
	ExitCode *int      `json:"exit_code,omitempty"`
	Signal   string    `json:"signal,omitempty"`
	Outcome  string    `json:"outcome"`
	TimedOut bool      `json:"timed_out,omitempty"`
	Error    string    `json:"error,omitempty"`

	err error
}

// Err returns the error which prevented the job from being observed.
func (r Result) Err() error {
	return r.err
}

func (r *Result) setStatus(st job.ExitStatus) {
	r.Status = st.String()
	if code, ok := st.Code(); ok {
		r.ExitCode = &code
	}
	if sig, ok := st.Signal(); ok {
		r.Signal = sig
	}
	switch {
	case r.TimedOut:
		r.Outcome = metrics.OutcomeTimeout
	case st.Success():
		r.Outcome = metrics.OutcomeSuccess
	case st.Abnormal():
		r.Outcome = metrics.OutcomeAbnormal
	default:
		r.Outcome = metrics.OutcomeFailure
	}
}

func (r *Result) setErr(outcome string, err error) {
	r.Outcome = outcome
	r.err = err
	r.Error = err.Error()
	// spawned jobs get their state set by the caller
	if r.Status == "" && r.PID == 0 {
		r.Status = job.StateNotStarted.String()
	}
}

// Report summarizes one dispatcher run.
type Report struct {
	Started time.Time `json:"started"`
	Stopped time.Time `json:"stopped"`
	Results []Result  `json:"results"`
}

// Failed is true if any job did not run to a successful exit.
func (r Report) Failed() bool {
	for _, res := range r.Results {
		if res.Outcome != metrics.OutcomeSuccess {
			return true
		}
	}
	return false
}

func (r Report) AsJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
