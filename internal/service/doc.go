// Package service supervises dispatcher runs.
//
// Overview
// The Supervisor owns an event loop. Start requests a run of all configured
// jobs; the run itself is executed by a dispatch.Dispatcher in a separate
// goroutine and its Report comes back to the loop, which uploads it.
//
// Data flow:
//
//	Supervisor                 Dispatcher               job.Job
//	    |                          |                       |
//	Start() -> start chan          |                       |
//	    | run() goroutine -------->| Run()                 |
//	    |                          | errgroup, limit N --->| Start/Wait
//	    |                          |<------ status --------| (process exits)
//	    |<------ Report -----------|                       |
//	    | upload(stdout|dir|repository)
//
// Modes:
//   - manual: one run on entry, Do returns its error
//   - timer: runs are triggered by a gocron scheduler, errors are logged
//
// Invariants:
//   - At most one run is active, a trigger during a run is dropped.
//   - Each run produces exactly one Report which is uploaded.
//   - Shutdown waits for the active run, cancelling its context kills the jobs.
package service
