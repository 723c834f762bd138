// Package job tracks the lifecycle of a single external process.
//
// A Job is created with a command and a single argument and moves through
//
//	NotStarted --Start--> Running --TryWait/Wait--> Finished
//
// Start spawns the process with stdin, stdout and stderr attached to the null
// device and returns as soon as the process exists. A reaper goroutine owned by
// the Job calls exec.Cmd.Wait exactly once, so the child never stays a zombie,
// but the Job only becomes Finished when a caller observes the termination:
//
//   - TryWait never blocks. It reports "still running" as ok=false with a nil error.
//   - Wait parks the calling goroutine until the child exits or ctx is done.
//     A cancelled or expired ctx leaves the Job Running.
//
// The status recorded by the first observer is kept and returned by Status.
// A non-zero or signal exit is a successfully observed outcome, not an error.
// Errors are reserved for misuse (ErrNotStarted, ErrAlreadyStarted,
// ErrAlreadyFinished) and OS failures (ErrSpawnFailed, ErrWaitFailed).
package job
