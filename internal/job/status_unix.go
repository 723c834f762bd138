//go:build unix

package job

import (
	"os"
	"syscall"
)

func exitStatusOf(ps *os.ProcessState) ExitStatus {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Signaled(ws.Signal().String())
	}
	return fromCode(ps.ExitCode())
}
