//go:build !unix

package job

import "os"

// only unix hosts expose the terminating signal
func exitStatusOf(ps *os.ProcessState) ExitStatus {
	return fromCode(ps.ExitCode())
}
