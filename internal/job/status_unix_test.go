//go:build unix

package job_test

import (
	"syscall"
	"testing"

	"github.com/CZERTAINLY/dispatcher/internal/job"
	"github.com/stretchr/testify/require"
)

func TestSignaled(t *testing.T) {
	t.Parallel()
	sleep := lookPath(t, "sleep")

	var testCases = []struct {
		scenario string
		kill     func(t *testing.T, j *job.Job)
		then     string
	}{
		{"close", func(t *testing.T, j *job.Job) {
			require.NoError(t, j.Close())
		}, "killed"},
		{"sigterm", func(t *testing.T, j *job.Job) {
			require.NoError(t, syscall.Kill(j.PID(), syscall.SIGTERM))
		}, "terminated"},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			j := startJob(t, sleep, "10")
			tt.kill(t, j)

			st, err := j.Wait(t.Context())
			require.NoError(t, err)
			require.True(t, st.Abnormal())
			sig, ok := st.Signal()
			require.True(t, ok)
			require.Equal(t, tt.then, sig)
			require.Equal(t, "signal("+tt.then+")", st.String())
		})
	}
}
