package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/dispatcher/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	yml := `
version: 0
service:
  mode: timer
  log_format: text
  parallelism: 2
  schedule:
    duration: PT10M
  dir: /var/lib/dispatcher
  repository:
    enabled: true
    url: https://example.com
  metrics:
    enabled: true
jobs:
  - name: trash
    command: trash-put
    argument: /tmp/old.log
    timeout: PT30S
  - name: backup
    command: /usr/local/bin/backup
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, model.ServiceModeTimer, cfg.Service.Mode)
	require.Equal(t, model.LogFormatText, cfg.Service.LogFormat)
	require.Equal(t, 2, cfg.Service.Parallelism)
	require.NotNil(t, cfg.Service.Schedule)
	require.Equal(t, "PT10M", cfg.Service.Schedule.Duration)
	require.Equal(t, "/var/lib/dispatcher", cfg.Service.Dir)
	require.NotNil(t, cfg.Service.Repository)
	require.True(t, cfg.Service.Repository.Enabled)
	require.Equal(t, "https://example.com", cfg.Service.Repository.URL)
	require.NotNil(t, cfg.Service.Metrics)
	require.Equal(t, ":9090", cfg.Service.Metrics.Addr)

	require.Len(t, cfg.Jobs, 2)
	require.Equal(t, model.JobSpec{
		Name:     "trash",
		Command:  "trash-put",
		Argument: "/tmp/old.log",
		Timeout:  "PT30S",
	}, cfg.Jobs[0])
	d, err := cfg.Jobs[0].TimeoutDuration()
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, d)

	require.Equal(t, "", cfg.Jobs[1].Argument)
	d, err = cfg.Jobs[1].TimeoutDuration()
	require.NoError(t, err)
	require.Zero(t, d)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()
	yml := `
version: 0
service: {}
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, model.ServiceModeManual, cfg.Service.Mode)
	require.Equal(t, model.LogFormatJSON, cfg.Service.LogFormat)
	require.Equal(t, model.DefaultParallelism, cfg.Service.Parallelism)
	require.False(t, cfg.Service.Verbose)
	require.Empty(t, cfg.Jobs)
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    string
	}{
		{"missing command", `
version: 0
service: {}
jobs:
  - name: a
`},
		{"unknown field", `
version: 0
service:
  colour: blue
`},
		{"parallelism zero", `
version: 0
service:
  parallelism: 0
`},
		{"bad mode", `
version: 0
service:
  mode: daemon
`},
		{"timer without schedule", `
version: 0
service:
  mode: timer
`},
		{"bad cron", `
version: 0
service:
  mode: timer
  schedule:
    cron: "* * 32 * *"
`},
		{"duplicate job", `
version: 0
service: {}
jobs:
  - name: a
    command: "true"
  - name: a
    command: "false"
`},
		{"bad timeout", `
version: 0
service: {}
jobs:
  - name: a
    command: "true"
    timeout: 30s
`},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := model.LoadConfig(strings.NewReader(tt.given))
			require.Error(t, err)
		})
	}
}

func TestCueErrDetails(t *testing.T) {
	t.Parallel()
	yml := `
version: 0
service:
  colour: blue
`
	_, err := model.LoadConfig(strings.NewReader(yml))
	require.Error(t, err)

	details := model.CueErrDetails(err)
	require.NotEmpty(t, details)
	var found bool
	for _, d := range details {
		if d.Code == "unknown_field" {
			found = true
			require.Equal(t, "Field colour is not allowed", d.Message)
		}
	}
	require.True(t, found, "details: %+v", details)

	require.Nil(t, model.CueErrDetails(nil))
}

func TestCueErrDetails_Fields(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    string
		path     string
		message  string
	}{
		{"bad mode", "version: 0\nservice:\n  mode: daemon\n", "service.mode", "possible values (manual,timer) (default manual)"},
		{"missing command", "version: 0\nservice: {}\njobs:\n  - name: a\n", "jobs.0.command", ""},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := model.LoadConfig(strings.NewReader(tt.given))
			require.Error(t, err)

			details := model.CueErrDetails(err)
			var found bool
			for _, d := range details {
				if d.Path != tt.path {
					continue
				}
				found = true
				require.Contains(t, d.Message, tt.message)
				require.NotEmpty(t, d.Code)
			}
			require.True(t, found, "details: %+v", details)
		})
	}
}
