package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	ServiceModeManual = "manual"
	ServiceModeTimer  = "timer"

	LogFormatJSON = "json"
	LogFormatText = "text"

	DefaultParallelism = 4
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource, cue.Filename("config.cue"))
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version int       `json:"version" yaml:"version"` // fixed 0 for now
	Service Service   `json:"service" yaml:"service"`
	Jobs    []JobSpec `json:"jobs,omitempty" yaml:"jobs,omitempty"`
}

// Service configures how and when the jobs are dispatched.
type Service struct {
	Mode        string         `json:"mode" yaml:"mode"` // "manual" | "timer"
	Verbose     bool           `json:"verbose" yaml:"verbose"`
	LogFormat   string         `json:"log_format" yaml:"log_format"` // "json" | "text"
	Parallelism int            `json:"parallelism" yaml:"parallelism"`
	Schedule    *TimerSchedule `json:"schedule,omitempty" yaml:"schedule,omitempty"` // required in timer mode
	Dir         string         `json:"dir,omitempty" yaml:"dir,omitempty"`           // reports directory
	Repository  *Repository    `json:"repository,omitempty" yaml:"repository,omitempty"`
	Metrics     *Metrics       `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// TimerSchedule has either Cron or an ISO8601 Duration set.
type TimerSchedule struct {
	Cron     string `json:"cron,omitempty" yaml:"cron,omitempty"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Repository is a remote endpoint reports are POSTed to.
type Repository struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url" yaml:"url"`
}

type Metrics struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// JobSpec describes one command to dispatch with its single argument.
type JobSpec struct {
	Name     string `json:"name" yaml:"name"`
	Command  string `json:"command" yaml:"command"`
	Argument string `json:"argument" yaml:"argument"`
	Timeout  string `json:"timeout,omitempty" yaml:"timeout,omitempty"` // ISO8601, e.g. PT30S
}

// TimeoutDuration returns the parsed Timeout, zero means no timeout.
func (s JobSpec) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := ParseISODuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("job %s: parsing timeout %q: %w", s.Name, s.Timeout, err)
	}
	return d, nil
}

func DefaultConfig(_ context.Context) Config {
	return Config{
		Version: 0,
		Service: Service{
			Mode:        ServiceModeManual,
			LogFormat:   LogFormatJSON,
			Parallelism: DefaultParallelism,
		},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

// Validate checks the rules the CUE schema does not express.
func (c Config) Validate() error {
	var errs []error
	if c.Service.Mode == ServiceModeTimer {
		switch {
		case c.Service.Schedule == nil:
			errs = append(errs, errors.New("service.schedule is required in timer mode"))
		case c.Service.Schedule.Cron != "":
			if _, err := ParseCron(c.Service.Schedule.Cron); err != nil {
				errs = append(errs, fmt.Errorf("parsing service.schedule.cron: %w", err))
			}
		case c.Service.Schedule.Duration != "":
			if _, err := ParseISODuration(c.Service.Schedule.Duration); err != nil {
				errs = append(errs, fmt.Errorf("parsing service.schedule.duration: %w", err))
			}
		}
	}

	seen := make(map[string]struct{}, len(c.Jobs))
	for _, spec := range c.Jobs {
		if _, ok := seen[spec.Name]; ok {
			errs = append(errs, fmt.Errorf("job %s: duplicate name", spec.Name))
		}
		seen[spec.Name] = struct{}{}
		if _, err := spec.TimeoutDuration(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
