package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/CZERTAINLY/dispatcher/internal/dispatch"
	"github.com/CZERTAINLY/dispatcher/internal/log"
	"github.com/CZERTAINLY/dispatcher/internal/metrics"
	"github.com/CZERTAINLY/dispatcher/internal/model"

	"github.com/spf13/cobra"
)

const defaultTrashCommand = "trash-put"

// exitCodeError makes the process exit with the code of the job
type exitCodeError struct {
	code   int
	status string
}

func (e exitCodeError) Error() string {
	return "job finished with " + e.status
}

func (a *app) execCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <command> <argument>",
		Short: "start a command with a single argument and wait for its exit status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSingle(cmd, "exec", args[0], args[1])
		},
	}
	a.singleFlags(cmd)
	return cmd
}

func (a *app) trashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trash <path>",
		Short: "move a file to the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSingle(cmd, "trash", a.flagTrashCommand, args[0])
		},
	}
	a.singleFlags(cmd)
	cmd.Flags().StringVar(&a.flagTrashCommand, "command", defaultTrashCommand, "command moving its argument to the trash")
	return cmd
}

func (a *app) singleFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.flagTimeout, "timeout", "", "ISO8601 duration after which the job is killed, e.g. PT30S")
	cmd.Flags().StringVar(&a.flagPoll, "poll", "", "ISO8601 interval to poll the job with instead of waiting, e.g. PT0.1S")
	cmd.Flags().BoolVar(&a.flagJSON, "json", false, "print the JSON report instead of the exit status")
}

func (a *app) runSingle(cmd *cobra.Command, name, command, argument string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("dispatcher",
		slog.String("cmd", name),
		slog.Int("pid", os.Getpid()),
	))

	var poll time.Duration
	if a.flagPoll != "" {
		var err error
		poll, err = model.ParseISODuration(a.flagPoll)
		if err != nil {
			return fmt.Errorf("parsing --poll: %w", err)
		}
	}

	spec := model.JobSpec{
		Name:     name,
		Command:  command,
		Argument: argument,
		Timeout:  a.flagTimeout,
	}
	if _, err := spec.TimeoutDuration(); err != nil {
		return fmt.Errorf("parsing --timeout: %w", err)
	}

	report, err := dispatch.New([]model.JobSpec{spec}, dispatch.WithPollInterval(poll)).Run(ctx)
	res := report.Results[0]
	switch res.Outcome {
	case metrics.OutcomeSpawnError, metrics.OutcomeWaitError:
		return err
	}

	out := cmd.OutOrStdout()
	if a.flagJSON {
		if err := report.AsJSON(out); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(out, "%s %s: %s\n", command, argument, res.Status)
	}

	if res.Outcome == metrics.OutcomeSuccess {
		return nil
	}
	return exitCodeError{code: exitCode(res), status: res.Status}
}

// exitCode is the code of an unsuccessful job, never 0
func exitCode(res dispatch.Result) int {
	// killed or interrupted jobs may carry no code or a zero one
	if res.ExitCode != nil && *res.ExitCode != 0 {
		return *res.ExitCode
	}
	return 1
}
