package main

import (
	"log/slog"
	"os"

	"github.com/CZERTAINLY/dispatcher/internal/log"
	"github.com/CZERTAINLY/dispatcher/internal/service"

	"github.com/spf13/cobra"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run command reads the configuration and dispatches the configured jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := log.ContextAttrs(cmd.Context(), slog.Group("dispatcher",
				slog.String("cmd", "run"),
				slog.String("mode", a.config.Service.Mode),
				slog.Int("pid", os.Getpid()),
			))

			supervisor, err := service.NewSupervisor(ctx, a.config)
			if err != nil {
				return err
			}
			return supervisor.Do(ctx)
		},
	}
}
