package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/CZERTAINLY/dispatcher/internal/log"
	"github.com/CZERTAINLY/dispatcher/internal/model"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

const (
	configEnv  = "DISPATCHERCONFIG"
	configName = "dispatcher.yaml"
)

// app holds the state shared by the commands of one invocation
type app struct {
	userConfigPath string // /default/config/path/dispatcher on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagTimeout        string // value of exec/trash --timeout flag
	flagPoll           string // value of exec/trash --poll flag
	flagJSON           bool   // value of exec/trash --json flag
	flagTrashCommand   string // value of trash --command flag
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var exitErr exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		slog.Error("dispatcher failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	if d, err := os.UserConfigDir(); err == nil {
		a.userConfigPath = filepath.Join(d, "dispatcher")
	}

	rootCmd := &cobra.Command{
		Use:          "dispatcher",
		Short:        "Tool starting external commands and tracking their exit status",
		SilenceUsage: true,
		// never print messages
		SilenceErrors: true,
		// parse or create a config, setup logging
		PersistentPreRunE: a.init,
	}

	// root flags
	rootCmd.PersistentFlags().StringVar(&a.flagConfigFilePath, "config", "", "Config file to load - default is "+configName+" in current directory or in "+a.userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&a.flagVerbose, "verbose", false, "verbose logging")

	rootCmd.AddCommand(a.execCmd())
	rootCmd.AddCommand(a.trashCmd())
	rootCmd.AddCommand(a.runCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "version provide version of a dispatcher",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			info, ok := debug.ReadBuildInfo()
			if !ok {
				_, _ = fmt.Fprintln(out, "dispatcher: version info not available")
				return
			}

			_, _ = fmt.Fprintf(out, "dispatcher: %s\n", info.Main.Version)
			_, _ = fmt.Fprintf(out, "go:         %s\n", info.GoVersion)
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					_, _ = fmt.Fprintf(out, "commit:     %s\n", s.Value)
				case "vcs.time":
					_, _ = fmt.Fprintf(out, "date:       %s\n", s.Value)
				case "vcs.modified":
					_, _ = fmt.Fprintf(out, "dirty:      %s\n", s.Value)
				}
			}
		},
	}
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv(configEnv); ok {
		a.configPath = envConfig
	} else if a.flagConfigFilePath != "" {
		a.configPath = a.flagConfigFilePath
	} else {
		for _, d := range []string{a.userConfigPath, "."} {
			if d == "" {
				continue
			}
			path := filepath.Join(d, configName)
			if exists(path) {
				a.configPath = path
				break
			}
		}
	}

	// store default configuration
	if a.configPath == "" {
		a.config = model.DefaultConfig(cmd.Context())
		if a.userConfigPath != "" {
			if err := a.storeDefault(); err != nil {
				return err
			}
		}
	} else {
		f, err := os.Open(a.configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		a.config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error("invalid config", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	// --verbose has a precedence over config file
	if a.flagVerbose {
		a.config.Service.Verbose = true
	}

	slog.SetDefault(log.New(os.Stderr, a.config.Service.LogFormat, a.config.Service.Verbose))
	slog.Debug("dispatcher run", "configPath", a.configPath)
	slog.Debug("dispatcher run", "config", a.config)
	return nil
}

func (a *app) storeDefault() error {
	a.configPath = filepath.Join(a.userConfigPath, configName)
	err := os.MkdirAll(filepath.Dir(a.configPath), 0o755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(a.configPath), err)
	}

	f, err := os.Create(a.configPath)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", a.configPath, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	defer func() {
		_ = enc.Close()
	}()
	if err := enc.Encode(a.config); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
