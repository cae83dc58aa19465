// lessonplay plays live lessons in the terminal and checks visual
// fragments offline.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-lesson/internal/config"
	"github.com/koscakluka/ema-lesson/internal/telemetry"
)

const serviceName = "lessonplay"

type app struct {
	configPath string
	logFile    string

	cfg      *config.Config
	logger   *slog.Logger
	closers  []func(context.Context) error
	logClose io.Closer
}

func main() {
	a := &app{}
	rootCmd := newRootCmd(a)
	err := rootCmd.Execute()
	a.shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Play live lessons and check lesson visuals",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.DefaultPath, "path to the YAML config file")
	flags.StringVar(&a.logFile, "log-file", "", "write JSON log records to this file")

	cmd.AddCommand(newPlayCmd(a))
	cmd.AddCommand(newCheckCmd(a))
	cmd.AddCommand(newSchemaCmd())
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	_ = godotenv.Load()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}

	// The play UI owns the terminal, so it only logs to a file.
	var out io.Writer = cmd.ErrOrStderr()
	if cmd.Name() == "play" {
		out = io.Discard
	}
	if a.logFile != "" {
		f, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		a.logClose = f
		out = f
	}
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	a.logger = slog.New(handler)
	slog.SetDefault(a.logger)
	telemetry.InstallLogProvider(handler)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(serviceName, out, a.logger)
		if err != nil {
			return fmt.Errorf("error initializing telemetry: %w", err)
		}
		a.closers = append(a.closers, shutdown)
	}
	return nil
}

func (a *app) shutdown() {
	for _, closer := range a.closers {
		if err := closer(context.Background()); err != nil && a.logger != nil {
			a.logger.Error("shutdown failed", "error", err)
		}
	}
	if a.logClose != nil {
		a.logClose.Close()
	}
}
