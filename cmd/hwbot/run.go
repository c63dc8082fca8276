package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hwbot/internal/app"
	"hwbot/internal/config"
	logx "hwbot/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

var errMissingCredentials = errors.New("missing required credentials")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start polling and notifying",
	Long: `Start the poll loop. The first cycle runs immediately; the next one
starts poll.interval after the previous one ended.

The process exits with code 1 before polling if any credential is missing.
It stops on SIGINT or SIGTERM.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// loadConfig reads the dotenv file and the config file named by the flags.
func loadConfig(cmd *cobra.Command) (*config.Manager, *config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, nil, err
	}
	cfgPath, _ := cmd.Flags().GetString("config")
	m := config.NewManager(cfgPath)
	cfg, err := m.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return m, cfg, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	boot := logx.NewConsole("INFO").With(logx.String("comp", "main"))

	cfgm, cfg, err := loadConfig(cmd)
	if err != nil {
		boot.Critical("config load failed", logx.Err(err))
		return err
	}
	if missing := config.MissingCredentials(cfg); len(missing) > 0 {
		boot.Critical("required environment variables are missing; exiting", logx.Any("missing", missing))
		return fmt.Errorf("%w: %v", errMissingCredentials, missing)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgm)
	if err != nil {
		boot.Critical("startup failed", logx.Err(err))
		return err
	}
	if err := a.Start(ctx); err != nil {
		boot.Critical("start failed", logx.Err(err))
		_ = a.Stop(context.Background(), app.StopFatalError)
		return err
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	fatal := a.Err()
	if err := a.Stop(stopCtx, reason); err != nil && fatal == nil {
		fatal = err
	}
	return fatal
}
