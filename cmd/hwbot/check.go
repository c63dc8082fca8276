package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hwbot/internal/app"
	"hwbot/internal/config"
	"hwbot/internal/practicum"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate config and credentials",
	Long: `Load the config file and environment exactly as 'run' would, then
report problems without contacting any service.

Exit codes:
  0 - ready to run
  1 - invalid config or missing credentials`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := app.Check(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if missing := config.MissingCredentials(cfg); len(missing) > 0 {
		return fmt.Errorf("%w: %s", errMissingCredentials, strings.Join(missing, ", "))
	}

	endpoint := cfg.Practicum.Endpoint
	if endpoint == "" {
		endpoint = practicum.DefaultEndpoint
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Config is valid!")
	fmt.Fprintf(out, "  Endpoint:      %s\n", endpoint)
	fmt.Fprintf(out, "  Interval:      %s\n", cfg.Poll.Interval)
	fmt.Fprintf(out, "  Notify policy: %s\n", cfg.Poll.NotifyPolicy)
	fmt.Fprintf(out, "  Chat:          %d\n", cfg.Telegram.ChatID)
	fmt.Fprintf(out, "  Commands:      %t\n", cfg.Telegram.CommandsEnabled())
	return nil
}
