// Package main is the entry point for the hwbot CLI.
//
// Usage:
//
//	hwbot run                   # poll with defaults, credentials from env/.env
//	hwbot run -c hwbot.yaml     # poll with a config file (hot reloaded)
//	hwbot check -c hwbot.yaml   # validate config and credentials
//	hwbot version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hwbot",
	Short: "Homework review status notifier for Telegram",
	Long: `hwbot polls the homework review API and posts a message to one
Telegram chat whenever the review status of a submission changes.

Credentials are read from the environment (or a .env file):
  PRACTICUM_TOKEN   review API OAuth token
  TELEGRAM_TOKEN    bot token
  TELEGRAM_CHAT_ID  chat that receives notifications`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file (.json, .yaml or .yml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file with credentials (ignored if missing)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hwbot %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
