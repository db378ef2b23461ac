// Package main is the entry point for the serverwatch CLI.
//
// Usage:
//
//	serverwatch serve                  # run the monitor and the HTTP API
//	serverwatch query 10.0.0.5 27015   # probe one server once
//	serverwatch preflight              # check the environment before deploying
//	serverwatch version                # show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// set at build time via -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "serverwatch",
	Short: "Game server status monitor",
	Long: `serverwatch polls game servers on a fixed interval and keeps one
status message per server up to date in a chat channel.

Configuration is read from the environment. Common variables:
  DISCORD_TOKEN / DISCORD_WEBHOOK_URL   where status messages go
  TARGETS_FILE                          YAML list of servers to watch
  DATABASE_URL                          postgres://..., sqlite://path or empty
  REDIS_URL                             shared status cache (optional)
  UPDATE_INTERVAL_MINUTES               time between cycles (default 10)`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "serverwatch %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
