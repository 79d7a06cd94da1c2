// Command floodrisk runs the flood-risk service and its one-shot batch jobs.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/resq-unified/flood-risk-service/internal/config"
	"github.com/spf13/cobra"
)

var (
	// v is shared by every command so flags bound here override environment
	// variables of the same key.
	v       = config.New()
	rootCmd = &cobra.Command{
		Use:   "floodrisk",
		Short: "District flood-risk scoring service",
		Long: `Scores flood risk for Sri Lankan districts from weather forecasts and
river gauges. Settings come from environment variables; flags override them.`,
		SilenceUsage: true,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json, text)")
	flags.String("database-dsn", "", "SQLite database path")

	for key, flag := range map[string]string{
		"log_level":    "log-level",
		"log_format":   "log-format",
		"database_dsn": "database-dsn",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			log.Fatalf("bind %s flag: %v", flag, err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
