// Package cmd defines the copilot command-line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/paymentops/copilot/internal/config"
	"github.com/paymentops/copilot/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "copilot",
	Short: "Payment operations copilot",
	Long: `Copilot answers natural-language questions about payment transactions.

It generates a read-only SQL query with Gemini, executes it against the
transactions database, and returns a narrative summary with insights.
Run 'copilot serve' to start the HTTP API or 'copilot ask' for a
one-shot question from the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from configuration.
func newLogger(cfg *config.Config) log.Logger {
	return log.New(log.Config{
		Level: parseLogLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
}

// parseLogLevel maps a config string to a slog level, defaulting to info.
func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
