// Package cmd provides the hal CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - migrate: apply pending database migrations
//   - seed: generate and store a starter set of jokes
//   - version: show build and configuration information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jaif/hal/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "hal",
	Short: "Hal - a composable prompt-pipeline chat service",
	Long: `Hal serves a small chat API built from composable prompt pipelines.
Routes cover plain chat, a moody persona, intent-based dynamic routing
and retrieval-augmented answers backed by a pgvector store.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is the single entry point for main.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG in the environment lowers
// the level, HAL_LOG_JSON switches to JSON output for deployments.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{
		Level: level,
		JSON:  os.Getenv("HAL_LOG_JSON") != "",
	})
}
