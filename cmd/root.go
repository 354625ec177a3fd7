// Package cmd implements the anchor command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/koopa0/anchor/internal/log"
)

var debugLogging bool

var rootCmd = &cobra.Command{
	Use:   "anchor",
	Short: "Anchor - confidence-gated retrieval orchestrator",
	Long: `Anchor answers questions from ingested documents, escalating to web
search only when the local evidence is judged insufficient and the request
grants web permission.

Run "anchor serve" to start the HTTP API, or "anchor ask" for a one-shot
query from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "enable debug logging")
}

// newLogger builds the process logger. Debug level comes from --debug or
// the ANCHOR_DEBUG environment variable.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debugLogging || os.Getenv("ANCHOR_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}
