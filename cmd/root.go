// Package cmd provides the CLI commands for the axel service.
//
// Commands:
//   - serve: HTTP API server with SSE streaming (default)
//   - index: ingest files or directories into the knowledge base
//   - version: build information
package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erikprakoso/rag-axel-backend/internal/config"
	"github.com/erikprakoso/rag-axel-backend/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "axel",
	Short: "AXEL - retrieval-augmented API documentation assistant",
	Long: `AXEL answers questions about API documentation by retrieving the most
relevant passages from an indexed knowledge base and asking a local
Ollama model to answer from them.

Running axel without a subcommand starts the HTTP server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration and installs the configured logger as
// the process default.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := log.New(log.Config{
		Level: logLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)

	return cfg, logger, nil
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
