package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erikprakoso/rag-axel-backend/internal/app"
)

var indexDomain string

var indexCmd = &cobra.Command{
	Use:   "index <path>...",
	Short: "Index files or directories into the knowledge base",
	Long: `Index reads .txt and .md files, splits them into overlapping chunks,
embeds each chunk, and stores the result in PostgreSQL. Re-indexing the
same file replaces its previous chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd.Context(), args)
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexDomain, "domain", "", "domain tag applied to every indexed chunk")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(parent context.Context, paths []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		if info.IsDir() {
			result, err := a.Indexer.IndexDir(ctx, path, indexDomain)
			if err != nil {
				return fmt.Errorf("indexing %s: %w", path, err)
			}
			fmt.Printf("%s: %d files indexed, %d skipped, %d chunks in %s\n",
				path, result.FilesIndexed, result.FilesSkipped, result.ChunksAdded, result.Duration.Round(time.Millisecond))
			continue
		}

		chunks, err := a.Indexer.IndexFile(ctx, path, indexDomain)
		if err != nil {
			return fmt.Errorf("indexing %s: %w", path, err)
		}
		fmt.Printf("%s: %d chunks\n", path, chunks)
	}

	return nil
}
