package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cvsearch/internal/connectors/filesystem"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/logger"
)

var (
	ingestDirExts        []string
	ingestDirWatch       bool
	ingestDirMetricsAddr string
)

var ingestDirCmd = &cobra.Command{
	Use:   "ingest-dir [directory]",
	Short: "Index every résumé file in a directory",
	Long: `Ingests all matching files under a directory as one batch. Document IDs
are the file paths relative to the directory, without extension.

With --watch the directory is then watched: new and modified files are
re-ingested and removed files are deleted from the index.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestDir,
}

func init() {
	ingestDirCmd.Flags().StringSliceVar(&ingestDirExts, "ext", filesystem.DefaultExtensions, "file extensions to read")
	ingestDirCmd.Flags().BoolVarP(&ingestDirWatch, "watch", "w", false, "keep watching the directory for changes")
	ingestDirCmd.Flags().StringVar(&ingestDirMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while watching")
	rootCmd.AddCommand(ingestDirCmd)
}

func runIngestDir(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return notConfigured("ingestion")
	}

	ctx := commandContext(cmd)
	source := filesystem.New(args[0], ingestDirExts...)
	defer source.Close()

	changes, err := source.Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	reqs := make([]domain.IngestRequest, 0, len(changes))
	for _, c := range changes {
		reqs = append(reqs, changeRequest(c))
	}
	cmd.Printf("Ingesting %d files from %s\n", len(reqs), source.Root())
	batchErr := reportIngest(cmd, ingestService.IngestBatch(ctx, reqs))

	if !ingestDirWatch {
		return batchErr
	}
	if batchErr != nil {
		logger.Warn("%v", batchErr)
	}

	if ingestDirMetricsAddr != "" && metricsSource != nil {
		srv := startMetricsServer(ingestDirMetricsAddr)
		defer shutdownMetricsServer(srv)
	}
	return watchDir(ctx, cmd, source)
}

func changeRequest(c filesystem.Change) domain.IngestRequest {
	return domain.IngestRequest{IDHint: c.DocumentID, Text: c.Text, Source: c.Path}
}

// watchDir applies changes until ctx is cancelled. Failures are reported
// and watching continues.
func watchDir(ctx context.Context, cmd *cobra.Command, source *filesystem.Source) error {
	changes, err := source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", source.Root())

	for c := range changes {
		switch c.Type {
		case filesystem.ChangeDeleted:
			err := ingestService.Delete(ctx, c.DocumentID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				logger.Debug("%s was not indexed", c.DocumentID)
			case err != nil:
				logger.Error("delete %s: %v", c.DocumentID, err)
			default:
				cmd.Printf("  deleted %s\n", c.DocumentID)
			}
		default:
			res, err := ingestService.Ingest(ctx, changeRequest(c))
			if err != nil {
				logger.Error("ingest %s: %v", c.Path, err)
				continue
			}
			_ = reportIngest(cmd, []domain.IngestResult{*res})
		}
	}
	return nil
}
