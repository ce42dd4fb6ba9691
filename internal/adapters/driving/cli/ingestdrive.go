package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cvsearch/internal/connectors/google/drive"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

var (
	driveCredentials string
	driveExts        []string
	driveAPIURL      string

	// Test hooks.
	driveHTTPClient *http.Client
	driveRate       float64
)

var ingestDriveCmd = &cobra.Command{
	Use:   "ingest-drive [folder-id]",
	Short: "Index résumés stored in a Google Drive folder",
	Long: `Reads every matching file in a Drive folder and its subfolders and ingests
them as one batch. Google Docs are exported as plain text. Document IDs are
the paths of the files below the folder, without extension.

Authentication uses, in order: GOOGLE_ACCESS_TOKEN, the --credentials file,
or application default credentials (GOOGLE_APPLICATION_CREDENTIALS).`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestDrive,
}

func init() {
	f := ingestDriveCmd.Flags()
	f.StringVar(&driveCredentials, "credentials", "", "service account or authorised user JSON file")
	f.StringSliceVar(&driveExts, "ext", nil, "file extensions to read (default all convertible formats)")
	f.StringVar(&driveAPIURL, "api-url", "", "Drive API endpoint")
	rootCmd.AddCommand(ingestDriveCmd)
}

func runIngestDrive(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return notConfigured("ingestion")
	}
	ctx := commandContext(cmd)

	source, err := drive.NewSource(ctx, args[0], drive.Options{
		AccessToken:       os.Getenv("GOOGLE_ACCESS_TOKEN"),
		CredentialsFile:   driveCredentials,
		Endpoint:          driveAPIURL,
		HTTPClient:        driveHTTPClient,
		RequestsPerSecond: driveRate,
	}, driveExts...)
	if err != nil {
		return err
	}

	files, err := source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to read folder %s: %w", source.FolderID(), err)
	}
	if len(files) == 0 {
		cmd.Printf("No résumé files found in folder %s\n", source.FolderID())
		return nil
	}

	reqs := make([]domain.IngestRequest, 0, len(files))
	for _, f := range files {
		reqs = append(reqs, domain.IngestRequest{IDHint: f.DocumentID, Text: f.Text, Source: f.URL})
	}
	cmd.Printf("Ingesting %d files from folder %s\n", len(reqs), source.FolderID())
	return reportIngest(cmd, ingestService.IngestBatch(ctx, reqs))
}
