package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cvsearch/internal/connectors/github"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

var (
	githubRef    string
	githubPath   string
	githubExts   []string
	githubAPIURL string

	// githubRate overrides the client's request rate. Zero keeps the default.
	githubRate float64
)

var ingestGitHubCmd = &cobra.Command{
	Use:   "ingest-github [owner/repo]",
	Short: "Index résumé files stored in a GitHub repository",
	Long: `Fetches every matching file under --path in a repository and ingests them
as one batch. Document IDs are the file paths relative to --path, without
extension, and each document links back to the file on GitHub.

GITHUB_TOKEN is used for authentication when set. Public repositories can
be read without it, subject to a lower rate limit.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestGitHub,
}

func init() {
	f := ingestGitHubCmd.Flags()
	f.StringVar(&githubRef, "ref", "", "branch, tag or commit (default branch when empty)")
	f.StringVar(&githubPath, "path", "", "directory inside the repository")
	f.StringSliceVar(&githubExts, "ext", nil, "file extensions to read (default all convertible formats)")
	f.StringVar(&githubAPIURL, "api-url", "", "API endpoint for GitHub Enterprise")
	rootCmd.AddCommand(ingestGitHubCmd)
}

func runIngestGitHub(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return notConfigured("ingestion")
	}
	ctx := commandContext(cmd)

	client, err := github.NewClient(ctx, github.Options{
		Token:             os.Getenv("GITHUB_TOKEN"),
		BaseURL:           githubAPIURL,
		RequestsPerSecond: githubRate,
	})
	if err != nil {
		return err
	}
	source, err := github.NewSource(client, args[0], githubRef, githubPath, githubExts...)
	if err != nil {
		return err
	}

	files, err := source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", source.Name(), err)
	}
	if len(files) == 0 {
		cmd.Printf("No résumé files found in %s\n", source.Name())
		return nil
	}

	reqs := make([]domain.IngestRequest, 0, len(files))
	for _, f := range files {
		reqs = append(reqs, domain.IngestRequest{IDHint: f.DocumentID, Text: f.Text, Source: f.URL})
	}
	cmd.Printf("Ingesting %d files from %s\n", len(reqs), source.Name())
	return reportIngest(cmd, ingestService.IngestBatch(ctx, reqs))
}
