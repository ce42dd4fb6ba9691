package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/logger"
	"github.com/custodia-labs/cvsearch/internal/normalisers"
)

var (
	ingestID        string
	ingestName      string
	ingestEmail     string
	ingestSkills    []string
	ingestYears     float64
	ingestLocation  string
	ingestFields    []string
	ingestNoExtract bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Index résumé files",
	Long: `Chunks, embeds and stores each file, replacing any previous version of
the same document. Use "-" to read from stdin.

Markdown, HTML and Word (.docx) files are converted to plain text first.
Other files are read as UTF-8 text. A .zip archive is expanded and every
supported file inside it is ingested under its path without the extension.

Fields given as flags take precedence over fields extracted from the text.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Remove a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestID, "id", "", "document id (single file only; default derived from content)")
	f.StringVar(&ingestName, "name", "", "candidate name")
	f.StringVar(&ingestEmail, "email", "", "candidate email")
	f.StringSliceVar(&ingestSkills, "skills", nil, "comma-separated skills")
	f.Float64Var(&ingestYears, "years", 0, "years of experience")
	f.StringVar(&ingestLocation, "location", "", "candidate location")
	f.StringArrayVar(&ingestFields, "field", nil, "additional field as name=value (repeatable)")
	f.BoolVar(&ingestNoExtract, "no-extract", false, "do not extract fields from the text")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return notConfigured("ingestion")
	}
	if ingestID != "" && len(args) > 1 {
		return errors.New("--id can only be used with a single file")
	}

	fields, err := flagFields(cmd)
	if err != nil {
		return err
	}

	reqs := make([]domain.IngestRequest, 0, len(args))
	var failed []domain.IngestResult
	for _, path := range args {
		if path != "-" && normalisers.IsArchive(path) {
			if ingestID != "" {
				return errors.New("--id cannot be used with an archive")
			}
			archived, errs, err := readArchive(cmd, path, fields)
			if err != nil {
				return err
			}
			reqs = append(reqs, archived...)
			failed = append(failed, errs...)
			continue
		}

		text, source, err := readInput(cmd, path)
		if err != nil {
			return err
		}
		reqs = append(reqs, domain.IngestRequest{
			IDHint:    ingestID,
			Text:      text,
			Fields:    fields.Clone(),
			Source:    source,
			NoExtract: ingestNoExtract,
		})
	}

	results := ingestService.IngestBatch(commandContext(cmd), reqs)
	return reportIngest(cmd, append(results, failed...))
}

// readArchive expands a zip of résumés into one request per supported file.
// Each file's id is its path inside the archive without the extension.
// Files that fail to convert come back as failed results.
func readArchive(cmd *cobra.Command, path string, fields domain.Fields) ([]domain.IngestRequest, []domain.IngestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	entries, err := normalisers.Default().ExpandZip(commandContext(cmd), data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to expand %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	logger.Info("expanded %s: %d files", filepath.Base(path), len(entries))

	var reqs []domain.IngestRequest
	var failed []domain.IngestResult
	for _, e := range entries {
		id := strings.TrimSuffix(e.Name, filepath.Ext(e.Name))
		if e.Err != nil {
			failed = append(failed, domain.IngestResult{
				DocumentID: id,
				Err:        fmt.Errorf("failed to convert %s: %w", e.Name, e.Err),
			})
			continue
		}
		reqs = append(reqs, domain.IngestRequest{
			IDHint:    id,
			Text:      e.Text,
			Fields:    fields.Clone(),
			Source:    abs + "#" + e.Name,
			NoExtract: ingestNoExtract,
		})
	}
	return reqs, failed, nil
}

// flagFields collects the fields set on the command line.
func flagFields(cmd *cobra.Command) (domain.Fields, error) {
	fields := domain.Fields{}
	if ingestName != "" {
		fields[domain.FieldName] = ingestName
	}
	if ingestEmail != "" {
		fields[domain.FieldEmail] = ingestEmail
	}
	if len(ingestSkills) > 0 {
		fields[domain.FieldSkills] = ingestSkills
	}
	if cmd.Flags().Changed("years") {
		fields[domain.FieldYearsExperience] = ingestYears
	}
	if ingestLocation != "" {
		fields[domain.FieldLocation] = ingestLocation
	}
	for _, kv := range ingestFields {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: field %q must be name=value", domain.ErrInvalidInput, kv)
		}
		fields[name] = strings.TrimSpace(value)
	}
	return fields, nil
}

func readInput(cmd *cobra.Command, path string) (text, source string, err error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	text, err = normalisers.Default().Text(commandContext(cmd), path, data)
	if err != nil {
		return "", "", fmt.Errorf("failed to convert %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return text, abs, nil
}

// reportIngest prints one line per result and joins the failures.
func reportIngest(cmd *cobra.Command, results []domain.IngestResult) error {
	var errs []error
	for i := range results {
		r := results[i]
		if r.Err != nil {
			cmd.Printf("  FAILED  %s: %v\n", r.DocumentID, r.Err)
			errs = append(errs, r.Err)
			continue
		}
		action := "updated"
		if r.Created {
			action = "created"
		}
		cmd.Printf("  %-7s %s (version %d, %d chunks)\n", action, r.DocumentID, r.Version, r.Chunks)
	}

	if len(errs) > 0 {
		cmd.Printf("\n%d of %d documents failed\n", len(errs), len(results))
		return fmt.Errorf("ingest failed: %w", errors.Join(errs...))
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return notConfigured("ingestion")
	}

	docID := args[0]
	if err := ingestService.Delete(commandContext(cmd), docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Deleted %s\n", docID)
	return nil
}
