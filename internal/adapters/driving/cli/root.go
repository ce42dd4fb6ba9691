// Package cli implements the cvsearch command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driving"
	"github.com/custodia-labs/cvsearch/internal/logger"
)

// MetricsSource exposes the process metrics.
type MetricsSource interface {
	Handler() http.Handler
	Summary() (map[string]float64, error)
}

// Services are the core services the commands drive. Settings is always
// available; the others are nil when the stores or provider could not be
// opened, and Unavailable then holds the reason.
type Services struct {
	Settings  driving.SettingsService
	Ingest    driving.IngestionService
	Search    driving.SearchService
	Documents driving.DocumentService
	Health    driving.HealthService
	Metrics   MetricsSource
	Schema    domain.Schema

	// PingEmbedding checks a provider configuration before it is relied on.
	PingEmbedding func(ctx context.Context, settings domain.EmbeddingSettings) error

	Unavailable error
}

var (
	version = "dev"

	verbose     bool
	showMetrics bool

	settingsService driving.SettingsService
	ingestService   driving.IngestionService
	searchService   driving.SearchService
	documentService driving.DocumentService
	healthService   driving.HealthService
	metricsSource   MetricsSource
	schema          domain.Schema
	pingEmbedding   func(context.Context, domain.EmbeddingSettings) error
	unavailable     error
)

var rootCmd = &cobra.Command{
	Use:   "cvsearch",
	Short: "Hybrid search over résumés",
	Long: `cvsearch indexes résumés into a vector index and a metadata store and
answers queries that combine semantic similarity with structured filters
on skills, years of experience, location and custom fields.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if !showMetrics || metricsSource == nil {
			return nil
		}
		return printMetricsSummary(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "print metric totals after the command")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetServices installs the services used by the commands.
func SetServices(s Services) {
	settingsService = s.Settings
	ingestService = s.Ingest
	searchService = s.Search
	documentService = s.Documents
	healthService = s.Health
	metricsSource = s.Metrics
	schema = s.Schema
	if schema == nil {
		schema = domain.DefaultSchema()
	}
	pingEmbedding = s.PingEmbedding
	unavailable = s.Unavailable
}

// Execute runs the root command. Long-running commands stop when ctx is
// cancelled.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// notConfigured reports a missing service with the reason it could not be
// opened.
func notConfigured(name string) error {
	if unavailable != nil {
		return fmt.Errorf("%s service not configured: %w", name, unavailable)
	}
	return errors.New(name + " service not configured")
}
