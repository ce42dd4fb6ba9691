package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

var auditRepair bool

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check the vector index against the metadata store",
	Long: `Reports orphaned chunks (chunks without a document record) and documents
whose chunks are missing or belong to another version. With --repair,
orphans are deleted and inconsistent documents are re-ingested from their
stored text.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the indexed corpus",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the stores and the embedding provider",
	Long: `Pings the metadata store, the vector index and the embedding provider
and reports healthy or degraded. Exits non-zero when degraded.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	auditCmd.Flags().BoolVar(&auditRepair, "repair", false, "fix the problems found")
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(healthCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return notConfigured("ingestion")
	}
	ctx := commandContext(cmd)

	report, err := ingestService.Audit(ctx)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	cmd.Printf("Checked %d documents\n", report.Documents)
	if report.Clean() {
		cmd.Println("No problems found.")
		return nil
	}

	if len(report.Orphans) > 0 {
		cmd.Printf("\nOrphaned chunks (%d documents):\n", len(report.Orphans))
		for _, id := range report.Orphans {
			cmd.Printf("  %s\n", id)
		}
	}
	if len(report.Inconsistent) > 0 {
		cmd.Printf("\nInconsistent documents (%d):\n", len(report.Inconsistent))
		for _, inc := range report.Inconsistent {
			cmd.Printf("  %s  v%d  %s (%d chunks, %d stale)\n",
				inc.DocumentID, inc.Version, inc.Reason, inc.Chunks, inc.StaleChunks)
		}
	}

	if !auditRepair {
		cmd.Println("\nRun 'cvsearch audit --repair' to fix.")
		return nil
	}

	result, err := ingestService.Repair(ctx, report)
	if err != nil {
		return fmt.Errorf("repair failed: %w", err)
	}

	cmd.Printf("\nDeleted %d orphans\n", len(result.OrphansDeleted))
	if len(result.Reingested) > 0 {
		cmd.Println("Re-ingested:")
		return reportIngest(cmd, result.Reingested)
	}
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	stats, err := documentService.Stats(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}

	cmd.Printf("Documents:  %d\n", stats.Documents)
	cmd.Printf("Chunks:     %d\n", stats.Chunks)
	if stats.WithYears == 0 {
		cmd.Println("Experience: (no documents with years_experience)")
		return nil
	}
	cmd.Printf("Experience: avg %.1f, min %g, max %g years (%d documents)\n",
		stats.AvgYears, stats.MinYears, stats.MaxYears, stats.WithYears)
	return nil
}

func runHealth(cmd *cobra.Command, _ []string) error {
	if healthService == nil {
		return notConfigured("health")
	}

	health, err := healthService.Check(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	for _, c := range health.Components {
		if c.OK() {
			cmd.Printf("  %-10s ok\n", c.Name)
		} else {
			cmd.Printf("  %-10s error: %v\n", c.Name, c.Err)
		}
	}
	cmd.Printf("Documents: %d\n", health.Documents)
	cmd.Printf("Status:    %s\n", health.Status)

	if health.Status != domain.HealthHealthy {
		return errors.New("cvsearch is degraded")
	}
	return nil
}
