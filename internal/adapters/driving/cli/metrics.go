package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cvsearch/internal/logger"
)

var metricsAddr string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Serve Prometheus metrics",
	Long: `Serves the process metrics on /metrics until interrupted. Metrics are
kept in memory, so they cover work done by this process, e.g. by
"ingest-dir --watch --metrics-addr".`,
	Args: cobra.NoArgs,
	RunE: runMetrics,
}

func init() {
	metricsCmd.Flags().StringVar(&metricsAddr, "addr", ":9464", "listen address")
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	if metricsSource == nil {
		return notConfigured("metrics")
	}

	srv := startMetricsServer(metricsAddr)
	cmd.Printf("Serving metrics on %s/metrics\n", metricsAddr)

	<-commandContext(cmd).Done()
	shutdownMetricsServer(srv)
	return nil
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsSource.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server: %v", err)
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown: %v", err)
	}
}

// printMetricsSummary prints non-zero metric totals, sorted by name.
func printMetricsSummary(cmd *cobra.Command) error {
	summary, err := metricsSource.Summary()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	keys := make([]string, 0, len(summary))
	for k, v := range summary {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	cmd.Println()
	cmd.Println("[Metrics]")
	for _, k := range keys {
		cmd.Printf("  %s %g\n", k, summary[k])
	}
	return nil
}
