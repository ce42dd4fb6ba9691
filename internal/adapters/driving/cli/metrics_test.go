package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetrics struct {
	summary map[string]float64
	err     error
}

func (f fakeMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
}

func (f fakeMetrics) Summary() (map[string]float64, error) { return f.summary, f.err }

func TestPrintMetricsSummary(t *testing.T) {
	SetServices(Services{Metrics: fakeMetrics{summary: map[string]float64{
		"b_total": 2,
		"a_total": 1.5,
		"zero":    0,
	}}})
	defer SetServices(Services{})

	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	require.NoError(t, printMetricsSummary(cmd))
	assert.Equal(t, "\n[Metrics]\n  a_total 1.5\n  b_total 2\n", buf.String())
}

func TestPrintMetricsSummary_Error(t *testing.T) {
	SetServices(Services{Metrics: fakeMetrics{err: errors.New("collector failed")}})
	defer SetServices(Services{})

	err := printMetricsSummary(&cobra.Command{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to gather metrics")
}

func TestMetricsCmd_StopsOnCancel(t *testing.T) {
	SetServices(Services{Metrics: fakeMetrics{}})
	defer SetServices(Services{})

	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"metrics", "--addr", "127.0.0.1:0"})
	defer rootCmd.SetArgs(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, rootCmd.ExecuteContext(ctx))
	assert.Contains(t, buf.String(), "Serving metrics on 127.0.0.1:0/metrics")
}

func TestMetricsCmd_AddrDefault(t *testing.T) {
	flag := metricsCmd.Flags().Lookup("addr")
	require.NotNil(t, flag)
	assert.Equal(t, ":9464", flag.DefValue)
}
