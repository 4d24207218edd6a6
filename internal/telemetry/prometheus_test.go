package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jarvis394/snapshot-interpolation/interp"
)

func TestPrometheusCountersAndGauges(t *testing.T) {
	metrics := NewPrometheus("snapinterp")
	var _ interp.Metrics = metrics

	metrics.Add(interp.MetricSnapshotsAdded, 2)
	metrics.Add(interp.MetricSnapshotsAdded, 3)
	metrics.Store(interp.MetricVaultSize, 7)
	metrics.Store(interp.MetricVaultSize, 4)

	require.Equal(t, 5.0, testutil.ToFloat64(metrics.counter(interp.MetricSnapshotsAdded)))
	require.Equal(t, 4.0, testutil.ToFloat64(metrics.gauge(interp.MetricVaultSize)))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "snapinterp_snapshots_added_total 5"), body)
	require.True(t, strings.Contains(body, "snapinterp_vault_size 4"), body)
}

func TestLoggerFuncNilSafe(t *testing.T) {
	var fn LoggerFunc
	fn.Printf("ignored %d", 1)

	var got string
	logger := LoggerFunc(func(format string, args ...any) {
		got = format
	})
	logger.Printf("hello")
	require.Equal(t, "hello", got)
}
