package monitoring

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/texlate/texlate/engine/core"
	"github.com/texlate/texlate/engine/document"
	"github.com/texlate/texlate/engine/job"
	"github.com/texlate/texlate/engine/slot"
	"github.com/texlate/texlate/pkg/config"
)

func TestConfig_Validate(t *testing.T) {
	t.Run("Should accept the default configuration", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("Should reject bad paths", func(t *testing.T) {
		for _, path := range []string{"", "metrics", "/api/metrics", "/metrics?x=1"} {
			assert.Error(t, (&Config{Path: path}).Validate(), path)
		}
	})

	t.Run("Should fall back to the default path", func(t *testing.T) {
		cfg := config.Default()
		cfg.Monitoring.Path = ""
		cfg.Monitoring.Enabled = true
		out := FromAppConfig(cfg)
		assert.True(t, out.Enabled)
		assert.Equal(t, "/metrics", out.Path)
	})
}

func TestService(t *testing.T) {
	t.Run("Should expose pipeline metrics in Prometheus format", func(t *testing.T) {
		ctx := t.Context()
		svc, err := NewMonitoringService(ctx, &Config{Enabled: true, Path: "/metrics"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
		require.True(t, svc.IsInitialized())

		svc.Pipeline().JobFinished(ctx, job.StateSucceeded, "", 2*time.Second)
		svc.Pipeline().CompileAttempt(ctx, 1, errors.New("boom"))

		w := httptest.NewRecorder()
		svc.ExporterHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)
		body, err := io.ReadAll(w.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "texlate_jobs_total")
		assert.Contains(t, string(body), "texlate_compile_attempts_total")
		assert.Contains(t, string(body), "texlate_build_info")
	})

	t.Run("Should use no-op instruments when disabled", func(t *testing.T) {
		svc, err := NewMonitoringService(t.Context(), DefaultConfig())
		require.NoError(t, err)
		assert.False(t, svc.IsInitialized())
		svc.Pipeline().SlotOverrun(t.Context())

		w := httptest.NewRecorder()
		svc.ExporterHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NoError(t, svc.Shutdown(t.Context()))
	})

	t.Run("Should fall back to a disabled service on invalid configuration", func(t *testing.T) {
		svc := NewMonitoringServiceWithFallback(t.Context(), &Config{Enabled: true, Path: "nope"})
		assert.False(t, svc.IsInitialized())
		assert.Error(t, svc.InitializationError())
	})
}

func newTestPipeline(t *testing.T) (*PipelineMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return newPipelineMetrics(t.Context(), provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestPipelineMetrics(t *testing.T) {
	var (
		_ job.Observer  = (*PipelineMetrics)(nil)
		_ slot.Observer = (*PipelineMetrics)(nil)
	)

	t.Run("Should count jobs and chunks", func(t *testing.T) {
		p, reader := newTestPipeline(t)
		ctx := t.Context()
		p.JobFinished(ctx, job.StateFailed, core.CompileFailure, time.Minute)
		p.JobFinished(ctx, job.StateSucceeded, "", time.Minute)
		p.ChunkTranslated(ctx, document.Protected)
		p.ChunkTranslated(ctx, document.Translatable)
		p.ChunkTranslated(ctx, document.Translatable)

		got := collect(t, reader)
		assert.Equal(t, int64(2), sumOf(t, got["texlate_jobs_total"]))
		assert.Equal(t, int64(3), sumOf(t, got["texlate_chunks_total"]))
		hist, ok := got["texlate_job_duration_seconds"].Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		assert.Len(t, hist.DataPoints, 2)
	})

	t.Run("Should track held slots through acquire and release", func(t *testing.T) {
		p, reader := newTestPipeline(t)
		ctx := t.Context()
		p.SlotAcquired(ctx, time.Second)
		p.SlotAcquired(ctx, 0)
		p.SlotReleased(ctx)
		p.SlotOverrun(ctx)

		got := collect(t, reader)
		assert.Equal(t, int64(1), sumOf(t, got["texlate_slots_held"]))
		assert.Equal(t, int64(1), sumOf(t, got["texlate_slot_overruns_total"]))
		hist, ok := got["texlate_slot_wait_seconds"].Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, hist.DataPoints, 1)
		assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	})

	t.Run("Should report the shared counter at collection time", func(t *testing.T) {
		p, reader := newTestPipeline(t)
		counter := slot.NewMemoryCounter()
		_, err := counter.Incr(t.Context())
		require.NoError(t, err)
		require.NoError(t, p.ObserveSharedSlots(counter.Get))

		gauge, ok := collect(t, reader)["texlate_slots_in_use"].Data.(metricdata.Gauge[int64])
		require.True(t, ok)
		require.Len(t, gauge.DataPoints, 1)
		assert.Equal(t, int64(1), gauge.DataPoints[0].Value)
	})
}
