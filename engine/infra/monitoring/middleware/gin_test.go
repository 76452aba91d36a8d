package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupRouter(t *testing.T) (*gin.Engine, *sdkmetric.ManualReader) {
	t.Helper()
	ResetMetricsForTesting()
	t.Cleanup(ResetMetricsForTesting)
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMetrics(provider.Meter("test")))
	router.GET("/api/v0/jobs/:job_id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"job_id": c.Param("job_id")})
	})
	router.POST("/api/v0/jobs", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	return router, reader
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

func TestHTTPMetrics(t *testing.T) {
	t.Run("Should record requests by route template", func(t *testing.T) {
		router, reader := setupRouter(t)
		for _, id := range []string{"a", "b"} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v0/jobs/"+id, http.NoBody))
			require.Equal(t, http.StatusOK, w.Code)
		}

		got := collect(t, reader)
		total, ok := got["texlate_http_requests_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, total.DataPoints, 1)
		dp := total.DataPoints[0]
		attrs := dp.Attributes.ToSlice()
		assert.Contains(t, attrs, attribute.String("method", http.MethodGet))
		assert.Contains(t, attrs, attribute.String("path", "/api/v0/jobs/:job_id"))
		assert.Contains(t, attrs, attribute.String("status_code", "200"))
		assert.Equal(t, int64(2), dp.Value)

		duration, ok := got["texlate_http_request_duration_seconds"].Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, duration.DataPoints, 1)
		assert.Equal(t, uint64(2), duration.DataPoints[0].Count)
	})

	t.Run("Should return in-flight requests to zero", func(t *testing.T) {
		router, reader := setupRouter(t)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v0/jobs", http.NoBody))
		require.Equal(t, http.StatusAccepted, w.Code)

		inFlight, ok := collect(t, reader)["texlate_http_requests_in_flight"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, inFlight.DataPoints, 1)
		assert.Zero(t, inFlight.DataPoints[0].Value)
	})

	t.Run("Should label unknown routes as unmatched", func(t *testing.T) {
		router, reader := setupRouter(t)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))
		assert.Equal(t, http.StatusNotFound, w.Code)

		total, ok := collect(t, reader)["texlate_http_requests_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, total.DataPoints, 1)
		assert.Contains(t, total.DataPoints[0].Attributes.ToSlice(), attribute.String("path", "unmatched"))
	})

	t.Run("Should recover a handler panic and still settle in-flight", func(t *testing.T) {
		router, reader := setupRouter(t)
		router.GET("/boom", func(*gin.Context) { panic("boom") })
		w := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", http.NoBody))
		})

		inFlight, ok := collect(t, reader)["texlate_http_requests_in_flight"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, inFlight.DataPoints, 1)
		assert.Zero(t, inFlight.DataPoints[0].Value)
	})

	t.Run("Should pass requests through with a noop meter", func(t *testing.T) {
		ResetMetricsForTesting()
		t.Cleanup(ResetMetricsForTesting)
		router := gin.New()
		router.Use(HTTPMetrics(noop.NewMeterProvider().Meter("test")))
		router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", http.NoBody))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
