package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupTestMeter(t *testing.T) (*sdkmetric.ManualReader, *gin.Engine) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	mw, err := HTTPMetrics(mp.Meter(HTTPMeterName))
	require.NoError(t, err)

	r := gin.New()
	r.Use(mw)
	r.GET("/api/v1/masterdata/:entity", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"entity": c.Param("entity")})
	})
	r.POST("/api/v1/sync/:entity", func(c *gin.Context) {
		c.Status(http.StatusBadGateway)
	})
	return reader, r
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestHTTPMetrics_CountsByRoutePattern(t *testing.T) {
	reader, r := setupTestMeter(t)

	for _, path := range []string{"/api/v1/masterdata/products", "/api/v1/masterdata/warehouses"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/sync/products", nil))

	m := collectMetric(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		route, _ := dp.Attributes.Value(attrRoute)
		class, _ := dp.Attributes.Value(attrClass)
		counts[route.AsString()+" "+class.AsString()] += dp.Value
	}
	assert.Equal(t, int64(2), counts["/api/v1/masterdata/:entity 2xx"])
	assert.Equal(t, int64(1), counts["/api/v1/sync/:entity 5xx"])
}

func TestHTTPMetrics_ActiveRequestsReturnToZero(t *testing.T) {
	reader, r := setupTestMeter(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/masterdata/products", nil))

	m := collectMetric(t, reader, "http_server_active_requests")
	require.NotNil(t, m)
	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Zero(t, sum.DataPoints[0].Value)

	hist := collectMetric(t, reader, "http_server_request_duration_seconds")
	require.NotNil(t, hist)
}

func TestHTTPMetrics_UnmatchedRoute(t *testing.T) {
	reader, r := setupTestMeter(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	m := collectMetric(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	dp := m.Data.(metricdata.Sum[int64]).DataPoints[0]
	route, _ := dp.Attributes.Value(attrRoute)
	assert.Equal(t, "unknown", route.AsString())
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		304: "3xx",
		409: "4xx",
		502: "5xx",
		101: "other",
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusClass(code))
	}
}
