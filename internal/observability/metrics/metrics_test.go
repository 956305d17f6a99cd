package metrics

import (
	"context"
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

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("outcome", "success"),
		attribute.String("email", "alice@example.com"),
		attribute.String("route", "/auth/login"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "email" {
			t.Fatalf("expected email to be dropped")
		}
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	m.RecordSignIn(context.Background(), "success")
	m.RecordSignOut(context.Background())
	m.RecordSessionExtend(context.Background())
	m.RecordThrottled(context.Background(), "/auth/login")
}

func TestSessionCountersCarryLabels(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := New(Config{}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSignIn(ctx, " success ")
	m.RecordSignIn(ctx, "invalid_credentials")
	m.RecordSignOut(ctx)
	m.RecordSessionExtend(ctx)
	m.RecordSessionExtend(ctx)
	m.RecordThrottled(ctx, "/auth/login")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	got := map[string]map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok, md.Name)
			got[md.Name] = map[string]int64{}
			for _, dp := range sum.DataPoints {
				for _, kv := range dp.Attributes.ToSlice() {
					got[md.Name][kv.Value.AsString()] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, map[string]map[string]int64{
		"talentbay_sign_in_attempts_total":   {"success": 1, "invalid_credentials": 1},
		"talentbay_session_changes_total":    {ChangeSignOut: 1, ChangeExtend: 2},
		"talentbay_requests_throttled_total": {"/auth/login": 1},
	}, got)
}

func TestGinMiddlewareRecordsWithNoopProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)

	httpMetrics, err := NewHTTPMetrics(Config{ServiceName: "talentbay"}, noop.NewMeterProvider())
	require.NoError(t, err)

	router := gin.New()
	router.Use(GinMiddleware(httpMetrics))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, resp.Code)
}
