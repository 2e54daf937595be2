package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadinessHandler(t *testing.T) {
	ok := CheckerFunc(func(context.Context) error { return nil })
	down := CheckerFunc(func(context.Context) error { return errors.New("bucket missing") })

	rec := httptest.NewRecorder()
	ReadinessHandler(map[string]HealthChecker{"database": ok})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ReadinessHandler(map[string]HealthChecker{"database": ok, "storage": down})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var hs HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hs))
	assert.Equal(t, "unhealthy", hs.Status)
	assert.Equal(t, "bucket missing", hs.Checks["storage"].Message)
	assert.Equal(t, "healthy", hs.Checks["database"].Status)
}

func TestMetricsMiddleware_CountsOutcomes(t *testing.T) {
	before := GetMetrics()
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	RecordAnalysis("schema_violation")
	RecordUpload(false)

	after := GetMetrics()
	assert.Equal(t, before["requests_success"].(uint64)+1, after["requests_success"])
	assert.Equal(t, before["requests_failed"].(uint64)+1, after["requests_failed"])
	assert.Equal(t, before["uploads_failed"].(uint64)+1, after["uploads_failed"])
	assert.GreaterOrEqual(t, after["analyses_failed_by_kind"].(map[string]uint64)["schema_violation"], uint64(1))
}
