package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAnalyzerCall(t *testing.T) {
	m := New()
	m.ObserveAnalyzerCall("facial", 20*time.Millisecond, nil)
	m.ObserveAnalyzerCall("facial", 20*time.Millisecond, errors.New("boom"))
	m.ObserveAnalyzerCall("text", time.Second, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyzerCalls.WithLabelValues("facial", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyzerCalls.WithLabelValues("facial", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyzerCalls.WithLabelValues("text", "ok")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveOrchestration("completed")
	m.SocketOpened()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `interviewx_evaluation_orchestrations_total{outcome="completed"} 1`)
	assert.Contains(t, rec.Body.String(), "interviewx_realtime_connections 1")
}
