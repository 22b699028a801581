package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wisefido-care-scores/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := NewBatchMetrics()
	s := models.PeriodSummary{PeriodDays: 7, EndDateID: 20250216, Processed: 10, Written: 6, Skipped: 3, Errors: 1, RedAlerts: 2}

	m.ObserveRun(s, 150*time.Millisecond, nil)
	m.ObserveRun(s, 50*time.Millisecond, errors.New("store down"))

	assert.Equal(t, 12.0, testutil.ToFloat64(m.combinations.WithLabelValues("7", OutcomeWritten)))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.combinations.WithLabelValues("7", OutcomeSkipped)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.combinations.WithLabelValues("7", OutcomeError)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.redAlerts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("7", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("7", "failed")))
	assert.Equal(t, 20250216.0, testutil.ToFloat64(m.lastSnapshot))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *BatchMetrics
	assert.NotPanics(t, func() {
		m.ObserveRun(models.PeriodSummary{PeriodDays: 7}, time.Second, nil)
	})

	h := m.WrapHandler("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewBatchMetrics()
	m.ObserveRun(models.PeriodSummary{PeriodDays: 14, Written: 1}, time.Second, nil)

	wrapped := m.WrapHandler("/metrics", m.Handler())
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `care_scores_combinations_total{outcome="written",period_days="14"} 1`))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/metrics", "200")))
}
