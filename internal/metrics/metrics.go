// Package metrics 批处理与 HTTP 接口的 Prometheus 指标。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"wisefido-care-scores/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 组合处理结果标签
const (
	OutcomeWritten = "written"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// BatchMetrics 所有方法对 nil 接收者安全，未启用指标时可直接传 nil
type BatchMetrics struct {
	registry      *prometheus.Registry
	combinations  *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	redAlerts     prometheus.Counter
	lastSnapshot  prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// NewBatchMetrics 使用独立 registry 注册指标
func NewBatchMetrics() *BatchMetrics {
	m := &BatchMetrics{
		registry: prometheus.NewRegistry(),
		combinations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "care_scores_combinations_total",
			Help: "Resident x domain combinations processed by lookback period and outcome.",
		}, []string{"period_days", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "care_scores_runs_total",
			Help: "Materialization runs by lookback period and status.",
		}, []string{"period_days", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "care_scores_run_duration_seconds",
			Help:    "Duration of one snapshot/period materialization.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"period_days"}),
		redAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "care_scores_red_alerts_total",
			Help: "Written score records whose overall risk is RED.",
		}),
		lastSnapshot: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "care_scores_last_snapshot_date_id",
			Help: "End date id (YYYYMMDD) of the most recent completed run.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "care_scores_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "care_scores_http_request_duration_seconds",
			Help:    "HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.combinations,
		m.runs,
		m.runDuration,
		m.redAlerts,
		m.lastSnapshot,
		m.httpRequests,
		m.httpDurations,
	)
	return m
}

// ObserveRun 记录一次周期物化结果
func (m *BatchMetrics) ObserveRun(s models.PeriodSummary, duration time.Duration, err error) {
	if m == nil {
		return
	}
	period := strconv.Itoa(s.PeriodDays)
	m.combinations.WithLabelValues(period, OutcomeWritten).Add(float64(s.Written))
	m.combinations.WithLabelValues(period, OutcomeSkipped).Add(float64(s.Skipped))
	m.combinations.WithLabelValues(period, OutcomeError).Add(float64(s.Errors))
	m.redAlerts.Add(float64(s.RedAlerts))
	m.runDuration.WithLabelValues(period).Observe(duration.Seconds())

	status := "ok"
	if err != nil {
		status = "failed"
	} else {
		m.lastSnapshot.Set(float64(s.EndDateID))
	}
	m.runs.WithLabelValues(period, status).Inc()
}

// Registry 暴露给测试
func (m *BatchMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics
func (m *BatchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler 记录请求数与耗时
func (m *BatchMetrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}
