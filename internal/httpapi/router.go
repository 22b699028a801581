// Package httpapi 评分服务的 HTTP 接口（触发计算、查询明细、导出）
package httpapi

import (
	"context"
	"net/http"
	"time"

	"wisefido-care-scores/internal/metrics"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux     *http.ServeMux
	metrics *metrics.BatchMetrics
	logger  *zap.Logger
}

func NewRouter(bm *metrics.BatchMetrics, logger *zap.Logger) *Router {
	return &Router{
		mux:     http.NewServeMux(),
		metrics: bm,
		logger:  logger,
	}
}

// Handle 注册路由，并按路由记录请求指标
func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, r.metrics.WrapHandler(pattern, h))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Pinger 数据库连通性检查
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RegisterHealthRoutes /healthz 与 /metrics
func (r *Router) RegisterHealthRoutes(db Pinger) {
	r.mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		checks := map[string]bool{"database": true}
		status := http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(req.Context(), time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				r.logger.Warn("Health check: database unreachable", zap.Error(err))
				checks["database"] = false
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": checks,
		})
	})

	if r.metrics != nil {
		r.mux.Handle("/metrics", r.metrics.Handler())
	}
}

// RegisterScoreRoutes 评分相关接口
func (r *Router) RegisterScoreRoutes(h *ScoresHandler) {
	r.Handle("/api/v1/scores/calculate", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Calculate(w, req)
	})
	r.Handle("/api/v1/scores/breakdown", methodGet(h.Breakdown))
	r.Handle("/api/v1/scores/summary", methodGet(h.Summary))
	r.Handle("/api/v1/scores/export", methodGet(h.Export))
}

func methodGet(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}
