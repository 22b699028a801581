package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"wisefido-care-scores/internal/domains"
	"wisefido-care-scores/internal/export"
	"wisefido-care-scores/internal/materializer"
	"wisefido-care-scores/internal/models"
	"wisefido-care-scores/internal/notify"
	"wisefido-care-scores/internal/period"
	"wisefido-care-scores/internal/repository"
	"wisefido-care-scores/internal/scoring"

	"go.uber.org/zap"
)

// Calculator 批量物化（materializer.Materializer 实现）
type Calculator interface {
	Calculate(ctx context.Context, snapshotEnd time.Time, periods []int, clientFilter string) ([]models.PeriodSummary, error)
}

// SummaryCache 最近一次汇总（notify.RedisNotifier 实现）
type SummaryCache interface {
	LatestSummary(ctx context.Context, client string, endDateID, periodDays int) (*models.PeriodSummary, error)
}

// ScoresHandler 评分接口
type ScoresHandler struct {
	calc      Calculator
	reader    repository.ScoreReaderInterface
	registry  *domains.Registry
	summaries SummaryCache // 可为 nil（未启用 Redis）
	periods   []int
	loc       *time.Location
	logger    *zap.Logger
}

func NewScoresHandler(
	calc Calculator,
	reader repository.ScoreReaderInterface,
	registry *domains.Registry,
	summaries SummaryCache,
	periods []int,
	loc *time.Location,
	logger *zap.Logger,
) *ScoresHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ScoresHandler{
		calc:      calc,
		reader:    reader,
		registry:  registry,
		summaries: summaries,
		periods:   periods,
		loc:       loc,
		logger:    logger,
	}
}

// CalculateRequest POST /api/v1/scores/calculate
type CalculateRequest struct {
	EndDate string `json:"end_date"` // YYYY-MM-DD，默认今天
	Periods []int  `json:"periods"`
	Client  string `json:"client"`
}

func (h *ScoresHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := decodeBody(r, 1<<20, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	end, err := h.parseEndDate(req.EndDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	periods := req.Periods
	if len(periods) == 0 {
		periods = h.periods
	}
	periods, err = period.NormalizePeriods(periods)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := h.calc.Calculate(r.Context(), end, periods, req.Client)
	if err != nil {
		h.logger.Error("Calculation request failed",
			zap.String("end_date", end.Format(period.DateLayout)),
			zap.Error(err),
		)
		status := http.StatusInternalServerError
		if errors.Is(err, materializer.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		respondError(w, status, err.Error())
		return
	}
	respondOK(w, summaries)
}

// ComponentBreakdown 单个 CRS 组成部分及其规则
type ComponentBreakdown struct {
	Name      string `json:"name"`
	Points    int    `json:"points"`
	MaxPoints int    `json:"max_points"`
	Rule      string `json:"rule"`
}

// ScoreBreakdown GET /api/v1/scores/breakdown 响应
type ScoreBreakdown struct {
	Score      models.ScoreRow      `json:"score"`
	Config     *models.DomainConfig `json:"config,omitempty"`
	Components []ComponentBreakdown `json:"components"`
	DCSRule    string               `json:"dcs_rule"`
}

// Breakdown ?resident_id=&domain_id=&end_date=&period=
func (h *ScoresHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	residentID, err1 := strconv.ParseInt(q.Get("resident_id"), 10, 64)
	domainID, err2 := strconv.ParseInt(q.Get("domain_id"), 10, 64)
	if err1 != nil || err2 != nil {
		respondError(w, http.StatusBadRequest, "resident_id and domain_id are required")
		return
	}
	win, ok := h.window(w, q)
	if !ok {
		return
	}

	row, err := h.reader.GetScore(r.Context(), models.ScoreKey{
		ResidentID:  residentID,
		DomainID:    domainID,
		StartDateID: win.StartDateID,
		EndDateID:   win.EndDateID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrScoreNotFound) {
			respondError(w, http.StatusNotFound, "score not found")
			return
		}
		h.logger.Error("Failed to read score", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to read score")
		return
	}

	out := ScoreBreakdown{
		Score: *row,
		DCSRule: fmt.Sprintf("GREEN >= %.0f%%, AMBER >= %.0f%%, RED below; N/A when no entries are expected",
			scoring.DocumentationThresholdGreen, scoring.DocumentationThresholdAmber),
	}
	gapRule := "no configuration for this domain"
	if cfg, found := h.registry.Lookup(row.DomainName); found {
		out.Config = &cfg
		gapRule = fmt.Sprintf("longest gap > %dh: 2 pts, > %dh: 3 pts", cfg.GapThresholdAmberHours, cfg.GapThresholdRedHours)
	}
	out.Components = []ComponentBreakdown{
		{
			Name:      models.ComponentRefusal,
			Points:    row.CRSRefusalScore,
			MaxPoints: 3,
			Rule:      refusalRule(row.RefusalCount, win.PeriodDays),
		},
		{Name: models.ComponentGap, Points: row.CRSGapScore, MaxPoints: 3, Rule: gapRule},
		{
			Name:      models.ComponentDependency,
			Points:    row.CRSDependencyScore,
			MaxPoints: scoring.DependencyTrendPoints,
			Rule: fmt.Sprintf("last %d levels average > first %d + %.1f (needs %d events)",
				scoring.DependencyWindow, scoring.DependencyWindow, scoring.DependencyShiftMargin, scoring.DependencyMinEvents),
		},
	}
	respondOK(w, out)
}

// Summary ?end_date=&period=&client=，读取 Redis 缓存的汇总；client 缺省为全部客户的运行
func (h *ScoresHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if h.summaries == nil {
		respondError(w, http.StatusNotFound, "summary cache is not enabled")
		return
	}
	q := r.URL.Query()
	win, ok := h.window(w, q)
	if !ok {
		return
	}
	client := q.Get("client")
	s, err := h.summaries.LatestSummary(r.Context(), client, win.EndDateID, win.PeriodDays)
	if err != nil {
		if errors.Is(err, notify.ErrCacheMiss) {
			respondError(w, http.StatusNotFound,
				fmt.Sprintf("no summary for %s (client %s)", win.String(), notify.ClientSegment(client)))
			return
		}
		h.logger.Error("Failed to read summary cache", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to read summary")
		return
	}
	respondOK(w, s)
}

// Export ?end_date=&period=，下载快照 xlsx
func (h *ScoresHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	win, ok := h.window(w, q)
	if !ok {
		return
	}
	rows, err := h.reader.ListSnapshot(r.Context(), win.StartDateID, win.EndDateID)
	if err != nil {
		h.logger.Error("Failed to list snapshot", zap.String("window", win.String()), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list scores")
		return
	}
	data, err := export.GenerateScoreExport(win.StartDateID, win.EndDateID, rows)
	if err != nil {
		h.logger.Error("Failed to generate export", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to generate export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=care-scores-%d-%d.xlsx", win.StartDateID, win.EndDateID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// refusalRule 阈值按每日拒绝率给出，并换算为本周期的次数
func refusalRule(refusals, periodDays int) string {
	days := float64(periodDays)
	return fmt.Sprintf("%d refusals in %d days (%.3f/day): 2 pts at >= %.3f/day (%.1f refusals), 3 pts at >= %.3f/day (%.1f refusals)",
		refusals, periodDays, float64(refusals)/days,
		scoring.RefusalRateThresholdAmber, scoring.RefusalRateThresholdAmber*days,
		scoring.RefusalRateThresholdRed, scoring.RefusalRateThresholdRed*days)
}

func (h *ScoresHandler) parseEndDate(s string) (time.Time, error) {
	if s == "" {
		return period.StartOfDay(time.Now().In(h.loc)), nil
	}
	return period.ParseDate(s, h.loc)
}

// window 解析 end_date + period，失败时已写响应
func (h *ScoresHandler) window(w http.ResponseWriter, q url.Values) (period.Window, bool) {
	end, err := h.parseEndDate(q.Get("end_date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return period.Window{}, false
	}
	def := period.DefaultPeriods[0]
	if len(h.periods) > 0 {
		def = h.periods[0]
	}
	periodDays, err := queryInt(q, "period", def)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return period.Window{}, false
	}
	win, err := period.NewWindow(end, periodDays)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return period.Window{}, false
	}
	return win, true
}
