package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wisefido-care-scores/internal/domains"
	"wisefido-care-scores/internal/materializer"
	"wisefido-care-scores/internal/metrics"
	"wisefido-care-scores/internal/models"
	"wisefido-care-scores/internal/notify"
	"wisefido-care-scores/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type fakeCalculator struct {
	gotEnd     time.Time
	gotPeriods []int
	gotClient  string
	err        error
}

func (f *fakeCalculator) Calculate(ctx context.Context, snapshotEnd time.Time, periods []int, clientFilter string) ([]models.PeriodSummary, error) {
	f.gotEnd, f.gotPeriods, f.gotClient = snapshotEnd, periods, clientFilter
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.PeriodSummary, 0, len(periods))
	for _, p := range periods {
		out = append(out, models.PeriodSummary{PeriodDays: p, EndDateID: 20250216})
	}
	return out, nil
}

type fakeReader struct {
	rows map[models.ScoreKey]models.ScoreRow
	err  error
}

func (f *fakeReader) GetScore(ctx context.Context, key models.ScoreKey) (*models.ScoreRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	row, ok := f.rows[key]
	if !ok {
		return nil, repository.ErrScoreNotFound
	}
	return &row, nil
}

func (f *fakeReader) ListSnapshot(ctx context.Context, startDateID, endDateID int) ([]models.ScoreRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.ScoreRow
	for k, row := range f.rows {
		if k.StartDateID == startDateID && k.EndDateID == endDateID {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeSummaries map[string]models.PeriodSummary

func (f fakeSummaries) LatestSummary(ctx context.Context, client string, endDateID, periodDays int) (*models.PeriodSummary, error) {
	s, ok := f[notify.SummaryKey(client, endDateID, periodDays)]
	if !ok {
		return nil, notify.ErrCacheMiss
	}
	return &s, nil
}

type pingFunc func(ctx context.Context) error

func (p pingFunc) PingContext(ctx context.Context) error { return p(ctx) }

var aliceKey = models.ScoreKey{ResidentID: 11, DomainID: 1, StartDateID: 20250210, EndDateID: 20250216}

func newTestRouter(calc *fakeCalculator, reader *fakeReader, summaries SummaryCache) (*Router, *metrics.BatchMetrics) {
	bm := metrics.NewBatchMetrics()
	r := NewRouter(bm, zap.NewNop())
	r.RegisterHealthRoutes(pingFunc(func(ctx context.Context) error { return nil }))
	r.RegisterScoreRoutes(NewScoresHandler(calc, reader, domains.Default(), summaries, []int{7, 14, 30}, time.UTC, zap.NewNop()))
	return r, bm
}

func newReader() *fakeReader {
	gap := decimal.RequireFromString("50")
	return &fakeReader{rows: map[models.ScoreKey]models.ScoreRow{
		aliceKey: {
			ScoreRecord: models.ScoreRecord{
				ScoreKey:        aliceKey,
				CRSLevel:        models.RiskAmber,
				CRSTotal:        3,
				CRSGapScore:     3,
				RefusalCount:    1,
				MaxGapHours:     &gap,
				DCSLevel:        models.RiskGreen,
				DCSPercentage:   decimal.NewFromInt(100),
				ActualEntries:   7,
				ExpectedEntries: decimal.NewFromInt(7),
				OverallRisk:     models.RiskAmber,
			},
			ResidentName: "Alice Brown",
			DomainName:   "Washing/Bathing",
		},
	}}
}

func decodeResult[T any](t *testing.T, body *bytes.Buffer) Response[T] {
	t.Helper()
	var res Response[T]
	require.NoError(t, json.Unmarshal(body.Bytes(), &res))
	return res
}

func TestCalculate(t *testing.T) {
	calc := &fakeCalculator{}
	r, _ := newTestRouter(calc, newReader(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scores/calculate",
		strings.NewReader(`{"end_date":"2025-02-16","periods":[30,7,7],"client":"Oakwood"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult[[]models.PeriodSummary](t, w.Body)
	assert.Equal(t, CodeOK, res.Code)
	assert.Len(t, res.Result, 2)

	assert.Equal(t, time.Date(2025, 2, 16, 0, 0, 0, 0, time.UTC), calc.gotEnd)
	assert.Equal(t, []int{7, 30}, calc.gotPeriods)
	assert.Equal(t, "Oakwood", calc.gotClient)
}

func TestCalculate_DefaultsToConfiguredPeriods(t *testing.T) {
	calc := &fakeCalculator{}
	r, _ := newTestRouter(calc, newReader(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/scores/calculate", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{7, 14, 30}, calc.gotPeriods)
}

func TestCalculate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		err    error
		status int
	}{
		{"wrong method", http.MethodGet, "", nil, http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, "{", nil, http.StatusBadRequest},
		{"bad date", http.MethodPost, `{"end_date":"16/02/2025"}`, nil, http.StatusBadRequest},
		{"bad period", http.MethodPost, `{"periods":[7,-1]}`, nil, http.StatusBadRequest},
		{"store down", http.MethodPost, `{}`, fmt.Errorf("upsert: %w", materializer.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"other failure", http.MethodPost, `{}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(&fakeCalculator{err: tt.err}, newReader(), nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, "/api/v1/scores/calculate", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestBreakdown(t *testing.T) {
	r, _ := newTestRouter(&fakeCalculator{}, newReader(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/v1/scores/breakdown?resident_id=11&domain_id=1&end_date=2025-02-16&period=7", nil))

	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult[ScoreBreakdown](t, w.Body)
	assert.Equal(t, "Alice Brown", res.Result.Score.ResidentName)
	require.NotNil(t, res.Result.Config)
	assert.Equal(t, 48, res.Result.Config.GapThresholdRedHours)
	require.Len(t, res.Result.Components, 3)
	assert.Equal(t, models.ComponentGap, res.Result.Components[1].Name)
	assert.Equal(t, 3, res.Result.Components[1].Points)
	assert.Contains(t, res.Result.Components[1].Rule, "> 48h")
	assert.Contains(t, res.Result.Components[0].Rule, "2 pts at >= 0.286/day (2.0 refusals)")
}

func TestBreakdown_RefusalRuleScalesWithPeriod(t *testing.T) {
	reader := newReader()
	key := models.ScoreKey{ResidentID: 11, DomainID: 1, StartDateID: 20250118, EndDateID: 20250216}
	row := reader.rows[aliceKey]
	row.ScoreKey = key
	row.RefusalCount = 9
	reader.rows[key] = row
	r, _ := newTestRouter(&fakeCalculator{}, reader, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/v1/scores/breakdown?resident_id=11&domain_id=1&end_date=2025-02-16&period=30", nil))

	require.Equal(t, http.StatusOK, w.Code)
	rule := decodeResult[ScoreBreakdown](t, w.Body).Result.Components[0].Rule
	assert.Contains(t, rule, "9 refusals in 30 days (0.300/day)")
	assert.Contains(t, rule, "(8.6 refusals)")
	assert.Contains(t, rule, "(17.1 refusals)")
}

func TestWindow_InvalidPeriodIsRejected(t *testing.T) {
	cache := fakeSummaries{notify.SummaryKey("", 20250216, 7): {PeriodDays: 7, EndDateID: 20250216}}
	r, _ := newTestRouter(&fakeCalculator{}, newReader(), cache)

	for _, path := range []string{
		"/api/v1/scores/breakdown?resident_id=11&domain_id=1&end_date=2025-02-16&period=abc",
		"/api/v1/scores/summary?end_date=2025-02-16&period=abc",
		"/api/v1/scores/export?end_date=2025-02-16&period=7d",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		res := decodeResult[any](t, w.Body)
		assert.Equal(t, CodeError, res.Code)
		assert.Contains(t, res.Message, "invalid period")
	}
}

func TestBreakdown_NotFoundAndBadRequest(t *testing.T) {
	r, _ := newTestRouter(&fakeCalculator{}, newReader(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/v1/scores/breakdown?resident_id=11&domain_id=1&end_date=2025-02-16&period=14", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/scores/breakdown?resident_id=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/v1/scores/breakdown?resident_id=11&domain_id=1&period=0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSummary(t *testing.T) {
	cache := fakeSummaries{notify.SummaryKey("", 20250216, 7): {PeriodDays: 7, EndDateID: 20250216, Processed: 10, Written: 10}}
	r, _ := newTestRouter(&fakeCalculator{}, newReader(), cache)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/scores/summary?end_date=2025-02-16&period=7", nil))
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult[models.PeriodSummary](t, w.Body)
	assert.Equal(t, 10, res.Result.Written)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/scores/summary?end_date=2025-02-16&period=30", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSummary_PerClient(t *testing.T) {
	cache := fakeSummaries{
		notify.SummaryKey("", 20250216, 7):           {PeriodDays: 7, EndDateID: 20250216, Residents: 3, Written: 2},
		notify.SummaryKey("Meadowview", 20250216, 7): {Client: "Meadowview", PeriodDays: 7, EndDateID: 20250216, Residents: 1, Written: 1},
	}
	r, _ := newTestRouter(&fakeCalculator{}, newReader(), cache)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/scores/summary?end_date=2025-02-16&period=7", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decodeResult[models.PeriodSummary](t, w.Body).Result.Residents)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/scores/summary?end_date=2025-02-16&period=7&client=Meadowview", nil))
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult[models.PeriodSummary](t, w.Body)
	assert.Equal(t, "Meadowview", res.Result.Client)
	assert.Equal(t, 1, res.Result.Residents)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/scores/summary?end_date=2025-02-16&period=7&client=Oakwood", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSummary_CacheDisabled(t *testing.T) {
	r, _ := newTestRouter(&fakeCalculator{}, newReader(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/scores/summary", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExport(t *testing.T) {
	r, _ := newTestRouter(&fakeCalculator{}, newReader(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/scores/export?end_date=2025-02-16&period=7", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "care-scores-20250210-20250216.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Scores 20250210-20250216")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alice Brown", rows[1][1])
}

func TestExport_ReaderFailure(t *testing.T) {
	r, _ := newTestRouter(&fakeCalculator{}, &fakeReader{err: errors.New("connection refused")}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/scores/export?end_date=2025-02-16", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(&fakeCalculator{}, newReader(), nil)

	// 产生一次请求计数
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/scores/export?end_date=2025-02-16", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `care_scores_http_requests_total{route="/api/v1/scores/export",status="200"} 1`)
}

func TestHealth_DatabaseDown(t *testing.T) {
	r := NewRouter(nil, zap.NewNop())
	r.RegisterHealthRoutes(pingFunc(func(ctx context.Context) error { return errors.New("dial tcp: refused") }))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":false`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
