// Package materializer 为全部活跃住户 x 领域 x 回溯周期计算评分并幂等写入。
package materializer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wisefido-care-scores/internal/classifier"
	"wisefido-care-scores/internal/metrics"
	"wisefido-care-scores/internal/models"
	"wisefido-care-scores/internal/period"
	"wisefido-care-scores/internal/repository"
	"wisefido-care-scores/internal/scoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrStoreUnavailable 连接级存储故障，剩余批次中止
var ErrStoreUnavailable = errors.New("score store unavailable")

// Notifier 周期完成后的通知出口（Redis 流、MQTT 等），失败只记录日志
type Notifier interface {
	NotifySnapshot(ctx context.Context, summary models.PeriodSummary) error
	NotifyRiskAlerts(ctx context.Context, alerts []models.RiskAlert) error
}

// Option 可选依赖
type Option func(*Materializer)

// WithNotifiers 注册通知出口
func WithNotifiers(notifiers ...Notifier) Option {
	return func(m *Materializer) {
		m.notifiers = append(m.notifiers, notifiers...)
	}
}

// WithMetrics 注册批处理指标
func WithMetrics(bm *metrics.BatchMetrics) Option {
	return func(m *Materializer) {
		m.metrics = bm
	}
}

// Materializer 批量评分物化
type Materializer struct {
	directory  repository.DirectoryInterface
	events     repository.EventSourceInterface
	sink       repository.ScoreSinkInterface
	engine     *scoring.Engine
	notifiers  []Notifier
	metrics    *metrics.BatchMetrics
	logger     *zap.Logger
	muteAlerts bool
}

// New 创建 Materializer
func New(
	directory repository.DirectoryInterface,
	events repository.EventSourceInterface,
	sink repository.ScoreSinkInterface,
	engine *scoring.Engine,
	logger *zap.Logger,
	opts ...Option,
) *Materializer {
	m := &Materializer{
		directory: directory,
		events:    events,
		sink:      sink,
		engine:    engine,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// pendingScore 已计算、待写入的记录
type pendingScore struct {
	record   models.ScoreRecord
	resident models.Resident
	domain   models.Domain
	analysis *models.ResidentDomainAnalysis
}

// accumulator 单个周期的计数
type accumulator struct {
	summary models.PeriodSummary
	pending []pendingScore
}

func (a *accumulator) skip() {
	a.summary.Processed++
	a.summary.Skipped++
}

func (a *accumulator) fail() {
	a.summary.Processed++
	a.summary.Errors++
}

func (a *accumulator) add(p pendingScore) {
	a.summary.Processed++
	a.pending = append(a.pending, p)
}

// abandon 未写入的待处理记录全部计为错误
func (a *accumulator) abandon() {
	a.summary.Errors += len(a.pending)
	a.pending = nil
}

func storeFailure(op string, err error) error {
	if repository.IsConnectivityError(err) {
		return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Calculate 对同一快照日期依次物化多个回溯周期
// 周期列表先整体校验；遇到致命错误时返回已完成的汇总
func (m *Materializer) Calculate(ctx context.Context, snapshotEnd time.Time, periods []int, clientFilter string) ([]models.PeriodSummary, error) {
	normalized, err := period.NormalizePeriods(periods)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scoring.ErrInvalidPeriod, err)
	}

	summaries := make([]models.PeriodSummary, 0, len(normalized))
	for _, days := range normalized {
		summary, err := m.Materialize(ctx, snapshotEnd, days, clientFilter)
		summaries = append(summaries, summary)
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

// Materialize 计算一个快照日期 + 回溯周期的全部组合并写入
func (m *Materializer) Materialize(ctx context.Context, snapshotEnd time.Time, periodDays int, clientFilter string) (summary models.PeriodSummary, err error) {
	if periodDays <= 0 {
		return models.PeriodSummary{PeriodDays: periodDays}, fmt.Errorf("%w: got %d", scoring.ErrInvalidPeriod, periodDays)
	}
	window, err := period.NewWindow(snapshotEnd, periodDays)
	if err != nil {
		return models.PeriodSummary{PeriodDays: periodDays}, err
	}

	started := time.Now()
	acc := &accumulator{summary: models.PeriodSummary{
		RunID:       uuid.NewString(),
		Client:      clientFilter,
		PeriodDays:  periodDays,
		StartDateID: window.StartDateID,
		EndDateID:   window.EndDateID,
	}}
	log := m.logger.With(
		zap.String("run_id", acc.summary.RunID),
		zap.Int("period_days", periodDays),
		zap.Int("start_date_id", window.StartDateID),
		zap.Int("end_date_id", window.EndDateID),
	)
	defer func() {
		m.metrics.ObserveRun(summary, time.Since(started), err)
	}()

	residents, err := m.directory.ListActiveResidents(ctx, clientFilter)
	if err != nil {
		return acc.summary, storeFailure("failed to load residents", err)
	}
	domainList, err := m.directory.ListDomains(ctx)
	if err != nil {
		return acc.summary, storeFailure("failed to load domains", err)
	}
	acc.summary.Residents = len(residents)
	acc.summary.Domains = len(domainList)

	log.Info("Materializing scores",
		zap.String("client", clientFilter),
		zap.Int("residents", len(residents)),
		zap.Int("domains", len(domainList)),
	)

	for _, resident := range residents {
		for _, domain := range domainList {
			if ctxErr := ctx.Err(); ctxErr != nil {
				acc.abandon()
				return acc.summary, fmt.Errorf("materialization cancelled: %w", ctxErr)
			}

			raws, err := m.events.FetchEvents(ctx, resident.ResidentID, domain.DomainID, window.Start, window.End)
			if err != nil {
				acc.fail()
				if repository.IsConnectivityError(err) {
					acc.abandon()
					log.Error("Event store unreachable, aborting run",
						zap.Int64("resident_id", resident.ResidentID),
						zap.Int64("domain_id", domain.DomainID),
						zap.Error(err),
					)
					return acc.summary, storeFailure("failed to fetch events", err)
				}
				log.Error("Failed to fetch events",
					zap.Int64("resident_id", resident.ResidentID),
					zap.Int64("domain_id", domain.DomainID),
					zap.Error(err),
				)
				continue
			}

			if len(raws) == 0 {
				acc.skip()
				continue
			}

			events := classifier.ReconcileAll(raws)
			analysis, err := m.engine.Analyze(resident.ResidentID, domain.DomainName, events, periodDays)
			if err != nil {
				acc.fail()
				log.Warn("Failed to score combination",
					zap.Int64("resident_id", resident.ResidentID),
					zap.String("domain", domain.DomainName),
					zap.Error(err),
				)
				continue
			}

			log.Debug("Scored combination",
				zap.Int64("resident_id", resident.ResidentID),
				zap.String("domain", domain.DomainName),
				zap.Int("events", analysis.TotalEvents),
				zap.String("crs", analysis.CareRiskScore.Explanation()),
				zap.String("dcs", analysis.DocumentationScore.Explanation()),
			)

			key := models.ScoreKey{
				ResidentID:  resident.ResidentID,
				DomainID:    domain.DomainID,
				StartDateID: window.StartDateID,
				EndDateID:   window.EndDateID,
			}
			acc.add(pendingScore{
				record:   models.NewScoreRecord(key, analysis),
				resident: resident,
				domain:   domain,
				analysis: analysis,
			})
		}
	}

	alerts, err := m.flush(ctx, acc, log)
	if err != nil {
		return acc.summary, err
	}

	log.Info("Scores materialized",
		zap.Int("processed", acc.summary.Processed),
		zap.Int("written", acc.summary.Written),
		zap.Int("skipped", acc.summary.Skipped),
		zap.Int("errors", acc.summary.Errors),
		zap.Int("red_alerts", acc.summary.RedAlerts),
		zap.Duration("elapsed", time.Since(started)),
	)

	m.notify(ctx, acc.summary, alerts, log)
	return acc.summary, nil
}

// WithoutRiskAlerts 返回不发布 RED 告警的副本（回填历史日期用），汇总照常发布
func (m *Materializer) WithoutRiskAlerts() *Materializer {
	c := *m
	c.muteAlerts = true
	return &c
}

// flush 一个事务写入全部待处理记录，返回写入成功的 RED 记录通知
func (m *Materializer) flush(ctx context.Context, acc *accumulator, log *zap.Logger) ([]models.RiskAlert, error) {
	if len(acc.pending) == 0 {
		return nil, nil
	}

	records := make([]models.ScoreRecord, len(acc.pending))
	for i, p := range acc.pending {
		records[i] = p.record
	}

	results, err := m.sink.UpsertScores(ctx, records)
	if err != nil {
		count := len(acc.pending)
		acc.abandon()
		if repository.IsConnectivityError(err) {
			log.Error("Score store unreachable, window not written", zap.Int("records", count), zap.Error(err))
			return nil, storeFailure("failed to write scores", err)
		}
		log.Error("Score window rolled back", zap.Int("records", count), zap.Error(err))
		return nil, nil
	}

	var alerts []models.RiskAlert
	for i, p := range acc.pending {
		if results[i] != nil {
			acc.summary.Errors++
			log.Error("Failed to write score", zap.Error(results[i]))
			continue
		}
		acc.summary.Written++
		if p.record.OverallRisk == models.RiskRed {
			acc.summary.RedAlerts++
			alerts = append(alerts, newRiskAlert(acc.summary, p))
		}
	}
	acc.pending = nil
	return alerts, nil
}

func newRiskAlert(s models.PeriodSummary, p pendingScore) models.RiskAlert {
	return models.RiskAlert{
		RunID:         s.RunID,
		ResidentID:    p.resident.ResidentID,
		ResidentName:  p.resident.ResidentName,
		ClientName:    p.resident.ClientName,
		DomainID:      p.domain.DomainID,
		DomainName:    p.domain.DomainName,
		PeriodDays:    s.PeriodDays,
		StartDateID:   s.StartDateID,
		EndDateID:     s.EndDateID,
		OverallRisk:   p.record.OverallRisk,
		CRSLevel:      p.record.CRSLevel,
		CRSTotal:      p.record.CRSTotal,
		DCSLevel:      p.record.DCSLevel,
		DCSPercentage: p.record.DCSPercentage.StringFixed(2),
		Explanation:   p.analysis.CareRiskScore.Explanation() + "\n" + p.analysis.DocumentationScore.Explanation(),
	}
}

func (m *Materializer) notify(ctx context.Context, summary models.PeriodSummary, alerts []models.RiskAlert, log *zap.Logger) {
	for _, n := range m.notifiers {
		if err := n.NotifySnapshot(ctx, summary); err != nil {
			log.Warn("Failed to publish snapshot summary", zap.Error(err))
		}
		if len(alerts) == 0 || m.muteAlerts {
			continue
		}
		if err := n.NotifyRiskAlerts(ctx, alerts); err != nil {
			log.Warn("Failed to publish risk alerts", zap.Int("alerts", len(alerts)), zap.Error(err))
		}
	}
}
