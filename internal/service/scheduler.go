package service

import (
	"context"
	"time"

	"wisefido-care-scores/internal/models"
	"wisefido-care-scores/internal/period"

	"go.uber.org/zap"
)

// Calculator 定时任务调用的批量物化
type Calculator interface {
	Calculate(ctx context.Context, snapshotEnd time.Time, periods []int, clientFilter string) ([]models.PeriodSummary, error)
}

// Scheduler 每天 hour 点计算前一天（已结束）的快照
type Scheduler struct {
	calc    Calculator
	hour    int
	loc     *time.Location
	periods []int
	client  string
	logger  *zap.Logger
}

func NewScheduler(calc Calculator, hour int, loc *time.Location, periods []int, client string, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		calc:    calc,
		hour:    hour,
		loc:     loc,
		periods: periods,
		client:  client,
		logger:  logger,
	}
}

// NextRun 下一次执行时间（严格晚于 now）
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// SnapshotFor 在 runAt 执行时计算的快照日期（前一天）
func SnapshotFor(runAt time.Time) time.Time {
	return period.StartOfDay(runAt).AddDate(0, 0, -1)
}

// Run 阻塞直到 ctx 取消
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Starting scheduled calculation",
		zap.Int("hour", s.hour),
		zap.String("timezone", s.loc.String()),
		zap.Ints("periods", s.periods),
	)

	for {
		now := time.Now().In(s.loc)
		next := NextRun(now, s.hour)
		wait := next.Sub(now)
		timer := time.NewTimer(wait)

		s.logger.Info("Scheduled calculation will run at",
			zap.Time("next_run", next),
			zap.Duration("wait_duration", wait),
		)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RunOnce(ctx, next)
		}
	}
}

// RunOnce 执行一次定时计算，错误只记录日志
func (s *Scheduler) RunOnce(ctx context.Context, runAt time.Time) {
	snapshot := SnapshotFor(runAt)
	log := s.logger.With(zap.String("snapshot_date", snapshot.Format(period.DateLayout)))

	log.Info("Running scheduled calculation")
	summaries, err := s.calc.Calculate(ctx, snapshot, s.periods, s.client)
	if err != nil {
		log.Error("Scheduled calculation failed", zap.Error(err))
		return
	}
	for _, sum := range summaries {
		log.Info("Scheduled calculation completed",
			zap.Int("period_days", sum.PeriodDays),
			zap.Int("written", sum.Written),
			zap.Int("skipped", sum.Skipped),
			zap.Int("errors", sum.Errors),
		)
	}
}
