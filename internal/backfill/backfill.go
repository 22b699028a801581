// Package backfill 按日历日重复执行评分物化。
package backfill

import (
	"context"
	"fmt"
	"time"

	"wisefido-care-scores/internal/models"
	"wisefido-care-scores/internal/period"

	"go.uber.org/zap"
)

// Calculator 单个快照日期的多周期计算
type Calculator interface {
	Calculate(ctx context.Context, snapshotEnd time.Time, periods []int, clientFilter string) ([]models.PeriodSummary, error)
}

// ProgressFunc 每个快照日期完成后回调（CLI 打印进度）
type ProgressFunc func(index, total int, day time.Time, summaries []models.PeriodSummary)

// Driver 回填驱动
type Driver struct {
	calculator Calculator
	logger     *zap.Logger
	progress   ProgressFunc
}

// NewDriver 创建回填驱动
func NewDriver(calculator Calculator, logger *zap.Logger) *Driver {
	return &Driver{calculator: calculator, logger: logger}
}

// OnProgress 设置进度回调
func (d *Driver) OnProgress(fn ProgressFunc) {
	d.progress = fn
}

// Run 对 [start, end] 内每一天、每个周期执行一次物化并累计
// 单日没有任何数据不会中止；致命错误返回已累计的结果
func (d *Driver) Run(ctx context.Context, start, end time.Time, periods []int, clientFilter string) (models.BackfillTotals, error) {
	start, end, err := period.ResolveRange(&start, end, 0)
	if err != nil {
		return models.BackfillTotals{}, err
	}
	normalized, err := period.NormalizePeriods(periods)
	if err != nil {
		return models.BackfillTotals{}, err
	}

	days := period.Days(start, end)
	totals := models.BackfillTotals{
		StartDateID: period.DateID(start),
		EndDateID:   period.DateID(end),
	}

	d.logger.Info("Backfill started",
		zap.Int("start_date_id", totals.StartDateID),
		zap.Int("end_date_id", totals.EndDateID),
		zap.Int("days", len(days)),
		zap.Ints("periods", normalized),
		zap.String("client", clientFilter),
	)

	for i, day := range days {
		summaries, err := d.calculator.Calculate(ctx, day, normalized, clientFilter)
		for _, s := range summaries {
			totals.Add(s)
		}
		if err != nil {
			d.logger.Error("Backfill aborted",
				zap.Int("date_id", period.DateID(day)),
				zap.Int("completed_days", totals.Days),
				zap.Error(err),
			)
			return totals, fmt.Errorf("backfill stopped at %s: %w", day.Format(period.DateLayout), err)
		}
		totals.Days++
		if d.progress != nil {
			d.progress(i+1, len(days), day, summaries)
		}
	}

	d.logger.Info("Backfill complete",
		zap.Int("days", totals.Days),
		zap.Int("runs", totals.Runs),
		zap.Int("processed", totals.Processed),
		zap.Int("written", totals.Written),
		zap.Int("skipped", totals.Skipped),
		zap.Int("errors", totals.Errors),
	)
	return totals, nil
}
