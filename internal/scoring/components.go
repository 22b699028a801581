package scoring

import (
	"fmt"
	"sort"
	"time"

	"wisefido-care-scores/internal/models"
)

// RefusalScore 拒绝率组成部分：>= 4/7 每天 3 分，>= 2/7 每天 2 分，否则 0 分
func RefusalScore(refusalCount, periodDays int) (models.ScoreComponent, error) {
	if periodDays <= 0 {
		return models.ScoreComponent{}, fmt.Errorf("%w: got %d", ErrInvalidPeriod, periodDays)
	}

	rate := float64(refusalCount) / float64(periodDays)
	comp := models.ScoreComponent{Name: models.ComponentRefusal, RawValue: &rate}

	switch {
	case rate >= RefusalRateThresholdRed:
		comp.Points = 3
		comp.Description = fmt.Sprintf("%d refusals in %dd (%.2f/day >= %.2f/day = RED)",
			refusalCount, periodDays, rate, RefusalRateThresholdRed)
	case rate >= RefusalRateThresholdAmber:
		comp.Points = 2
		comp.Description = fmt.Sprintf("%d refusals in %dd (%.2f/day >= %.2f/day = AMBER)",
			refusalCount, periodDays, rate, RefusalRateThresholdAmber)
	case refusalCount > 0:
		comp.Description = fmt.Sprintf("%d refusal(s) in %dd (%.2f/day below threshold)",
			refusalCount, periodDays, rate)
	default:
		comp.Description = "No refusals"
	}
	return comp, nil
}

// GapScore 最大间隔组成部分，两个阈值均为严格大于
func GapScore(maxGapHours *float64, cfg models.DomainConfig) models.ScoreComponent {
	comp := models.ScoreComponent{Name: models.ComponentGap}
	if maxGapHours == nil {
		comp.Description = "Insufficient data for gap analysis"
		return comp
	}

	gap := *maxGapHours
	comp.RawValue = &gap
	switch {
	case gap > float64(cfg.GapThresholdRedHours):
		comp.Points = 3
		comp.Description = fmt.Sprintf("Max gap %.1fh (>%dh = RED)", gap, cfg.GapThresholdRedHours)
	case gap > float64(cfg.GapThresholdAmberHours):
		comp.Points = 2
		comp.Description = fmt.Sprintf("Max gap %.1fh (>%dh = AMBER)", gap, cfg.GapThresholdAmberHours)
	default:
		comp.Description = fmt.Sprintf("Max gap %.1fh (within threshold)", gap)
	}
	return comp
}

// DependencyScore 依赖趋势组成部分
// 按时间排序后只取可量化的协助等级，比较前 3 个与后 3 个的平均值
func DependencyScore(events []models.ADLEvent) models.ScoreComponent {
	comp := models.ScoreComponent{Name: models.ComponentDependency}
	if len(events) < DependencyMinEvents {
		comp.Description = "Insufficient events for trend analysis"
		return comp
	}

	scores := make([]int, 0, len(events))
	for _, ev := range sortedByTime(events) {
		if s, ok := ev.AssistanceLevel.NumericScore(); ok {
			scores = append(scores, s)
		}
	}
	if len(scores) < DependencyMinEvents {
		comp.Description = "Insufficient valid assistance levels for trend"
		return comp
	}

	baseline := average(scores[:DependencyWindow])
	recent := average(scores[len(scores)-DependencyWindow:])
	delta := recent - baseline
	comp.RawValue = &delta

	if recent > baseline+DependencyShiftMargin {
		comp.Points = DependencyTrendPoints
		comp.Description = fmt.Sprintf("Increasing dependency trend (baseline: %.1f -> recent: %.1f)", baseline, recent)
	} else {
		comp.Description = "No significant dependency change"
	}
	return comp
}

// TimeGaps 相邻时间戳之间的间隔（小时），少于 2 个时返回空
func TimeGaps(timestamps []time.Time) []float64 {
	if len(timestamps) < 2 {
		return nil
	}
	sorted := append([]time.Time(nil), timestamps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].Sub(sorted[i-1]).Hours())
	}
	return gaps
}

// MaxGapHours 最大间隔，事件少于 2 个时为 nil
func MaxGapHours(events []models.ADLEvent) *float64 {
	timestamps := make([]time.Time, 0, len(events))
	for _, ev := range events {
		timestamps = append(timestamps, ev.EventTimestamp)
	}
	gaps := TimeGaps(timestamps)
	if len(gaps) == 0 {
		return nil
	}
	m := gaps[0]
	for _, g := range gaps[1:] {
		m = max(m, g)
	}
	return &m
}

func sortedByTime(events []models.ADLEvent) []models.ADLEvent {
	sorted := append([]models.ADLEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EventTimestamp.Before(sorted[j].EventTimestamp)
	})
	return sorted
}

func average(values []int) float64 {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
