// Package period 处理回溯窗口、YYYYMMDD 日期 ID 以及周期列表解析。
package period

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout 命令行/HTTP 使用的日期格式
const DateLayout = "2006-01-02"

// DefaultPeriods 默认回溯周期
var DefaultPeriods = []int{7, 14, 30}

// DefaultBackfillDays 未指定起始日期时的回填天数
const DefaultBackfillDays = 30

var (
	ErrNoPeriods     = errors.New("at least one period is required")
	ErrInvalidRange  = errors.New("start date must be on or before end date")
	ErrInvalidDateID = errors.New("invalid date id")
)

// DateID 日期转 YYYYMMDD 整数
func DateID(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// FromDateID YYYYMMDD 整数转当天 00:00（loc 时区）
func FromDateID(id int, loc *time.Location) (time.Time, error) {
	y, m, d := id/10000, (id/100)%100, id%100
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	if id <= 0 || DateID(t) != id {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidDateID, id)
	}
	return t, nil
}

// StartOfDay 当天 00:00
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// Window 闭区间回溯窗口 [end - days + 1, end]
// 查询时使用半开时间区间 [Start, End)
type Window struct {
	PeriodDays  int
	StartDate   time.Time
	EndDate     time.Time
	Start       time.Time // 起始日 00:00
	End         time.Time // 结束日次日 00:00
	StartDateID int
	EndDateID   int
}

// NewWindow 以快照日期为右边界构建窗口
func NewWindow(snapshotEnd time.Time, periodDays int) (Window, error) {
	if periodDays <= 0 {
		return Window{}, fmt.Errorf("period_days must be a positive integer, got %d", periodDays)
	}
	endDate := StartOfDay(snapshotEnd)
	startDate := endDate.AddDate(0, 0, -(periodDays - 1))
	return Window{
		PeriodDays:  periodDays,
		StartDate:   startDate,
		EndDate:     endDate,
		Start:       startDate,
		End:         endDate.AddDate(0, 0, 1),
		StartDateID: DateID(startDate),
		EndDateID:   DateID(endDate),
	}, nil
}

// Contains 时间点是否落在窗口内
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s (%dd)", w.StartDate.Format(DateLayout), w.EndDate.Format(DateLayout), w.PeriodDays)
}

// ParsePeriods 解析逗号分隔的周期列表，去重并升序
func ParsePeriods(raw string) ([]int, error) {
	var periods []int
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		v, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("invalid period %q: %w", token, err)
		}
		periods = append(periods, v)
	}
	return NormalizePeriods(periods)
}

// NormalizePeriods 校验为正数、去重并升序
func NormalizePeriods(periods []int) ([]int, error) {
	seen := make(map[int]struct{}, len(periods))
	out := make([]int, 0, len(periods))
	for _, p := range periods {
		if p <= 0 {
			return nil, fmt.Errorf("all period values must be positive integers, got %d", p)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, ErrNoPeriods
	}
	sort.Ints(out)
	return out, nil
}

// ResolveRange 解析回填日期区间
// start 为 nil 时使用 end - (days - 1)；days <= 0 报错
func ResolveRange(start *time.Time, end time.Time, days int) (time.Time, time.Time, error) {
	end = StartOfDay(end)
	var s time.Time
	if start != nil {
		s = StartOfDay(*start)
	} else {
		if days <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("days must be a positive integer, got %d", days)
		}
		s = end.AddDate(0, 0, -(days - 1))
	}
	if s.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, s.Format(DateLayout), end.Format(DateLayout))
	}
	return s, end, nil
}

// Days 按日历日遍历 [start, end]
func Days(start, end time.Time) []time.Time {
	var days []time.Time
	for d := StartOfDay(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
