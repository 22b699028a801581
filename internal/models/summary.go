package models

// PeriodSummary 单个快照日期 + 回溯周期的批量计算汇总
// 不变量：Processed == Written + Skipped + Errors
type PeriodSummary struct {
	RunID       string `json:"run_id,omitempty"`
	Client      string `json:"client,omitempty"` // 空表示全部客户
	PeriodDays  int    `json:"period_days"`
	StartDateID int    `json:"start_date_id"`
	EndDateID   int    `json:"end_date_id"`
	Residents   int    `json:"residents"`
	Domains     int    `json:"domains"`
	Processed   int    `json:"processed"`
	Written     int    `json:"written"`
	Skipped     int    `json:"skipped"`
	Errors      int    `json:"errors"`
	RedAlerts   int    `json:"red_alerts"`
}

// Reconciles 计数是否闭合
func (s PeriodSummary) Reconciles() bool {
	return s.Processed == s.Written+s.Skipped+s.Errors
}

// BackfillTotals 回填累计结果
type BackfillTotals struct {
	StartDateID int `json:"start_date_id"`
	EndDateID   int `json:"end_date_id"`
	Days        int `json:"days"`
	Runs        int `json:"runs"`
	Processed   int `json:"processed"`
	Written     int `json:"written"`
	Skipped     int `json:"skipped"`
	Errors      int `json:"errors"`
}

// Add 累加单个周期汇总
func (t *BackfillTotals) Add(s PeriodSummary) {
	t.Runs++
	t.Processed += s.Processed
	t.Written += s.Written
	t.Skipped += s.Skipped
	t.Errors += s.Errors
}
