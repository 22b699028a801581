package models

// RiskAlert 写入成功且综合风险为 RED 的记录通知
type RiskAlert struct {
	RunID         string    `json:"run_id"`
	ResidentID    int64     `json:"resident_id"`
	ResidentName  string    `json:"resident_name"`
	ClientName    string    `json:"client_name,omitempty"`
	DomainID      int64     `json:"domain_id"`
	DomainName    string    `json:"domain_name"`
	PeriodDays    int       `json:"period_days"`
	StartDateID   int       `json:"start_date_id"`
	EndDateID     int       `json:"end_date_id"`
	OverallRisk   RiskLevel `json:"overall_risk"`
	CRSLevel      RiskLevel `json:"crs_level"`
	CRSTotal      int       `json:"crs_total"`
	DCSLevel      RiskLevel `json:"dcs_level"`
	DCSPercentage string    `json:"dcs_percentage"`
	Explanation   string    `json:"explanation"`
}
