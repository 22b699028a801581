package models

import (
	"fmt"
	"strings"
)

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskGreen RiskLevel = "GREEN"
	RiskAmber RiskLevel = "AMBER"
	RiskRed   RiskLevel = "RED"
	RiskNA    RiskLevel = "N/A"
)

// Severity 严重程度排序：N/A、GREEN 为 0，AMBER 为 1，RED 为 2
func (r RiskLevel) Severity() int {
	switch r {
	case RiskRed:
		return 2
	case RiskAmber:
		return 1
	default:
		return 0
	}
}

// MaxRisk 返回更严重的等级；两者都不高于 GREEN 时返回 GREEN
func MaxRisk(a, b RiskLevel) RiskLevel {
	switch max(a.Severity(), b.Severity()) {
	case 2:
		return RiskRed
	case 1:
		return RiskAmber
	default:
		return RiskGreen
	}
}

// DomainConfig 单个 ADL 领域的评分参数
type DomainConfig struct {
	DomainName             string  `json:"domain_name"`
	ExpectedPerDay         float64 `json:"expected_per_day"`
	GapThresholdAmberHours int     `json:"gap_threshold_amber_hours"`
	GapThresholdRedHours   int     `json:"gap_threshold_red_hours"`
}

// ScoreComponent CRS 的单个组成部分
type ScoreComponent struct {
	Name        string   `json:"name"`
	Points      int      `json:"points"`
	Description string   `json:"description"`
	RawValue    *float64 `json:"raw_value,omitempty"`
}

// CareRiskScore 照护风险评分
type CareRiskScore struct {
	RiskLevel   RiskLevel        `json:"risk_level"`
	TotalPoints int              `json:"total_points"`
	Components  []ScoreComponent `json:"components"` // refusal, gap, dependency
}

// Component 按名称查找组成部分
func (c CareRiskScore) Component(name string) (ScoreComponent, bool) {
	for _, comp := range c.Components {
		if comp.Name == name {
			return comp, true
		}
	}
	return ScoreComponent{}, false
}

// Explanation 人类可读的评分说明
func (c CareRiskScore) Explanation() string {
	lines := []string{fmt.Sprintf("Care Risk: %s (%d points)", c.RiskLevel, c.TotalPoints)}
	for _, comp := range c.Components {
		if comp.Points > 0 {
			lines = append(lines, fmt.Sprintf("  • %s (+%d)", comp.Description, comp.Points))
		}
	}
	return strings.Join(lines, "\n")
}

// DocumentationComplianceScore 记录合规评分
type DocumentationComplianceScore struct {
	RiskLevel            RiskLevel `json:"risk_level"`
	CompliancePercentage float64   `json:"compliance_percentage"` // 可超过 100
	ActualEntries        int       `json:"actual_entries"`
	ExpectedEntries      float64   `json:"expected_entries"`
}

// Explanation 人类可读的合规说明
func (d DocumentationComplianceScore) Explanation() string {
	return fmt.Sprintf("Documentation: %s (%.0f%% - %d/%.0f entries)",
		d.RiskLevel, d.CompliancePercentage, d.ActualEntries, d.ExpectedEntries)
}

// ResidentDomainAnalysis 单个 (resident, domain, period_days) 的完整分析结果
type ResidentDomainAnalysis struct {
	ResidentID             int64                        `json:"resident_id"`
	DomainName             string                       `json:"domain_name"`
	PeriodDays             int                          `json:"period_days"`
	CareRiskScore          CareRiskScore                `json:"care_risk_score"`
	DocumentationScore     DocumentationComplianceScore `json:"documentation_score"`
	TotalEvents            int                          `json:"total_events"`
	RefusalCount           int                          `json:"refusal_count"`
	MaxGapHours            *float64                     `json:"max_gap_hours,omitempty"`
	AssistanceDistribution map[AssistanceLevel]int      `json:"assistance_distribution"`
}

// OverallRisk CRS 与 DCS 中较严重者
func (a *ResidentDomainAnalysis) OverallRisk() RiskLevel {
	return MaxRisk(a.CareRiskScore.RiskLevel, a.DocumentationScore.RiskLevel)
}
