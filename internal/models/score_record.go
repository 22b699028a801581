package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScoreKey 评分记录的唯一标识
type ScoreKey struct {
	ResidentID  int64 `json:"resident_id"`
	DomainID    int64 `json:"domain_id"`
	StartDateID int   `json:"start_date_id"`
	EndDateID   int   `json:"end_date_id"`
}

// ScoreRecord fact_resident_domain_score 表中的一行
type ScoreRecord struct {
	ScoreKey

	CRSLevel           RiskLevel        `json:"crs_level"`
	CRSTotal           int              `json:"crs_total"`
	CRSRefusalScore    int              `json:"crs_refusal_score"`
	CRSGapScore        int              `json:"crs_gap_score"`
	CRSDependencyScore int              `json:"crs_dependency_score"`
	RefusalCount       int              `json:"refusal_count"`
	MaxGapHours        *decimal.Decimal `json:"max_gap_hours,omitempty"`
	DependencyTrend    *decimal.Decimal `json:"dependency_trend,omitempty"` // recent - baseline

	DCSLevel        RiskLevel       `json:"dcs_level"`
	DCSPercentage   decimal.Decimal `json:"dcs_percentage"`
	ActualEntries   int             `json:"actual_entries"`
	ExpectedEntries decimal.Decimal `json:"expected_entries"`

	OverallRisk  RiskLevel  `json:"overall_risk"`
	CalculatedAt *time.Time `json:"calculated_at,omitempty"` // 仅读取时填充
}

// ScoreRow 导出/查询用，附带住户与领域名称
type ScoreRow struct {
	ScoreRecord
	ResidentName string `json:"resident_name"`
	ClientName   string `json:"client_name"`
	DomainName   string `json:"domain_name"`
}

// round2 四舍五入到两位小数
func round2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// NewScoreRecord 将分析结果展开为持久化记录（数值统一保留两位小数）
func NewScoreRecord(key ScoreKey, a *ResidentDomainAnalysis) ScoreRecord {
	rec := ScoreRecord{
		ScoreKey:        key,
		CRSLevel:        a.CareRiskScore.RiskLevel,
		CRSTotal:        a.CareRiskScore.TotalPoints,
		RefusalCount:    a.RefusalCount,
		DCSLevel:        a.DocumentationScore.RiskLevel,
		DCSPercentage:   round2(a.DocumentationScore.CompliancePercentage),
		ActualEntries:   a.DocumentationScore.ActualEntries,
		ExpectedEntries: round2(a.DocumentationScore.ExpectedEntries),
		OverallRisk:     a.OverallRisk(),
	}
	if c, ok := a.CareRiskScore.Component(ComponentRefusal); ok {
		rec.CRSRefusalScore = c.Points
	}
	if c, ok := a.CareRiskScore.Component(ComponentGap); ok {
		rec.CRSGapScore = c.Points
	}
	if c, ok := a.CareRiskScore.Component(ComponentDependency); ok {
		rec.CRSDependencyScore = c.Points
		if c.RawValue != nil {
			v := round2(*c.RawValue)
			rec.DependencyTrend = &v
		}
	}
	if a.MaxGapHours != nil {
		v := round2(*a.MaxGapHours)
		rec.MaxGapHours = &v
	}
	return rec
}

// 组成部分名称
const (
	ComponentRefusal    = "refusal_score"
	ComponentGap        = "gap_score"
	ComponentDependency = "dependency_score"
)
