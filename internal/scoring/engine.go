// Package scoring 计算照护风险评分（CRS）与记录合规评分（DCS）。
// 所有函数均为纯计算，不访问存储。
package scoring

import (
	"fmt"

	"wisefido-care-scores/internal/domains"
	"wisefido-care-scores/internal/models"
)

// CareRisk 计算 CRS：拒绝 + 间隔 + 依赖趋势
func CareRisk(events []models.ADLEvent, cfg models.DomainConfig, periodDays int) (models.CareRiskScore, error) {
	refusalCount := countRefusals(events)

	refusal, err := RefusalScore(refusalCount, periodDays)
	if err != nil {
		return models.CareRiskScore{}, err
	}
	gap := GapScore(MaxGapHours(events), cfg)
	dependency := DependencyScore(events)

	total := refusal.Points + gap.Points + dependency.Points
	level := models.RiskGreen
	switch {
	case total >= CareRiskRedPoints:
		level = models.RiskRed
	case total >= CareRiskAmberPoints:
		level = models.RiskAmber
	}

	return models.CareRiskScore{
		RiskLevel:   level,
		TotalPoints: total,
		Components:  []models.ScoreComponent{refusal, gap, dependency},
	}, nil
}

// DocumentationScore 计算 DCS：>= 90% GREEN，>= 60% AMBER，其余 RED
// 预期条数为 0 时返回 N/A
func DocumentationScore(actualEntries int, expectedPerDay float64, periodDays int) models.DocumentationComplianceScore {
	expected := expectedPerDay * float64(periodDays)
	score := models.DocumentationComplianceScore{
		ActualEntries:   actualEntries,
		ExpectedEntries: expected,
	}
	if expected == 0 {
		score.RiskLevel = models.RiskNA
		return score
	}

	score.CompliancePercentage = float64(actualEntries) * 100 / expected
	switch {
	case score.CompliancePercentage >= DocumentationThresholdGreen:
		score.RiskLevel = models.RiskGreen
	case score.CompliancePercentage >= DocumentationThresholdAmber:
		score.RiskLevel = models.RiskAmber
	default:
		score.RiskLevel = models.RiskRed
	}
	return score
}

// Engine 绑定领域注册表的评分入口
type Engine struct {
	registry *domains.Registry
}

// NewEngine 创建评分引擎
func NewEngine(registry *domains.Registry) *Engine {
	return &Engine{registry: registry}
}

// Analyze 对单个住户、领域、回溯周期做完整分析
func (e *Engine) Analyze(residentID int64, domainName string, events []models.ADLEvent, periodDays int) (*models.ResidentDomainAnalysis, error) {
	cfg, ok := e.registry.Lookup(domainName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domainName)
	}

	crs, err := CareRisk(events, cfg, periodDays)
	if err != nil {
		return nil, fmt.Errorf("failed to score %s for resident %d: %w", domainName, residentID, err)
	}
	dcs := DocumentationScore(len(events), cfg.ExpectedPerDay, periodDays)

	distribution := make(map[models.AssistanceLevel]int)
	for _, ev := range events {
		distribution[ev.AssistanceLevel]++
	}

	return &models.ResidentDomainAnalysis{
		ResidentID:             residentID,
		DomainName:             cfg.DomainName,
		PeriodDays:             periodDays,
		CareRiskScore:          crs,
		DocumentationScore:     dcs,
		TotalEvents:            len(events),
		RefusalCount:           countRefusals(events),
		MaxGapHours:            MaxGapHours(events),
		AssistanceDistribution: distribution,
	}, nil
}

func countRefusals(events []models.ADLEvent) int {
	n := 0
	for _, ev := range events {
		if ev.IsRefusal {
			n++
		}
	}
	return n
}
