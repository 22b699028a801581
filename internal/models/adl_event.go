package models

import (
	"strings"
	"time"
)

// AssistanceLevel 照护协助等级（由文本分类得出，不是原始数据）
type AssistanceLevel string

const (
	AssistanceIndependent  AssistanceLevel = "Independent"
	AssistanceSome         AssistanceLevel = "Some Assistance"
	AssistanceFull         AssistanceLevel = "Full Assistance"
	AssistanceRefused      AssistanceLevel = "Refused"
	AssistanceNotSpecified AssistanceLevel = "Not Specified"
)

// AllAssistanceLevels 固定顺序，用于分布统计和导出
var AllAssistanceLevels = []AssistanceLevel{
	AssistanceIndependent,
	AssistanceSome,
	AssistanceFull,
	AssistanceRefused,
	AssistanceNotSpecified,
}

// ParseAssistanceLevel 解析存储的等级字符串，空值或未知值返回 Not Specified
func ParseAssistanceLevel(raw string) AssistanceLevel {
	v := strings.TrimSpace(raw)
	for _, level := range AllAssistanceLevels {
		if strings.EqualFold(v, string(level)) {
			return level
		}
	}
	return AssistanceNotSpecified
}

// NumericScore 依赖程度数值：Independent=0, Some=1, Full=2
// Refused 和 Not Specified 不代表协助程度，返回 ok=false
func (a AssistanceLevel) NumericScore() (int, bool) {
	switch a {
	case AssistanceIndependent:
		return 0, true
	case AssistanceSome:
		return 1, true
	case AssistanceFull:
		return 2, true
	default:
		return 0, false
	}
}

// RawEvent 事件存储中的原始行（fact_adl_event）
type RawEvent struct {
	EventID            int64
	ResidentID         int64
	DomainID           int64
	EventTimestamp     time.Time
	LoggedTimestamp    *time.Time
	AssistanceLevelRaw string // 存储值，可能为空
	IsRefusalRaw       bool   // 存储值，可能已过期
	Title              string
	Description        string
}

// HasText 标题或描述中是否有非空白文本
func (r RawEvent) HasText() bool {
	return strings.TrimSpace(r.Title) != "" || strings.TrimSpace(r.Description) != ""
}

// ADLEvent 经过分类/校正后参与评分的照护事件
type ADLEvent struct {
	EventID         int64           `json:"event_id"`
	ResidentID      int64           `json:"resident_id"`
	DomainID        int64           `json:"domain_id"`
	EventTimestamp  time.Time       `json:"event_timestamp"`
	LoggedTimestamp *time.Time      `json:"logged_timestamp,omitempty"` // 仅审计用
	AssistanceLevel AssistanceLevel `json:"assistance_level"`
	IsRefusal       bool            `json:"is_refusal"`
	Title           string          `json:"event_title,omitempty"`
	Description     string          `json:"event_description,omitempty"`
}
