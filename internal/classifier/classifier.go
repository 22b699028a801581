// Package classifier 将自由文本照护记录归类为协助等级与拒绝标记。
// 规则按优先级自上而下匹配，第一条命中即返回。
package classifier

import (
	"strings"

	"wisefido-care-scores/internal/models"
)

// Rule 一条分类规则：任一关键词出现在文本中即命中
type Rule struct {
	Name      string
	Keywords  []string
	Level     models.AssistanceLevel
	IsRefusal bool
}

// RuleAway 外出/请假/住院规则名
const RuleAway = "away"

// Rules 有序规则表
// away 规则必须排在第一位：外出/住院表示缺席，既不计入风险也不计入拒绝
var Rules = []Rule{
	{
		Name:     RuleAway,
		Keywords: []string{" away", "away ", "away.", "away,", "on leave", "out with family", "at hospital"},
		Level:    models.AssistanceNotSpecified,
	},
	{
		Name:      "refusal",
		Keywords:  []string{"refused", "declined", "didn't want", "did not want", "skipped"},
		Level:     models.AssistanceRefused,
		IsRefusal: true,
	},
	{
		Name:     "independent",
		Keywords: []string{"on his own", "on her own", "independently", "dressed herself", "dressed himself"},
		Level:    models.AssistanceIndependent,
	},
	{
		Name:     "full_assistance",
		Keywords: []string{"full support", "full assistance", "fully assisted"},
		Level:    models.AssistanceFull,
	},
	{
		Name:     "some_assistance",
		Keywords: []string{"with assistance", "some assistance", "prompting", "prompted", "helped"},
		Level:    models.AssistanceSome,
	},
}

// normalize 拼接 description + title 并转小写
func normalize(description, title string) string {
	return strings.ToLower(description + " " + title)
}

// Match 返回第一条命中的规则；无命中返回 nil
func Match(description, title string) *Rule {
	text := normalize(description, title)
	for i := range Rules {
		for _, kw := range Rules[i].Keywords {
			if strings.Contains(text, kw) {
				return &Rules[i]
			}
		}
	}
	return nil
}

// Classify 返回协助等级和是否拒绝，无命中时为 Not Specified
func Classify(description, title string) (models.AssistanceLevel, bool) {
	if r := Match(description, title); r != nil {
		return r.Level, r.IsRefusal
	}
	return models.AssistanceNotSpecified, false
}

// IsRefusal 文本是否表示拒绝（外出记录不算拒绝）
func IsRefusal(description, title string) bool {
	_, refused := Classify(description, title)
	return refused
}

// Reconcile 将存储事件转换为评分用事件
//
// 有文本时以文本重新计算拒绝标记，存储的布尔值可能来自其他系统或已过期；
// 没有任何文本时才使用存储值。协助等级与拒绝标记保持一致：
// 拒绝时为 Refused；外出记录为 Not Specified；存储等级为 Refused 但文本不再表示拒绝时，以文本重新分类；
// 存储等级为空或无法识别时，以文本分类补齐。
func Reconcile(raw models.RawEvent) models.ADLEvent {
	ev := models.ADLEvent{
		EventID:         raw.EventID,
		ResidentID:      raw.ResidentID,
		DomainID:        raw.DomainID,
		EventTimestamp:  raw.EventTimestamp,
		LoggedTimestamp: raw.LoggedTimestamp,
		Title:           raw.Title,
		Description:     raw.Description,
	}

	stored := models.ParseAssistanceLevel(raw.AssistanceLevelRaw)

	if !raw.HasText() {
		ev.IsRefusal = raw.IsRefusalRaw
		ev.AssistanceLevel = stored
		if ev.IsRefusal {
			ev.AssistanceLevel = models.AssistanceRefused
		}
		return ev
	}

	level, refused := models.AssistanceNotSpecified, false
	rule := Match(raw.Description, raw.Title)
	if rule != nil {
		level, refused = rule.Level, rule.IsRefusal
	}
	ev.IsRefusal = refused
	switch {
	case refused:
		ev.AssistanceLevel = models.AssistanceRefused
	case rule != nil && rule.Name == RuleAway:
		ev.AssistanceLevel = models.AssistanceNotSpecified
	case stored == models.AssistanceRefused, stored == models.AssistanceNotSpecified:
		ev.AssistanceLevel = level
	default:
		ev.AssistanceLevel = stored
	}
	return ev
}

// ReconcileAll 批量校正，保持输入顺序
func ReconcileAll(raws []models.RawEvent) []models.ADLEvent {
	events := make([]models.ADLEvent, 0, len(raws))
	for _, raw := range raws {
		events = append(events, Reconcile(raw))
	}
	return events
}
