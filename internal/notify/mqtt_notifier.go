package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"wisefido-care-scores/internal/models"

	"go.uber.org/zap"
)

// Publisher MQTT 发布接口（common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// MQTTNotifier 告警发布到 {topic}/{resident_id}/{domain_id}，汇总以 retained 消息发布到 {topic}/summary/{client|all}/{period_days}
type MQTTNotifier struct {
	client Publisher
	topic  string
	logger *zap.Logger
}

// NewMQTTNotifier 创建 MQTT 通知出口
func NewMQTTNotifier(client Publisher, topic string, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic, logger: logger}
}

func (n *MQTTNotifier) NotifySnapshot(ctx context.Context, summary models.PeriodSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	topic := fmt.Sprintf("%s/summary/%s/%d", n.topic, ClientSegment(summary.Client), summary.PeriodDays)
	return n.client.Publish(topic, true, payload)
}

func (n *MQTTNotifier) NotifyRiskAlerts(ctx context.Context, alerts []models.RiskAlert) error {
	failed := 0
	var lastErr error
	for _, alert := range alerts {
		payload, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}
		topic := fmt.Sprintf("%s/%d/%d", n.topic, alert.ResidentID, alert.DomainID)
		if err := n.client.Publish(topic, false, payload); err != nil {
			failed++
			lastErr = err
			continue
		}
		n.logger.Info("Published risk alert",
			zap.String("topic", topic),
			zap.String("resident", alert.ResidentName),
			zap.String("domain", alert.DomainName),
			zap.String("overall_risk", string(alert.OverallRisk)),
		)
	}
	if lastErr != nil {
		return fmt.Errorf("%d of %d alerts not published: %w", failed, len(alerts), lastErr)
	}
	return nil
}
