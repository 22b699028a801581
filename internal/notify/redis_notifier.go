// Package notify 将物化结果发布到 Redis（流 + 汇总缓存）和 MQTT（RED 告警）。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wisefido-care-scores/internal/models"

	"go.uber.org/zap"
)

// 流消息类型
const (
	KindSnapshot  = "snapshot"
	KindRiskAlert = "risk_alert"
)

// AllClients 未按客户过滤的运行在键和主题中的名称
const AllClients = "all"

var segmentReplacer = strings.NewReplacer("/", "-", "+", "-", "#", "-", ":", "-", " ", "_")

// ClientSegment 客户名转为可用于缓存键与 MQTT 主题的片段
func ClientSegment(client string) string {
	client = strings.TrimSpace(client)
	if client == "" {
		return AllClients
	}
	return segmentReplacer.Replace(client)
}

// SummaryKey 汇总缓存键，按客户隔离
func SummaryKey(client string, endDateID, periodDays int) string {
	return fmt.Sprintf("care-scores:summary:%s:%d:%d", ClientSegment(client), endDateID, periodDays)
}

// RedisNotifier 汇总写入 KV 缓存，汇总与告警写入 Redis Streams
type RedisNotifier struct {
	kv     KVStore
	stream StreamPublisher
	name   string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisNotifier 创建 Redis 通知出口
func NewRedisNotifier(kv KVStore, stream StreamPublisher, streamName string, ttl time.Duration, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		kv:     kv,
		stream: stream,
		name:   streamName,
		ttl:    ttl,
		logger: logger,
	}
}

// NotifySnapshot 缓存汇总并追加到流
func (n *RedisNotifier) NotifySnapshot(ctx context.Context, summary models.PeriodSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	key := SummaryKey(summary.Client, summary.EndDateID, summary.PeriodDays)
	if err := n.kv.Set(ctx, key, string(data), n.ttl); err != nil {
		return fmt.Errorf("failed to cache summary: %w", err)
	}

	id, err := n.stream.Publish(ctx, n.name, KindSnapshot, summary)
	if err != nil {
		return err
	}

	n.logger.Debug("Published snapshot summary",
		zap.String("key", key),
		zap.String("stream", n.name),
		zap.String("message_id", id),
	)
	return nil
}

// NotifyRiskAlerts 每条 RED 记录一条流消息
func (n *RedisNotifier) NotifyRiskAlerts(ctx context.Context, alerts []models.RiskAlert) error {
	for _, alert := range alerts {
		if _, err := n.stream.Publish(ctx, n.name, KindRiskAlert, alert); err != nil {
			return err
		}
	}
	return nil
}

// LatestSummary 读取缓存的汇总；client 为空读取全部客户的运行
func (n *RedisNotifier) LatestSummary(ctx context.Context, client string, endDateID, periodDays int) (*models.PeriodSummary, error) {
	raw, err := n.kv.Get(ctx, SummaryKey(client, endDateID, periodDays))
	if err != nil {
		return nil, err
	}
	var summary models.PeriodSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached summary: %w", err)
	}
	return &summary, nil
}
