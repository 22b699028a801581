package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultStreamMaxLen 流的最大保留条数
const DefaultStreamMaxLen = 10000

// PublishJSONToStream 将 data 序列化为 JSON 后写入 Redis Streams
// 消息字段：data（JSON 字符串）、kind、timestamp（unix 秒）
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream, kind string, data interface{}) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream payload: %w", err)
	}

	id, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: DefaultStreamMaxLen,
		Values: map[string]interface{}{
			"data":      string(payload),
			"kind":      kind,
			"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}
	return id, nil
}
