package notify

import (
	"context"
	"errors"
	"time"

	commonredis "wisefido-care-scores/common/redis"
)

// ErrCacheMiss 表示缓存不存在
var ErrCacheMiss = errors.New("cache miss")

// KVStore 抽象的 KV 存储（用于在单元测试中替换 Redis）
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// StreamPublisher 抽象的流写入
type StreamPublisher interface {
	Publish(ctx context.Context, stream, kind string, data interface{}) (string, error)
}

// RedisKVStore 基于 go-redis 的 KV 实现
type RedisKVStore struct {
	client *commonredis.Client
}

func NewRedisKVStore(client *commonredis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, commonredis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// RedisStreamPublisher 基于 Redis Streams 的实现
type RedisStreamPublisher struct {
	client *commonredis.Client
}

func NewRedisStreamPublisher(client *commonredis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client}
}

func (r *RedisStreamPublisher) Publish(ctx context.Context, stream, kind string, data interface{}) (string, error) {
	return commonredis.PublishJSONToStream(ctx, r.client, stream, kind, data)
}
