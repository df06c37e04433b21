package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var cacheTracer = otel.Tracer("redis.cache")

// Cache 基于 Redis 的 JSON 缓存
type Cache struct {
	client *Client
	prefix string
}

// NewCache 创建缓存服务；prefix 作为所有键的前缀
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// GetVectors 批量读取向量；未命中的键不出现在返回值中
func (c *Cache) GetVectors(ctx context.Context, keys []string) (map[string][]float64, error) {
	out := make(map[string][]float64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	ctx, span := cacheTracer.Start(ctx, "cache.GetVectors",
		trace.WithAttributes(attribute.Int("cache.key_count", len(keys))))
	defer span.End()

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	vals, err := c.client.rdb.MGet(ctx, full...).Result()
	if err != nil && err != redis.Nil {
		span.RecordError(err)
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		var vec []float64
		if err := json.Unmarshal([]byte(s), &vec); err != nil {
			continue
		}
		out[keys[i]] = vec
	}
	span.SetAttributes(attribute.Int("cache.hit_count", len(out)))
	return out, nil
}

// SetVectors 批量写入向量
func (c *Cache) SetVectors(ctx context.Context, vectors map[string][]float64, ttl time.Duration) error {
	if len(vectors) == 0 {
		return nil
	}
	ctx, span := cacheTracer.Start(ctx, "cache.SetVectors",
		trace.WithAttributes(
			attribute.Int("cache.key_count", len(vectors)),
			attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	pipe := c.client.rdb.Pipeline()
	for k, vec := range vectors {
		b, err := json.Marshal(vec)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to marshal vector: %w", err)
		}
		pipe.Set(ctx, c.key(k), b, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set vectors: %w", err)
	}
	return nil
}

// Delete 删除缓存
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...)
}
