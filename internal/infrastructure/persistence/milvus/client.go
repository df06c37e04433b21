// Package milvus 章节向量的 Milvus 存取
package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-writer/internal/config"
	"z-novel-writer/pkg/metrics"
)

var tracer = otel.Tracer("milvus")

// Client Milvus 连接与集合命名
type Client struct {
	milvus client.Client
	config *config.MilvusConfig
}

// NewClient 连接 Milvus；配置了用户名时启用鉴权
func NewClient(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	conf := client.Config{Address: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
	if strings.TrimSpace(cfg.User) != "" {
		conf.Username = cfg.User
		conf.Password = cfg.Password
	}
	mc, err := client.NewClient(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("connect milvus %s: %w", conf.Address, err)
	}
	return &Client{milvus: mc, config: cfg}, nil
}

// Close 关闭连接
func (c *Client) Close() error {
	return c.milvus.Close()
}

// HealthCheck 以章节向量集合能否访问作为健康标准
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.HealthCheck")
	defer span.End()

	if _, err := c.milvus.HasCollection(ctx, c.CollectionName(CollectionChapterVectors)); err != nil {
		span.RecordError(err)
		metrics.MilvusCallTotal.WithLabelValues("health", "error").Inc()
		return fmt.Errorf("milvus unreachable: %w", err)
	}
	return nil
}

// CollectionName 加上项目级前缀，如 z_chapter_vectors
func (c *Client) CollectionName(name string) string {
	if c.config.CollectionPrefix == "" {
		return name
	}
	return c.config.CollectionPrefix + "_" + name
}

// HasCollection 集合是否已创建
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "milvus.HasCollection",
		trace.WithAttributes(attribute.String("collection", c.CollectionName(name))))
	defer span.End()
	return c.milvus.HasCollection(ctx, c.CollectionName(name))
}

// LoadCollection 加载到内存后才能查询
func (c *Client) LoadCollection(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "milvus.LoadCollection",
		trace.WithAttributes(attribute.String("collection", c.CollectionName(name))))
	defer span.End()
	return c.milvus.LoadCollection(ctx, c.CollectionName(name), false)
}
