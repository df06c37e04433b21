package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-writer/internal/application/retrieval"
	"z-novel-writer/pkg/logger"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
	routes map[string]Stream
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
		routes: map[string]Stream{
			retrieval.JobTypeChapterVectorize: StreamChapterVectorize,
		},
	}
}

// StreamFor 任务类型对应的流，未登记的类型进入默认流
func (p *Producer) StreamFor(jobType string) Stream {
	if s, ok := p.routes[jobType]; ok {
		return s
	}
	return StreamDefault
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// Enqueue 投递后台任务，实现 generation.TaskQueue
func (p *Producer) Enqueue(ctx context.Context, jobType string, payload any) error {
	projectID := ""
	if job, ok := payload.(retrieval.VectorizeJob); ok {
		projectID = job.ProjectID
	}
	msg, err := NewMessage(uuid.NewString(), jobType, projectID, payload)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}
	if v := ctx.Value(logger.RequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			msg.SetMetadata("request_id", s)
		}
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().HasTraceID() {
		msg.SetMetadata("trace_id", span.SpanContext().TraceID().String())
	}

	_, err = p.Publish(ctx, p.StreamFor(jobType), msg)
	return err
}
