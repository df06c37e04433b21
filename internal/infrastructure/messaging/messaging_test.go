package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-writer/internal/application/retrieval"
)

func TestCalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(1))
	assert.Equal(t, 8*time.Second, cfg.CalculateBackoff(3))
	assert.Equal(t, 10*time.Second, cfg.CalculateBackoff(4))
	assert.Equal(t, 10*time.Second, cfg.CalculateBackoff(50))
}

func TestNewConsumerDefaults(t *testing.T) {
	c := NewConsumer(nil, ConsumerConfig{
		Stream:  StreamChapterVectorize,
		Group:   ConsumerGroupVectorizer,
		Backoff: BackoffConfig{Initial: time.Second, Max: 10 * time.Minute, Multiplier: 0.5},
	})
	assert.Equal(t, 5*time.Second, c.blockTimeout)
	assert.Equal(t, 3, c.retryLimit)
	assert.Equal(t, 1.0, c.backoff.Multiplier)
	// 认领空闲阈值至少是最大退避的两倍
	assert.Equal(t, 20*time.Minute, c.reclaimIdle)

	d := NewConsumer(nil, ConsumerConfig{})
	assert.Equal(t, DefaultBackoffConfig(), d.backoff)
	assert.Equal(t, 5*time.Minute, d.reclaimIdle)
}

func TestProducerStreamFor(t *testing.T) {
	p := NewProducer(nil, 0)
	assert.Equal(t, int64(100000), p.maxLen)
	assert.Equal(t, StreamChapterVectorize, p.StreamFor(retrieval.JobTypeChapterVectorize))
	assert.Equal(t, StreamDefault, p.StreamFor("unknown"))
	assert.Equal(t, "dlq:stream:chapter:vectorize", StreamChapterVectorize.DLQStream())
}

func TestMessageRoundTripThroughStreamValues(t *testing.T) {
	msg, err := NewMessage("m1", retrieval.JobTypeChapterVectorize, "p1", retrieval.VectorizeJob{ProjectID: "p1", ChapterID: "c1", Version: 3})
	require.NoError(t, err)
	msg.SetMetadata("request_id", "req-1")

	// 与 Publish 写入的形状一致
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	decoded, err := decodeMessage(redis.XMessage{ID: "1-0", Values: map[string]any{"data": string(data)}})
	require.NoError(t, err)

	assert.Equal(t, "m1", decoded.ID)
	assert.Equal(t, "req-1", decoded.GetMetadata("request_id"))
	var job retrieval.VectorizeJob
	require.NoError(t, decoded.UnmarshalPayload(&job))
	assert.Equal(t, retrieval.VectorizeJob{ProjectID: "p1", ChapterID: "c1", Version: 3}, job)

	_, err = decodeMessage(redis.XMessage{ID: "2-0", Values: map[string]any{"other": "x"}})
	assert.Error(t, err)
	_, err = decodeMessage(redis.XMessage{ID: "3-0", Values: map[string]any{"data": "{not json"}})
	assert.Error(t, err)
}

func TestRegisterHandlerAndStopWithoutStart(t *testing.T) {
	c := NewConsumer(nil, ConsumerConfig{Stream: StreamDefault, Group: ConsumerGroupVectorizer})
	c.RegisterHandler("noop", func(context.Context, *Message) error { return nil })
	_, ok := c.handlers["noop"]
	assert.True(t, ok)
	assert.NotPanics(t, c.Stop)
}

func TestMaxDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, maxDuration(time.Second, 2*time.Second))
	assert.Equal(t, 2*time.Second, maxDuration(2*time.Second, time.Second))
}
