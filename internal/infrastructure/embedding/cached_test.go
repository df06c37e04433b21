package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-writer/internal/config"
)

type countingEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (e *countingEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string(nil), texts...))
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len([]rune(t)))}
	}
	return out, nil
}

type memCache struct {
	mu      sync.Mutex
	data    map[string][]float64
	readErr error
	ttl     time.Duration
}

func (c *memCache) GetVectors(_ context.Context, keys []string) (map[string][]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	out := make(map[string][]float64)
	for _, k := range keys {
		if v, ok := c.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (c *memCache) SetVectors(_ context.Context, vectors map[string][]float64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range vectors {
		c.data[k] = v
	}
	c.ttl = ttl
	return nil
}

func TestCachedEmbedder_MissThenHit(t *testing.T) {
	inner := &countingEmbedder{}
	cache := &memCache{data: map[string][]float64{}}
	e := NewCachedEmbedder(inner, cache, "bge-m3", 0)
	ctx := context.Background()

	got, err := e.EmbedStrings(ctx, []string{"林远", "苏晴赶到"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2}, {4}}, got)
	assert.Len(t, cache.data, 2)
	assert.Equal(t, defaultCacheTTL, cache.ttl)

	// 只有未命中的文本会打到底层模型，结果顺序与输入一致
	got, err = e.EmbedStrings(ctx, []string{"新文本内容", "林远"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{5}, {2}}, got)
	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"新文本内容"}, inner.calls[1])

	_, err = e.EmbedStrings(ctx, []string{"林远"})
	require.NoError(t, err)
	assert.Len(t, inner.calls, 2)
}

func TestCachedEmbedder_KeyIncludesModel(t *testing.T) {
	a := &CachedEmbedder{model: "a"}
	b := &CachedEmbedder{model: "b"}
	assert.NotEqual(t, a.cacheKey("x"), b.cacheKey("x"))
	assert.Equal(t, a.cacheKey("x"), a.cacheKey("x"))
}

func TestCachedEmbedder_CacheReadErrorPassesThrough(t *testing.T) {
	inner := &countingEmbedder{}
	cache := &memCache{data: map[string][]float64{}, readErr: errors.New("redis down")}
	e := NewCachedEmbedder(inner, cache, "m", time.Hour)

	got, err := e.EmbedStrings(context.Background(), []string{"abc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3}}, got)
	assert.Equal(t, time.Hour, cache.ttl)
}

func TestCachedEmbedder_InnerError(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("quota")}
	e := NewCachedEmbedder(inner, &memCache{data: map[string][]float64{}}, "m", 0)
	_, err := e.EmbedStrings(context.Background(), []string{"abc"})
	assert.EqualError(t, err, "quota")
}

func TestNewCachedEmbedder_Passthrough(t *testing.T) {
	inner := &countingEmbedder{}
	assert.Same(t, inner, NewCachedEmbedder(inner, nil, "m", 0))
	assert.Nil(t, NewCachedEmbedder(nil, &memCache{}, "m", 0))

	got, err := NewCachedEmbedder(inner, &memCache{data: map[string][]float64{}}, "m", 0).EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewEinoEmbedder_DisabledWithoutEndpoint(t *testing.T) {
	e, err := NewEinoEmbedder(context.Background(), &config.EmbeddingConfig{})
	require.NoError(t, err)
	assert.Nil(t, e)
}
