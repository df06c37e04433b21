package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"golang.org/x/sync/singleflight"

	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/metrics"
)

const defaultCacheTTL = 24 * time.Hour

// VectorCache 向量缓存的最小依赖
type VectorCache interface {
	GetVectors(ctx context.Context, keys []string) (map[string][]float64, error)
	SetVectors(ctx context.Context, vectors map[string][]float64, ttl time.Duration) error
}

// CachedEmbedder 以文本哈希为键缓存向量；缓存不可用时直接透传
type CachedEmbedder struct {
	inner embedding.Embedder
	cache VectorCache
	model string
	ttl   time.Duration
	group singleflight.Group
}

var _ embedding.Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder 包装 Embedder；cache 为 nil 时返回 inner 本身
func NewCachedEmbedder(inner embedding.Embedder, cache VectorCache, model string, ttl time.Duration) embedding.Embedder {
	if inner == nil {
		return nil
	}
	if cache == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedEmbedder{inner: inner, cache: cache, model: model, ttl: ttl}
}

// EmbedStrings 先查缓存，未命中部分合并为一次批量调用
func (e *CachedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = e.cacheKey(t)
	}

	hits, err := e.cache.GetVectors(ctx, keys)
	if err != nil {
		metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "embedding cache read failed", "error", err)
		hits = map[string][]float64{}
	}

	out := make([][]float64, len(texts))
	var missIdx []int
	for i, k := range keys {
		if v, ok := hits[k]; ok {
			out[i] = v
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			continue
		}
		missIdx = append(missIdx, i)
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(missIdx))
	missKeys := make([]string, len(missIdx))
	for j, i := range missIdx {
		missTexts[j] = texts[i]
		missKeys[j] = keys[i]
	}

	v, err, _ := e.group.Do(strings.Join(missKeys, ","), func() (interface{}, error) {
		return e.inner.EmbedStrings(ctx, missTexts, opts...)
	})
	if err != nil {
		return nil, err
	}
	vecs := v.([][]float64)
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d want %d", len(vecs), len(missTexts))
	}

	fresh := make(map[string][]float64, len(vecs))
	for j, i := range missIdx {
		out[i] = vecs[j]
		fresh[missKeys[j]] = vecs[j]
	}
	if err := e.cache.SetVectors(ctx, fresh, e.ttl); err != nil {
		logger.Warn(ctx, "embedding cache write failed", "error", err)
	}
	return out, nil
}

func (e *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + e.model + ":" + hex.EncodeToString(sum[:])
}
