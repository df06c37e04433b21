// Package wire 提供依赖注入配置
package wire

import (
	"context"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"z-novel-writer/internal/application/generation"
	"z-novel-writer/internal/application/retrieval"
	"z-novel-writer/internal/application/story/selection"
	"z-novel-writer/internal/application/synthesis"
	"z-novel-writer/internal/config"
	"z-novel-writer/internal/domain/repository"
	infraembedding "z-novel-writer/internal/infrastructure/embedding"
	"z-novel-writer/internal/infrastructure/llm"
	"z-novel-writer/internal/infrastructure/messaging"
	"z-novel-writer/internal/infrastructure/persistence/milvus"
	"z-novel-writer/internal/infrastructure/persistence/postgres"
	"z-novel-writer/internal/infrastructure/persistence/redis"
	"z-novel-writer/internal/interfaces/http/handler"
	workflowport "z-novel-writer/internal/workflow/port"
	"z-novel-writer/pkg/logger"
)

const (
	defaultStreamMaxLen = 100000
	vectorCachePrefix   = "z-novel"
)

// Worker 异步任务执行器依赖容器
type Worker struct {
	Consumer   *messaging.Consumer
	Vectorizer *retrieval.Vectorizer
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideVectorCache 提供 embedding 向量缓存
func ProvideVectorCache(client *redis.Client) *redis.Cache {
	return redis.NewCache(client, vectorCachePrefix)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideMilvusClientOptional Milvus 不可达时不阻塞启动，向量索引退化为章节行上的向量
func ProvideMilvusClientOptional(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	if !cfg.Vector.Milvus.Enabled {
		return nil, func() {}, nil
	}
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus not available, vector index disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideVectorStoreOptional 提供章节向量存储并确保集合存在；不可用时返回 nil
func ProvideVectorStoreOptional(ctx context.Context, cfg *config.Config, client *milvus.Client) retrieval.VectorStore {
	if client == nil {
		return nil
	}
	repo := milvus.NewRepository(client, cfg.Embedding.Dimension)
	if err := repo.EnsureChapterCollection(ctx); err != nil {
		logger.Warn(ctx, "failed to ensure chapter collection, vector index disabled", "error", err.Error())
		return nil
	}
	return repo
}

// ProvideEmbedderOptional 提供带缓存的 Embedder；未配置时返回 nil，选择与检索走非向量路径
func ProvideEmbedderOptional(ctx context.Context, cfg *config.Config, cache *redis.Cache) einoembedding.Embedder {
	embedder, err := infraembedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, vector features disabled", "error", err.Error())
		return nil
	}
	if embedder == nil {
		return nil
	}
	return infraembedding.NewCachedEmbedder(embedder, cache, cfg.Embedding.Model, cfg.Embedding.CacheTTL)
}

// ProvideSelectionParams 提供选择器参数
func ProvideSelectionParams(cfg *config.Config) selection.Params {
	s := cfg.Selection
	return selection.Params{
		MinRelevance:        s.MinRelevance,
		TokenRatio:          s.TokenRatio,
		MinEmbedRunes:       s.MinEmbedRunes,
		ExcerptRunes:        s.ExcerptRunes,
		KeywordZeroScoreCap: s.KeywordZeroScoreCap,
	}
}

// ProvideRetrievalEngine 提供双阶段检索引擎
func ProvideRetrievalEngine(cfg *config.Config, embedder einoembedding.Embedder, chapters repository.ChapterRepository, vectors retrieval.VectorStore) *retrieval.Engine {
	return retrieval.NewEngine(embedder, chapters, vectors, retrieval.Options{
		TopK:         cfg.Retrieval.TopK,
		TimeWindow:   cfg.Retrieval.TimeWindow,
		ExcerptRunes: cfg.Retrieval.ExcerptRunes,
	})
}

// ProvideVectorizer 提供章节向量化器
func ProvideVectorizer(embedder einoembedding.Embedder, chapters repository.ChapterRepository, vectors retrieval.VectorStore) *retrieval.Vectorizer {
	return retrieval.NewVectorizer(embedder, chapters, vectors, 0)
}

// ProvideSynthesizer 提供候选大纲合成器
func ProvideSynthesizer(cfg *config.Config, factory *llm.EinoFactory) *synthesis.Synthesizer {
	s := cfg.Synthesis
	return synthesis.NewSynthesizer(factory, synthesis.Options{
		PrimaryProvider:   s.PrimaryProvider,
		SecondaryProvider: s.SecondaryProvider,
		Temperatures:      s.Temperatures,
		AttemptTimeout:    s.AttemptTimeout,
		MaxAlternates:     s.MaxAlternates,
		MaxTokens:         s.MaxTokens,
	})
}

// OrchestratorDeps 编排器的仓储依赖
type OrchestratorDeps struct {
	Projects   repository.ProjectRepository
	Chapters   repository.ChapterRepository
	Outlines   repository.OutlineRepository
	Characters repository.CharacterRepository
	Settings   repository.SettingRepository
}

// ProvideOrchestrator 提供逐场景生成编排器
func ProvideOrchestrator(
	cfg *config.Config,
	repos OrchestratorDeps,
	factory *llm.EinoFactory,
	embedder einoembedding.Embedder,
	params selection.Params,
	engine *retrieval.Engine,
	decomposer *generation.BeatDecomposer,
	producer *messaging.Producer,
) *generation.Orchestrator {
	g := cfg.Generation
	provider := g.Provider
	if provider == "" {
		provider = cfg.LLM.DefaultProvider
	}
	// 未配置可用模型时不注入工厂，生成请求直接以 4011 失败
	var models workflowport.ChatModelFactory
	if factory.Configured() {
		models = factory
	} else {
		logger.Warn(context.Background(), "no llm provider configured, chapter generation disabled")
	}
	return generation.NewOrchestrator(generation.Dependencies{
		Projects:        repos.Projects,
		Chapters:        repos.Chapters,
		Outlines:        repos.Outlines,
		Characters:      repos.Characters,
		Settings:        repos.Settings,
		Factory:         models,
		ChapterSelector: selection.NewChapterSelector(embedder, params),
		SettingSelector: selection.NewSettingSelector(embedder, params),
		Retrieval:       engine,
		Decomposer:      decomposer,
		Queue:           producer,
	}, generation.Options{
		Provider:            provider,
		Model:               cfg.LLM.Providers[provider].Model,
		Temperature:         g.Temperature,
		MaxTokensPerScene:   g.MaxTokensPerScene,
		ConnectivityTimeout: g.ConnectivityTimeout,
		ChunkIdleTimeout:    g.ChunkIdleTimeout,
		RecentChapters:      g.RecentChapters,
		ContextTokenBudget:  g.ContextTokenBudget,
		SettingTokenBudget:  g.SettingTokenBudget,
		CharacterCap:        g.CharacterCap,
		CharacterFloor:      g.CharacterFloor,
		EventBuffer:         g.EventBuffer,
		RetrievalTopK:       cfg.Retrieval.TopK,
	})
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, redisClient *redis.Client, milvusClient *milvus.Client) *handler.HealthHandler {
	h := handler.NewHealthHandler(pg, redisClient, milvusClient)
	h.SetVersion(cfg.App.Version)
	return h
}

// ProvideVectorizeConsumer 提供章节向量化任务消费者
func ProvideVectorizeConsumer(cfg *config.Config, redisClient *redis.Client) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	return messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamChapterVectorize,
		Group:         messaging.ConsumerGroupVectorizer,
		ConsumerName:  messaging.DefaultConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
}
