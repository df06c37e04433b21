//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"z-novel-writer/internal/application/generation"
	"z-novel-writer/internal/application/synthesis"
	"z-novel-writer/internal/config"
	"z-novel-writer/internal/domain/repository"
	"z-novel-writer/internal/infrastructure/llm"
	"z-novel-writer/internal/infrastructure/persistence/postgres"
	"z-novel-writer/internal/interfaces/http/handler"
	"z-novel-writer/internal/interfaces/http/router"
	workflowport "z-novel-writer/internal/workflow/port"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		VectorSet,
		RetrievalSet,
		GenerationSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化异步任务执行器
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		VectorSet,
		ProvideVectorizer,
		ProvideVectorizeConsumer,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewProjectRepository,
	postgres.NewChapterRepository,
	postgres.NewOutlineRepository,
	postgres.NewSceneRepository,
	postgres.NewCharacterRepository,
	postgres.NewSettingRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.ProjectRepository), new(*postgres.ProjectRepository)),
	wire.Bind(new(repository.ChapterRepository), new(*postgres.ChapterRepository)),
	wire.Bind(new(repository.OutlineRepository), new(*postgres.OutlineRepository)),
	wire.Bind(new(repository.SceneRepository), new(*postgres.SceneRepository)),
	wire.Bind(new(repository.CharacterRepository), new(*postgres.CharacterRepository)),
	wire.Bind(new(repository.SettingRepository), new(*postgres.SettingRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideVectorCache,
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// VectorSet 可选的 Embedder 与 Milvus 向量存储
var VectorSet = wire.NewSet(
	ProvideMilvusClientOptional,
	ProvideVectorStoreOptional,
	ProvideEmbedderOptional,
)

// RetrievalSet 选择器参数与检索引擎
var RetrievalSet = wire.NewSet(
	ProvideSelectionParams,
	ProvideRetrievalEngine,
)

// GenerationSet 大纲合成与场景生成
var GenerationSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	ProvideSynthesizer,
	synthesis.NewService,
	generation.NewBeatDecomposer,
	wire.Struct(new(OrchestratorDeps), "*"),
	ProvideOrchestrator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewGenerationHandler,
	handler.NewOutlineHandler,
	handler.NewRetrievalHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
