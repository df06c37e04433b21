// Package main 异步任务执行器入口（job-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"z-novel-writer/internal/application/retrieval"
	"z-novel-writer/internal/config"
	"z-novel-writer/internal/infrastructure/eino/callback"
	"z-novel-writer/internal/infrastructure/messaging"
	"z-novel-writer/internal/wire"
	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	callback.Init()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	if !worker.Vectorizer.Enabled() {
		logger.Warn(ctx, "embedding not configured, vectorize jobs will be retried until dead-lettered")
	}

	worker.Consumer.RegisterHandler(retrieval.JobTypeChapterVectorize, func(ctx context.Context, msg *messaging.Message) error {
		var job retrieval.VectorizeJob
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		if job.ProjectID == "" {
			job.ProjectID = msg.ProjectID
		}
		ctx = logger.WithContext(ctx, logger.ChapterIDKey, job.ChapterID)
		return worker.Vectorizer.VectorizeChapter(ctx, job)
	})

	if err := worker.Consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	log := logger.FromContext(ctx)
	log.Info("job-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("job-worker shutting down")
	worker.Consumer.Stop()
}
