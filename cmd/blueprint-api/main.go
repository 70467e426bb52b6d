// Package main 章节目录 HTTP 服务入口（blueprint-api）
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"z-novel-blueprint/internal/application/blueprint/generator"
	"z-novel-blueprint/internal/config"
	"z-novel-blueprint/internal/domain/repository"
	"z-novel-blueprint/internal/infrastructure/eino/callback"
	"z-novel-blueprint/internal/infrastructure/llm"
	"z-novel-blueprint/internal/infrastructure/lock"
	"z-novel-blueprint/internal/infrastructure/messaging"
	"z-novel-blueprint/internal/infrastructure/persistence/filestore"
	"z-novel-blueprint/internal/infrastructure/persistence/redis"
	"z-novel-blueprint/internal/interfaces/http/handler"
	"z-novel-blueprint/internal/interfaces/http/router"
	"z-novel-blueprint/internal/workflow/chain"
	"z-novel-blueprint/pkg/logger"
	"z-novel-blueprint/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "starting blueprint-api",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "blueprint-api",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	callback.Init()

	// redis 只在锁后端为 redis 时必需；不可用时关闭异步任务接口
	var (
		redisClient *redis.Client
		locker      repository.RangeLocker = lock.NewManager()
		jobHandler                         = handler.NewJobHandler(nil, nil)
		checks                             = map[string]handler.Pinger{}
	)
	redisClient, err = redis.NewClient(&cfg.Cache.Redis)
	switch {
	case err != nil && cfg.Lock.Backend == "redis":
		logger.Fatal(ctx, "failed to init redis", err)
	case err != nil:
		logger.Warn(ctx, "redis unavailable, async jobs disabled", "error", err.Error())
	default:
		defer func() { _ = redisClient.Close() }()
		if cfg.Lock.Backend == "redis" {
			locker = redis.NewLocker(redisClient)
		}
		producer := messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
		jobHandler = handler.NewJobHandler(producer, redis.NewJobRepository(redisClient, 0))
		checks["redis"] = redisClient
	}

	store := filestore.NewOsStore(&cfg.Blueprint)
	factory := llm.NewEinoFactory(&cfg.LLM)
	maxTokens := cfg.Blueprint.MaxTokens
	invoker := chain.NewModelInvoker(factory, cfg.ProviderName(), chain.ModelOptions{MaxTokens: &maxTokens})
	gen := generator.NewGenerator(store,
		chain.NewBlueprintChain(invoker, cfg.Blueprint.StreamChunkRunes),
		locker,
		generator.OptionsFromConfig(cfg),
	)

	r := router.New(cfg, router.Handlers{
		Blueprint: handler.NewBlueprintHandler(store, gen, locker, cfg.Blueprint.FallbackUnitWidth),
		Job:       jobHandler,
		Health:    handler.NewHealthHandler(Version, checks),
	})

	httpCfg := cfg.Server.HTTP
	srv := &http.Server{
		Addr:         httpCfg.Addr(),
		Handler:      r.Engine(),
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
		IdleTimeout:  httpCfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Fatal(ctx, "http server error", err)
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "server forced to shutdown", err)
	}
	logger.Info(context.Background(), "server exited")
}
