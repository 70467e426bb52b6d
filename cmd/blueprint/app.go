package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"z-novel-blueprint/internal/application/blueprint/generator"
	"z-novel-blueprint/internal/config"
	"z-novel-blueprint/internal/domain/repository"
	"z-novel-blueprint/internal/infrastructure/eino/callback"
	"z-novel-blueprint/internal/infrastructure/llm"
	"z-novel-blueprint/internal/infrastructure/lock"
	"z-novel-blueprint/internal/infrastructure/persistence/filestore"
	"z-novel-blueprint/internal/infrastructure/persistence/redis"
	"z-novel-blueprint/internal/workflow/chain"
	"z-novel-blueprint/pkg/logger"
	"z-novel-blueprint/pkg/tracer"
)

// app 命令共享的依赖
type app struct {
	cfg   *config.Config
	store *filestore.Store
	redis *redis.Client

	closers []func(context.Context) error
}

// newApp 加载配置并初始化日志与追踪；日志写到 stderr，stdout 留给命令输出
func newApp(ctx context.Context) (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadFrom(configDir)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Blueprint.DataDir = dataDir
	}
	level := cfg.Observability.Logging.Level
	if verbose {
		level = "debug"
	}
	logger.InitWithWriter(os.Stderr, level, cfg.Observability.Logging.Format)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "blueprint-cli",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer: %w", err)
	}

	return &app{
		cfg:     cfg,
		store:   filestore.NewOsStore(&cfg.Blueprint),
		closers: []func(context.Context) error{shutdown},
	}, nil
}

// generator 组装 LLM 链路与区间锁
func (a *app) generator() (*generator.Generator, error) {
	callback.Init()

	factory := llm.NewEinoFactory(&a.cfg.LLM)
	maxTokens := a.cfg.Blueprint.MaxTokens
	invoker := chain.NewModelInvoker(factory, a.cfg.ProviderName(), chain.ModelOptions{MaxTokens: &maxTokens})
	bp := chain.NewBlueprintChain(invoker, a.cfg.Blueprint.StreamChunkRunes)

	locker, err := a.locker()
	if err != nil {
		return nil, err
	}
	return generator.NewGenerator(a.store, bp, locker, generator.OptionsFromConfig(a.cfg)), nil
}

func (a *app) locker() (repository.RangeLocker, error) {
	if a.cfg.Lock.Backend != "redis" {
		return lock.NewManager(), nil
	}
	client, err := a.redisClient()
	if err != nil {
		return nil, err
	}
	return redis.NewLocker(client), nil
}

func (a *app) redisClient() (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client, err := redis.NewClient(&a.cfg.Cache.Redis)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	return client, nil
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i](ctx)
	}
}
