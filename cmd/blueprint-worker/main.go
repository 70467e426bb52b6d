// Package main 异步目录生成任务执行器入口（blueprint-worker）
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"z-novel-blueprint/internal/application/blueprint/generator"
	"z-novel-blueprint/internal/application/blueprint/jobs"
	"z-novel-blueprint/internal/config"
	"z-novel-blueprint/internal/infrastructure/eino/callback"
	"z-novel-blueprint/internal/infrastructure/llm"
	"z-novel-blueprint/internal/infrastructure/messaging"
	"z-novel-blueprint/internal/infrastructure/persistence/filestore"
	"z-novel-blueprint/internal/infrastructure/persistence/redis"
	"z-novel-blueprint/internal/workflow/chain"
	"z-novel-blueprint/pkg/logger"
	"z-novel-blueprint/pkg/tracer"
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

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "blueprint-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	callback.Init()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	// 多个 worker 共享同一份数据目录，区间锁必须走 redis
	store := filestore.NewOsStore(&cfg.Blueprint)
	factory := llm.NewEinoFactory(&cfg.LLM)
	maxTokens := cfg.Blueprint.MaxTokens
	invoker := chain.NewModelInvoker(factory, cfg.ProviderName(), chain.ModelOptions{MaxTokens: &maxTokens})
	gen := generator.NewGenerator(store,
		chain.NewBlueprintChain(invoker, cfg.Blueprint.StreamChunkRunes),
		redis.NewLocker(redisClient),
		generator.OptionsFromConfig(cfg),
	)
	handler := jobs.NewHandler(gen, redis.NewJobRepository(redisClient, 0))

	streamCfg := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamBlueprintGen,
		Group:         messaging.GenWorkerGroup(streamCfg.ConsumerGroupPrefix),
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  streamCfg.BlockTimeout,
		ClaimInterval: streamCfg.ClaimInterval,
		RetryLimit:    streamCfg.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    streamCfg.RetryBackoff.Initial,
			Max:        streamCfg.RetryBackoff.Max,
			Multiplier: streamCfg.RetryBackoff.Multiplier,
		},
	})

	consumer.HandleJobs(handler.Handle, jobs.IsPermanent)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error { return consumer.WatchDeadLetters(gctx, 10) })

	metricsCfg := cfg.Observability.Metrics
	if metricsCfg.Enabled {
		mux := http.NewServeMux()
		mux.Handle(metricsCfg.Path, promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := redisClient.HealthCheck(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		})
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", metricsCfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	logger.Info(ctx, "blueprint-worker started", "metrics", metricsCfg.Enabled)
	if err := g.Wait(); err != nil {
		logger.Error(ctx, "blueprint-worker stopped with error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "blueprint-worker shut down")
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
