// Package redis 提供基于 Redis 的分布式锁与任务状态存储
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"z-novel-blueprint/internal/config"
)

var tracer = otel.Tracer("blueprint/redis")

const pingTimeout = 5 * time.Second

// Client 锁与任务存储共用的连接
type Client struct {
	rdb *redis.Client
}

func options(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// NewClient 连接并确认 Redis 可用
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	c := &Client{rdb: redis.NewClient(options(cfg))}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := c.HealthCheck(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr(), err)
	}
	return c, nil
}

// Redis 底层客户端，供消息队列与脚本使用
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck 就绪检查
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.traced(ctx, "ping", "", func(ctx context.Context) error {
		pong, err := c.rdb.Ping(ctx).Result()
		if err != nil {
			return err
		}
		if pong != "PONG" {
			return fmt.Errorf("unexpected ping response %q", pong)
		}
		return nil
	})
}

// traced 为单条命令建立 span；redis.Nil 不视为错误
func (c *Client) traced(ctx context.Context, op, key string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	if key != "" {
		attrs = append(attrs, attribute.String("redis.key", key))
	}
	ctx, span := tracer.Start(ctx, "redis."+op, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn(ctx)
	if err != nil && !IsNil(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) get(ctx context.Context, key string) (raw []byte, err error) {
	err = c.traced(ctx, "get", key, func(ctx context.Context) error {
		raw, err = c.rdb.Get(ctx, key).Bytes()
		return err
	})
	return raw, err
}

func (c *Client) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.traced(ctx, "set", key, func(ctx context.Context) error {
		return c.rdb.Set(ctx, key, value, ttl).Err()
	}, attribute.Int64("redis.ttl_ms", ttl.Milliseconds()))
}

// claim SET NX PX，键已存在时返回 false
func (c *Client) claim(ctx context.Context, key, token string, ttl time.Duration) (ok bool, err error) {
	err = c.traced(ctx, "set_nx", key, func(ctx context.Context) error {
		ok, err = c.rdb.SetNX(ctx, key, token, ttl).Result()
		return err
	}, attribute.Int64("redis.ttl_ms", ttl.Milliseconds()))
	return ok, err
}

// remaining 键的剩余存活时间，键不存在或无过期时间时为负数
func (c *Client) remaining(ctx context.Context, key string) (left time.Duration, err error) {
	err = c.traced(ctx, "pttl", key, func(ctx context.Context) error {
		left, err = c.rdb.PTTL(ctx, key).Result()
		return err
	})
	return left, err
}

// IsNil 键不存在
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
