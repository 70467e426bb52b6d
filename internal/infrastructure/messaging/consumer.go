package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"z-novel-blueprint/internal/domain/entity"
	"z-novel-blueprint/pkg/logger"
	"z-novel-blueprint/pkg/metrics"
)

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, msg *Message) error

// ErrPermanent 处理器返回包装了该错误的错误时，消息直接进入死信队列不再重试
var ErrPermanent = errors.New("permanent failure")

// pendingBatch 每轮检查的 pending 条数
const pendingBatch = 20

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

func (cfg ConsumerConfig) withDefaults() ConsumerConfig {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}
	return cfg
}

// Consumer 消费者组中的一个成员
// 失败的消息留在 pending 中，退避到期后由同一消费者重新处理；
// 其他消费者崩溃遗留的消息在空闲超过 staleAfter 后被接管。
type Consumer struct {
	client     *redis.Client
	cfg        ConsumerConfig
	staleAfter time.Duration

	mu       sync.RWMutex
	handlers map[string]MessageHandler
	running  atomic.Bool
}

// NewConsumer 创建消息消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	cfg = cfg.withDefaults()
	return &Consumer{
		client:     client,
		cfg:        cfg,
		staleAfter: max(5*time.Minute, 2*cfg.Backoff.Max),
		handlers:   make(map[string]MessageHandler),
	}
}

// RegisterHandler 注册消息处理器
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// HandleJobs 为全部目录任务类型注册处理函数
// 载荷无法解析或 permanent 判定为不可重试的错误直接进入死信队列。
func (c *Consumer) HandleJobs(handle func(context.Context, *entity.BlueprintJob) error, permanent func(error) bool) {
	h := func(ctx context.Context, msg *Message) error {
		job, err := msg.Job()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		if err := handle(ctx, job); err != nil {
			if permanent != nil && permanent(err) {
				return fmt.Errorf("%w: %v", ErrPermanent, err)
			}
			return err
		}
		return nil
	}
	for _, t := range []entity.JobType{entity.JobTypeBlueprintRange, entity.JobTypeBlueprintResume} {
		c.RegisterHandler(string(t), h)
	}
}

func (c *Consumer) stream() string { return string(c.cfg.Stream) }
func (c *Consumer) group() string  { return string(c.cfg.Group) }

// Run 创建消费者组并阻塞消费，直到 ctx 取消
func (c *Consumer) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("consumer already running")
	}
	defer c.running.Store(false)

	err := c.client.XGroupCreateMkStream(ctx, c.stream(), c.group(), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", c.group(), err)
	}
	logger.Info(ctx, "consumer started",
		"stream", c.stream(),
		"group", c.group(),
		"consumer", c.cfg.ConsumerName,
	)

	var lastSweep time.Time
	for ctx.Err() == nil {
		c.retryDue(ctx)
		if time.Since(lastSweep) >= c.cfg.ClaimInterval {
			c.takeOverStale(ctx)
			c.observeLag(ctx)
			lastSweep = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group(),
			Consumer: c.cfg.ConsumerName,
			Streams:  []string{c.stream(), ">"},
			Count:    1,
			Block:    c.cfg.BlockTimeout,
		}).Result()
		switch {
		case err == nil:
			for _, s := range streams {
				for _, xmsg := range s.Messages {
					c.dispatch(ctx, xmsg)
				}
			}
		case errors.Is(err, redis.Nil) || ctx.Err() != nil:
		default:
			logger.Error(ctx, "failed to read from stream", err)
			sleepCtx(ctx, time.Second)
		}
	}
	logger.Info(ctx, "consumer stopped")
	return nil
}

func decode(xmsg redis.XMessage) (*Message, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, errors.New("missing data field")
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// dispatch 处理单条消息；成功、无法解析或无处理器时确认
func (c *Consumer) dispatch(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "messaging.consume", trace.WithAttributes(
		attribute.String("stream", c.stream()),
		attribute.String("stream.message_id", xmsg.ID),
	))
	defer span.End()

	msg, err := decode(xmsg)
	if err != nil {
		logger.Error(ctx, "invalid message format", err, "message_id", xmsg.ID)
		c.settle(ctx, xmsg.ID, "invalid")
		return
	}
	ctx = messageContext(ctx, msg)
	span.SetAttributes(
		attribute.String("job.id", msg.ID),
		attribute.String("job.type", msg.Type),
		attribute.String("novel.id", msg.NovelID),
	)

	c.mu.RLock()
	handler, ok := c.handlers[msg.Type]
	c.mu.RUnlock()
	if !ok {
		logger.Warn(ctx, "no handler for message type", "type", msg.Type)
		c.settle(ctx, xmsg.ID, "unhandled")
		return
	}

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.onFailure(ctx, xmsg.ID, msg, err)
		return
	}
	c.settle(ctx, xmsg.ID, "success")
}

func messageContext(ctx context.Context, msg *Message) context.Context {
	ctx = logger.WithContext(ctx, logger.JobIDKey, msg.ID)
	for key, v := range map[logger.ContextKey]string{
		logger.NovelIDKey:   msg.NovelID,
		logger.RequestIDKey: msg.RequestID,
		logger.RangeKey:     msg.Range,
	} {
		if v != "" {
			ctx = logger.WithContext(ctx, key, v)
		}
	}
	return ctx
}

// settle 确认消息并按结果计数
func (c *Consumer) settle(ctx context.Context, id, status string) {
	metrics.RedisStreamProcessed.WithLabelValues(c.stream(), status).Inc()
	if err := c.client.XAck(ctx, c.stream(), c.group(), id).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "message_id", id)
	}
}

// onFailure 永久错误或投递次数用尽时进入死信队列，否则留在 pending 等待退避
func (c *Consumer) onFailure(ctx context.Context, id string, msg *Message, err error) {
	deliveries := c.deliveries(ctx, id)
	if errors.Is(err, ErrPermanent) || deliveries >= c.cfg.RetryLimit {
		logger.Error(ctx, "message moved to DLQ", err, "deliveries", deliveries)
		c.deadLetter(ctx, msg, err)
		c.settle(ctx, id, "dlq")
		return
	}
	metrics.RedisStreamProcessed.WithLabelValues(c.stream(), "retry").Inc()
	logger.Warn(ctx, "message left pending for retry",
		"deliveries", deliveries,
		"next_in", c.cfg.Backoff.CalculateBackoff(deliveries).String(),
		"error", err.Error(),
	)
}

func (c *Consumer) deliveries(ctx context.Context, id string) int {
	p, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream(),
		Group:  c.group(),
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(p) == 0 {
		return 0
	}
	return int(p[0].RetryCount)
}

func (c *Consumer) deadLetter(ctx context.Context, msg *Message, cause error) {
	data, _ := json.Marshal(map[string]interface{}{
		"original_stream": c.stream(),
		"data":            msg,
		"error":           cause.Error(),
		"failed_at":       time.Now().Unix(),
	})
	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream.DLQStream(),
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		logger.Error(ctx, "failed to write DLQ", err, "message_id", msg.ID)
	}
}

// pending 列出 pending 消息；owner 非空时只列出该消费者名下的
func (c *Consumer) pending(ctx context.Context, owner string) []redis.XPendingExt {
	p, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   c.stream(),
		Group:    c.group(),
		Start:    "-",
		End:      "+",
		Count:    pendingBatch,
		Consumer: owner,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.Error(ctx, "failed to query pending messages", err)
		}
		return nil
	}
	return p
}

// retryDue 重新处理本消费者名下退避已到期的消息
func (c *Consumer) retryDue(ctx context.Context) {
	for _, p := range c.pending(ctx, c.cfg.ConsumerName) {
		n := int(p.RetryCount)
		if n >= c.cfg.RetryLimit {
			c.exhaust(ctx, p.ID, 0)
			continue
		}
		wait := c.cfg.Backoff.CalculateBackoff(n)
		if p.Idle < wait {
			continue
		}
		for _, xmsg := range c.claim(ctx, p.ID, wait) {
			c.dispatch(ctx, xmsg)
		}
	}
}

// takeOverStale 接管其他消费者长时间未确认的消息
func (c *Consumer) takeOverStale(ctx context.Context) {
	for _, p := range c.pending(ctx, "") {
		if p.Consumer == c.cfg.ConsumerName || p.Idle < c.staleAfter {
			continue
		}
		if int(p.RetryCount) >= c.cfg.RetryLimit {
			c.exhaust(ctx, p.ID, c.staleAfter)
			continue
		}
		logger.Info(ctx, "taking over stale message", "message_id", p.ID, "from", p.Consumer)
		for _, xmsg := range c.claim(ctx, p.ID, c.staleAfter) {
			c.dispatch(ctx, xmsg)
		}
	}
}

func (c *Consumer) claim(ctx context.Context, id string, minIdle time.Duration) []redis.XMessage {
	msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream(),
		Group:    c.group(),
		Consumer: c.cfg.ConsumerName,
		MinIdle:  minIdle,
		Messages: []string{id},
	}).Result()
	if err != nil {
		logger.Error(ctx, "failed to claim pending message", err, "message_id", id)
		return nil
	}
	return msgs
}

// exhaust 投递次数用尽的消息直接进入死信队列
func (c *Consumer) exhaust(ctx context.Context, id string, minIdle time.Duration) {
	for _, xmsg := range c.claim(ctx, id, minIdle) {
		if msg, err := decode(xmsg); err == nil {
			c.deadLetter(ctx, msg, errors.New("message exceeded max retries"))
		}
		c.settle(ctx, xmsg.ID, "dlq")
	}
}

func (c *Consumer) observeLag(ctx context.Context) {
	groups, err := c.client.XInfoGroups(ctx, c.stream()).Result()
	if err != nil {
		return
	}
	for _, g := range groups {
		if g.Name == c.group() {
			metrics.RedisStreamLag.WithLabelValues(c.stream(), g.Name).Set(float64(g.Lag + g.Pending))
		}
	}
}

// WatchDeadLetters 每分钟检查死信队列长度，超过阈值时告警
func (c *Consumer) WatchDeadLetters(ctx context.Context, threshold int64) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	dlq := c.cfg.Stream.DLQStream()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := c.client.XLen(ctx, dlq).Result()
			if err != nil {
				continue
			}
			if n > threshold {
				logger.Warn(ctx, "DLQ has pending messages", "stream", dlq, "count", n)
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
