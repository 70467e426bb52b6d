// Package messaging 提供基于 Redis Stream 的任务队列
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"z-novel-blueprint/internal/domain/entity"
	"z-novel-blueprint/pkg/logger"
)

// Message 队列中的任务信封
// Payload 为 entity.BlueprintJob 的 JSON，Range 与 RequestID 只用于日志与排查。
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	NovelID   string          `json:"novel_id"`
	Range     string          `json:"range,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewJobMessage 封装任务，ctx 中的请求 ID 随消息传给 worker
func NewJobMessage(ctx context.Context, job *entity.BlueprintJob) (*Message, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	msg := &Message{
		ID:        job.ID,
		Type:      string(job.Type),
		NovelID:   job.NovelID,
		RequestID: logger.Value(ctx, logger.RequestIDKey),
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if job.Type == entity.JobTypeBlueprintRange {
		msg.Range = job.Range().String()
	}
	return msg, nil
}

// Job 解出任务；任务缺少 ID 时沿用消息 ID
func (m *Message) Job() (*entity.BlueprintJob, error) {
	var job entity.BlueprintJob
	if err := json.Unmarshal(m.Payload, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", m.ID, err)
	}
	if job.ID == "" {
		job.ID = m.ID
	}
	return &job, nil
}

// Stream 流定义
type Stream string

// StreamBlueprintGen 目录生成任务流
const StreamBlueprintGen Stream = "stream:blueprint:gen"

// DLQStream 对应的死信队列
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组定义
type ConsumerGroup string

// GenWorkerGroup 按配置前缀生成目录生成消费者组名
func GenWorkerGroup(prefix string) ConsumerGroup {
	if prefix == "" {
		prefix = "blueprint"
	}
	return ConsumerGroup(prefix + "-gen-worker")
}

// BackoffConfig 重试退避
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// CalculateBackoff 第 retryCount 次重试前的等待时间：Initial * Multiplier^retryCount，Max 大于 0 时不超过 Max
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	d := float64(c.Initial)
	if retryCount > 0 && c.Multiplier > 1 {
		d *= math.Pow(c.Multiplier, float64(retryCount))
	}
	if c.Max > 0 && d >= float64(c.Max) {
		return c.Max
	}
	return time.Duration(d)
}
