package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"z-novel-blueprint/internal/domain/entity"
	apperrors "z-novel-blueprint/pkg/errors"
)

var tracer = otel.Tracer("blueprint/messaging")

const defaultMaxLen = 100000

// Producer 向目录生成流投递任务
type Producer struct {
	client *redis.Client
	stream Stream
	maxLen int64
}

// NewProducer 创建生产者，maxLen 为流的近似最大长度
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &Producer{client: client, stream: StreamBlueprintGen, maxLen: maxLen}
}

// PublishBlueprintJob 投递任务并返回流中的消息 ID；任务没有 ID 时分配一个
func (p *Producer) PublishBlueprintJob(ctx context.Context, job *entity.BlueprintJob) (streamID string, err error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	ctx, span := tracer.Start(ctx, "messaging.publish", trace.WithAttributes(
		attribute.String("stream", string(p.stream)),
		attribute.String("job.id", job.ID),
		attribute.String("job.type", string(job.Type)),
		attribute.String("novel.id", job.NovelID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	msg, err := NewJobMessage(ctx, job)
	if err != nil {
		return "", apperrors.ErrInvalidParam.WithError(err)
	}
	streamID, err = p.add(ctx, msg)
	if err != nil {
		return "", apperrors.ErrQueue.WithDetail(job.ID).WithError(err)
	}
	span.SetAttributes(attribute.String("stream.message_id", streamID))
	return streamID, nil
}

func (p *Producer) add(ctx context.Context, msg *Message) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(p.stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
}
