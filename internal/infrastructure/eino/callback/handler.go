// Package callback 将 Eino ChatModel 调用接入指标、追踪与日志
package callback

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"z-novel-blueprint/internal/domain/service"
	"z-novel-blueprint/pkg/logger"
	"z-novel-blueprint/pkg/metrics"
)

type startTimeKey struct{}

var registered atomic.Bool

// Init 注册全局回调，重复调用无效果
func Init() {
	if registered.CompareAndSwap(false, true) {
		einocb.AppendGlobalHandlers(Handler())
	}
}

// Handler 只处理 ChatModel 组件的回调
func Handler() einocb.Handler {
	return cbtemplate.NewHandlerHelper().ChatModel(newChatModelCallbackHandler()).Handler()
}

// usage 单次调用的 token 统计
type usage struct {
	model            string
	promptTokens     int
	completionTokens int
}

func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

			attrs := []attribute.KeyValue{
				attribute.String("eino.workflow", service.WorkflowFromContext(ctx)),
				attribute.String("llm.provider", service.ProviderFromContext(ctx)),
				attribute.String("llm.model", modelNameFromInput(input)),
			}
			if info != nil {
				attrs = append(attrs,
					attribute.String("eino.node_name", info.Name),
					attribute.String("eino.type", info.Type),
				)
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			u := usage{model: modelNameFromOutput(output)}
			if output != nil && output.TokenUsage != nil {
				u.promptTokens = output.TokenUsage.PromptTokens
				u.completionTokens = output.TokenUsage.CompletionTokens
			}
			finish(ctx, u, nil)
			return ctx
		},

		// 流式调用在流被完全读取后才结束 Span，统计最后一帧携带的 Usage
		OnEndWithStreamOutput: func(ctx context.Context, _ *einocb.RunInfo, output *schema.StreamReader[*model.CallbackOutput]) context.Context {
			go func() {
				defer output.Close()
				var u usage
				for {
					frame, err := output.Recv()
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						finish(ctx, u, err)
						return
					}
					if name := modelNameFromOutput(frame); name != "" {
						u.model = name
					}
					if frame != nil && frame.TokenUsage != nil {
						u.promptTokens = frame.TokenUsage.PromptTokens
						u.completionTokens = frame.TokenUsage.CompletionTokens
					}
				}
				finish(ctx, u, nil)
			}()
			return ctx
		},

		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			u := usage{}
			if info != nil {
				u.model = info.Type
			}
			finish(ctx, u, err)
			return ctx
		},
	}
}

// finish 上报指标并结束 OnStart 创建的 Span
func finish(ctx context.Context, u usage, err error) {
	workflow := service.WorkflowFromContext(ctx)
	provider := service.ProviderFromContext(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LLMCallTotal.WithLabelValues(workflow, provider, u.model, status).Inc()
	if d := elapsedSeconds(ctx); d > 0 {
		metrics.LLMCallDuration.WithLabelValues(workflow, provider, u.model).Observe(d)
	}
	if err == nil {
		metrics.LLMTokensUsed.WithLabelValues(workflow, provider, u.model, "prompt").Add(float64(u.promptTokens))
		metrics.LLMTokensUsed.WithLabelValues(workflow, provider, u.model, "completion").Add(float64(u.completionTokens))
	}

	logger.Debug(ctx, "llm call finished",
		"workflow", workflow,
		"provider", provider,
		"model", u.model,
		"status", status,
		"prompt_tokens", u.promptTokens,
		"completion_tokens", u.completionTokens,
	)

	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("llm.prompt_tokens", u.promptTokens),
			attribute.Int("llm.completion_tokens", u.completionTokens),
		)
	}
	span.End()
}

func elapsedSeconds(ctx context.Context) float64 {
	v := ctx.Value(startTimeKey{})
	start, ok := v.(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
