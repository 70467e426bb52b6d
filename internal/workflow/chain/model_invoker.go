package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "z-novel-blueprint/internal/domain/service"
	workflowport "z-novel-blueprint/internal/workflow/port"
)

// ModelOptions 单次调用覆盖的模型参数，零值表示使用提供商配置
type ModelOptions struct {
	Model       string
	Temperature *float32
	MaxTokens   *int
}

// ModelInvoker 通过 ChatModelFactory 调用指定提供商的模型
type ModelInvoker struct {
	factory  workflowport.ChatModelFactory
	provider string
	opts     []model.Option
}

var _ workflowport.StreamInvoker = (*ModelInvoker)(nil)

// NewModelInvoker 创建调用者，provider 为空时由工厂选择默认提供商
func NewModelInvoker(factory workflowport.ChatModelFactory, provider string, opts ModelOptions) *ModelInvoker {
	return &ModelInvoker{
		factory:  factory,
		provider: strings.TrimSpace(provider),
		opts:     buildModelOptions(opts),
	}
}

// Invoke 一次性生成
func (m *ModelInvoker) Invoke(ctx context.Context, msgs []*schema.Message) (string, error) {
	ctx, chatModel, err := m.chatModel(ctx)
	if err != nil {
		return "", err
	}
	outMsg, err := chatModel.Generate(ctx, msgs, m.opts...)
	if err != nil {
		return "", err
	}
	if outMsg == nil {
		return "", fmt.Errorf("empty llm response")
	}
	return outMsg.Content, nil
}

// InvokeStream 流式生成，逐帧回调增量文本并返回完整文本
// 流可能在最后返回一个 Content 为空但包含 Usage 的消息，这类帧不回调。
func (m *ModelInvoker) InvokeStream(ctx context.Context, msgs []*schema.Message, onChunk func(string)) (string, error) {
	ctx, chatModel, err := m.chatModel(ctx)
	if err != nil {
		return "", err
	}
	stream, err := chatModel.Stream(ctx, msgs, m.opts...)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return b.String(), err
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		b.WriteString(msg.Content)
		if onChunk != nil {
			onChunk(msg.Content)
		}
	}
	return b.String(), nil
}

func (m *ModelInvoker) chatModel(ctx context.Context) (context.Context, model.BaseChatModel, error) {
	if m == nil || m.factory == nil {
		return ctx, nil, fmt.Errorf("llm factory not configured")
	}
	ctx = llmctx.WithProvider(ctx, m.provider)
	chatModel, err := m.factory.Get(ctx, m.provider)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, chatModel, nil
}

func buildModelOptions(in ModelOptions) []model.Option {
	opts := make([]model.Option, 0, 3)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}
	return opts
}
