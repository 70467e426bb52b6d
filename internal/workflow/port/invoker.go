package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModelFactory 按提供商名称取得 ChatModel
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// Invoker 一次性调用 LLM 并返回完整文本
type Invoker interface {
	Invoke(ctx context.Context, msgs []*schema.Message) (string, error)
}

// StreamInvoker 支持流式输出的调用者
// onChunk 按到达顺序接收增量文本，返回值为完整文本。
type StreamInvoker interface {
	Invoker
	InvokeStream(ctx context.Context, msgs []*schema.Message, onChunk func(string)) (string, error)
}

// AsStreamInvoker 将 Invoker 适配为 StreamInvoker
// 原生支持流式的直接返回；否则在一次性调用完成后按 chunkRunes 个字符切片回放。
func AsStreamInvoker(inv Invoker, chunkRunes int) StreamInvoker {
	if s, ok := inv.(StreamInvoker); ok {
		return s
	}
	if chunkRunes <= 0 {
		chunkRunes = 100
	}
	return &replayStream{Invoker: inv, chunkRunes: chunkRunes}
}

type replayStream struct {
	Invoker
	chunkRunes int
}

func (r *replayStream) InvokeStream(ctx context.Context, msgs []*schema.Message, onChunk func(string)) (string, error) {
	text, err := r.Invoke(ctx, msgs)
	if err != nil {
		return "", err
	}
	if onChunk == nil {
		return text, nil
	}
	for _, piece := range SplitRunes(text, r.chunkRunes) {
		if err := ctx.Err(); err != nil {
			return text, err
		}
		onChunk(piece)
	}
	return text, nil
}

// SplitRunes 按字符数切分文本，不会截断多字节字符
func SplitRunes(s string, n int) []string {
	if s == "" || n <= 0 {
		return nil
	}
	runes := []rune(s)
	out := make([]string, 0, (len(runes)+n-1)/n)
	for i := 0; i < len(runes); i += n {
		end := i + n
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}
