// Package llm 按配置创建 Eino ChatModel
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"golang.org/x/sync/singleflight"

	"z-novel-blueprint/internal/config"
	"z-novel-blueprint/internal/workflow/port"
)

// EinoFactory 按提供商名称惰性创建并缓存 ChatModel
// 所有提供商都走 OpenAI 兼容协议，差异只在 BaseURL 与模型名。
type EinoFactory struct {
	cfg    *config.LLMConfig
	models sync.Map // name -> model.BaseChatModel
	group  singleflight.Group
}

var _ port.ChatModelFactory = (*EinoFactory)(nil)

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.LLMConfig) *EinoFactory {
	if cfg == nil {
		cfg = &config.LLMConfig{}
	}
	return &EinoFactory{cfg: cfg}
}

// Get name 为空时使用默认提供商；并发的首次调用只创建一个实例
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.cfg.DefaultProvider
	}
	if m, ok := f.models.Load(name); ok {
		return m.(model.BaseChatModel), nil
	}

	v, err, _ := f.group.Do(name, func() (interface{}, error) {
		if m, ok := f.models.Load(name); ok {
			return m, nil
		}
		m, err := f.create(ctx, name)
		if err != nil {
			return nil, err
		}
		f.models.Store(name, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(model.BaseChatModel), nil
}

// Default 返回默认 ChatModel
func (f *EinoFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.Get(ctx, "")
}

func (f *EinoFactory) create(ctx context.Context, name string) (model.BaseChatModel, error) {
	pc, ok := f.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("llm provider %q not configured (available: %s)", name, strings.Join(f.Providers(), ", "))
	}
	if pc.Model == "" {
		return nil, fmt.Errorf("llm provider %q: model is required", name)
	}

	mc := &openai.ChatModelConfig{
		APIKey:  pc.APIKey,
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
		Timeout: pc.Timeout,
	}
	if pc.MaxTokens > 0 {
		mc.MaxTokens = &pc.MaxTokens
	}
	if pc.Temperature > 0 {
		t := float32(pc.Temperature)
		mc.Temperature = &t
	}

	m, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("create chat model for %s: %w", name, err)
	}
	return m, nil
}

// Providers 已配置的提供商名称，按字母序
func (f *EinoFactory) Providers() []string {
	names := make([]string, 0, len(f.cfg.Providers))
	for n := range f.cfg.Providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
