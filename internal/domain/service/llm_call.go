// Package service 定义跨层共享的领域服务约定
package service

import (
	"context"
	"strings"
)

const unknown = "unknown"

type llmCallKey struct{}

// LLMCall 一次模型调用的归属信息，用于指标与追踪的标签
type LLMCall struct {
	Workflow string
	Provider string
}

func callFrom(ctx context.Context) LLMCall {
	if ctx == nil {
		return LLMCall{}
	}
	c, _ := ctx.Value(llmCallKey{}).(LLMCall)
	return c
}

func withCall(ctx context.Context, update func(*LLMCall)) context.Context {
	if ctx == nil {
		return nil
	}
	c := callFrom(ctx)
	update(&c)
	return context.WithValue(ctx, llmCallKey{}, c)
}

// WithWorkflow 标记调用所属的工作流（如 blueprint_chunk），空值不覆盖
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	w := strings.TrimSpace(workflow)
	if w == "" {
		return ctx
	}
	return withCall(ctx, func(c *LLMCall) { c.Workflow = w })
}

// WithProvider 标记调用使用的提供商，空值不覆盖
func WithProvider(ctx context.Context, provider string) context.Context {
	p := strings.TrimSpace(provider)
	if p == "" {
		return ctx
	}
	return withCall(ctx, func(c *LLMCall) { c.Provider = p })
}

// WorkflowFromContext 未标记时返回 "unknown"
func WorkflowFromContext(ctx context.Context) string {
	if w := callFrom(ctx).Workflow; w != "" {
		return w
	}
	return unknown
}

// ProviderFromContext 未标记时返回 "unknown"
func ProviderFromContext(ctx context.Context) string {
	if p := callFrom(ctx).Provider; p != "" {
		return p
	}
	return unknown
}
