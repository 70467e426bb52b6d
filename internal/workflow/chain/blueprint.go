package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	llmctx "z-novel-blueprint/internal/domain/service"
	wfmodel "z-novel-blueprint/internal/workflow/model"
	workflowport "z-novel-blueprint/internal/workflow/port"
	workflowprompt "z-novel-blueprint/internal/workflow/prompt"
)

const (
	WorkflowBlueprintChunk = "blueprint_chunk"
	WorkflowBlueprintUnit  = "blueprint_unit"

	defaultRequirements = "无特殊要求"
	defaultGuidance     = "无"
)

// BlueprintChain 渲染章节目录提示词并调用 LLM
type BlueprintChain struct {
	invoker workflowport.StreamInvoker
	prompts *workflowprompt.Registry
}

// NewBlueprintChain 创建目录生成链
// 不支持流式的 invoker 会被适配为按 streamChunkRunes 个字符回放的流。
func NewBlueprintChain(invoker workflowport.Invoker, streamChunkRunes int) *BlueprintChain {
	var s workflowport.StreamInvoker
	if invoker != nil {
		s = workflowport.AsStreamInvoker(invoker, streamChunkRunes)
	}
	return &BlueprintChain{invoker: s, prompts: workflowprompt.NewRegistry()}
}

// GenerateChunk 生成 [Start, End] 区间的章节目录原始文本
func (c *BlueprintChain) GenerateChunk(ctx context.Context, in *wfmodel.BlueprintChunkInput, onChunk func(string)) (string, error) {
	if c == nil || c.invoker == nil {
		return "", fmt.Errorf("llm invoker not configured")
	}
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	if err := checkRange(in.Start, in.End); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Architecture) == "" {
		return "", fmt.Errorf("novel architecture is required")
	}

	msgs, err := c.format(ctx, workflowprompt.PromptBlueprintChunkV1, map[string]any{
		"novel_architecture":      strings.TrimSpace(in.Architecture),
		"chapter_list":            strings.TrimSpace(in.ChapterList),
		"number_of_chapters":      in.NumberOfChapters,
		"n":                       in.Start,
		"m":                       in.End,
		"user_guidance":           orDefault(in.UserGuidance, defaultGuidance),
		"generation_requirements": orDefault(in.GenerationRequirements, defaultRequirements),
	})
	if err != nil {
		return "", err
	}

	ctx = llmctx.WithWorkflow(ctx, WorkflowBlueprintChunk)
	return c.invoker.InvokeStream(ctx, msgs, onChunk)
}

// GenerateUnits 生成覆盖 [Start, End] 的单元框架原始文本
func (c *BlueprintChain) GenerateUnits(ctx context.Context, in *wfmodel.BlueprintUnitInput, onChunk func(string)) (string, error) {
	if c == nil || c.invoker == nil {
		return "", fmt.Errorf("llm invoker not configured")
	}
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	if err := checkRange(in.Start, in.End); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Architecture) == "" {
		return "", fmt.Errorf("novel architecture is required")
	}
	first := in.FirstUnitNumber
	if first <= 0 {
		first = 1
	}
	width := in.UnitWidth
	if width <= 0 {
		width = 5
	}

	msgs, err := c.format(ctx, workflowprompt.PromptBlueprintUnitV1, map[string]any{
		"novel_architecture": strings.TrimSpace(in.Architecture),
		"chapter_list":       strings.TrimSpace(in.ChapterList),
		"number_of_chapters": in.NumberOfChapters,
		"n":                  in.Start,
		"m":                  in.End,
		"first_unit":         first,
		"unit_width":         width,
		"user_guidance":      orDefault(in.UserGuidance, defaultGuidance),
	})
	if err != nil {
		return "", err
	}

	ctx = llmctx.WithWorkflow(ctx, WorkflowBlueprintUnit)
	return c.invoker.InvokeStream(ctx, msgs, onChunk)
}

func (c *BlueprintChain) format(ctx context.Context, id workflowprompt.PromptID, vars map[string]any) ([]*schema.Message, error) {
	return c.prompts.Format(ctx, id, vars)
}

func checkRange(start, end int) error {
	if start <= 0 || end < start {
		return fmt.Errorf("invalid chapter range [%d..%d]", start, end)
	}
	return nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
