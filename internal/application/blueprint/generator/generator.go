// Package generator 实现按区间分块生成章节目录的控制器
package generator

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-blueprint/internal/application/blueprint"
	"z-novel-blueprint/internal/application/blueprint/validate"
	"z-novel-blueprint/internal/config"
	"z-novel-blueprint/internal/domain/entity"
	"z-novel-blueprint/internal/domain/repository"
	wfmodel "z-novel-blueprint/internal/workflow/model"
	apperrors "z-novel-blueprint/pkg/errors"
	"z-novel-blueprint/pkg/logger"
	"z-novel-blueprint/pkg/metrics"
	"z-novel-blueprint/pkg/tracer"
)

// LLM 目录生成依赖的模型能力，由 chain.BlueprintChain 实现
type LLM interface {
	GenerateChunk(ctx context.Context, in *wfmodel.BlueprintChunkInput, onChunk func(string)) (string, error)
	GenerateUnits(ctx context.Context, in *wfmodel.BlueprintUnitInput, onChunk func(string)) (string, error)
}

// Mode 区间内已有章节的处理方式
type Mode string

const (
	// ModeRegenerate 丢弃区间内已有章节并重新生成
	ModeRegenerate Mode = "regenerate"
	// ModeFill 保留区间内已有章节，只补齐缺失的章节
	ModeFill Mode = "fill"
)

// afterSample 上下文中最多带入的区间后章节数
const afterSample = 50

// Options 控制器参数
type Options struct {
	MaxTokens           int
	TokensPerChapter    int
	ContextChapterLimit int
	FallbackUnitWidth   int
	UnitPolicy          string
	UserGuidance        string
	LockTTL             time.Duration
}

// OptionsFromConfig 从应用配置构建控制器参数
func OptionsFromConfig(cfg *config.Config) Options {
	b := cfg.Blueprint
	return Options{
		MaxTokens:           b.MaxTokens,
		TokensPerChapter:    b.TokensPerChapter,
		ContextChapterLimit: b.ContextChapterLimit,
		FallbackUnitWidth:   b.FallbackUnitWidth,
		UnitPolicy:          b.UnitPolicy,
		UserGuidance:        b.UserGuidance,
		LockTTL:             cfg.Lock.TTL,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4096
	}
	if o.TokensPerChapter <= 0 {
		o.TokensPerChapter = DefaultTokensPerChapter
	}
	if o.ContextChapterLimit <= 0 {
		o.ContextChapterLimit = 100
	}
	if o.FallbackUnitWidth <= 0 {
		o.FallbackUnitWidth = 5
	}
	if o.UnitPolicy == "" {
		o.UnitPolicy = config.UnitPolicyReuse
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 30 * time.Minute
	}
	return o
}

// Request 一次区间生成请求
type Request struct {
	NovelID string
	Start   int
	End     int
	// TotalChapters 全书章节数，小于 End 时按 End 计
	TotalChapters int
	Mode          Mode
	// UnitPolicy 为空时使用 Options.UnitPolicy
	UnitPolicy             string
	UserGuidance           string
	GenerationRequirements string
	// OnProgress 可选的进度回调
	OnProgress func(Event)
}

// Result 区间生成结果
// 出错时仍会返回已完成部分的结果。
type Result struct {
	Requested entity.GenerationRange `json:"requested"`
	// Range 实际生成的区间（单元重新生成时扩展到相交单元的完整跨度）
	Range          entity.GenerationRange    `json:"range"`
	Chunks         []entity.GenerationRange  `json:"chunks"`
	Skipped        []entity.GenerationRange  `json:"skipped,omitempty"`
	Written        []int                     `json:"written"`
	UnitsGenerated []entity.UnitRecord       `json:"units_generated,omitempty"`
	Warnings       []validate.Warning        `json:"warnings,omitempty"`
	Foreshadow     validate.ForeshadowReport `json:"foreshadow"`
	// Document 最后一次持久化（或读取）的目录文本
	Document string `json:"-"`
}

// Generator 区间生成控制器
type Generator struct {
	repo      repository.BlueprintRepository
	llm       LLM
	locker    repository.RangeLocker
	grammar   *blueprint.Grammar
	parser    *blueprint.Parser
	validator *validate.Validator
	opts      Options
}

// NewGenerator 创建控制器；locker 为空时不做串行化
func NewGenerator(repo repository.BlueprintRepository, llm LLM, locker repository.RangeLocker, opts Options) *Generator {
	opts = opts.withDefaults()
	grammar := blueprint.NewGrammar(opts.FallbackUnitWidth)
	return &Generator{
		repo:      repo,
		llm:       llm,
		locker:    locker,
		grammar:   grammar,
		parser:    blueprint.NewParser(grammar),
		validator: validate.NewValidator(grammar, nil),
		opts:      opts,
	}
}

// Parser 返回控制器使用的解析器
func (g *Generator) Parser() *blueprint.Parser {
	return g.parser
}

// GenerateRange 生成 [Start, End] 区间的章节目录并合并到已有目录
// 每个子区间完成后立即持久化；取消只在子区间边界生效。
func (g *Generator) GenerateRange(ctx context.Context, req Request) (res *Result, err error) {
	requested := entity.NewGenerationRange(req.Start, req.End)
	if strings.TrimSpace(req.NovelID) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("novel id is required")
	}
	if req.Start < 1 && !requested.Empty() {
		return nil, apperrors.ErrInvalidRange.WithDetail(requested.String())
	}

	ctx = logger.WithContext(ctx, logger.NovelIDKey, req.NovelID)
	ctx = logger.WithContext(ctx, logger.RangeKey, requested.String())
	ctx, span := tracer.Start(ctx, "blueprint.generate_range",
		trace.WithAttributes(attribute.String("novel.id", req.NovelID)),
		tracer.Range("range", req.Start, req.End),
	)
	defer func() {
		tracer.End(span, err)
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.BlueprintRunsTotal.WithLabelValues(status).Inc()
	}()

	if requested.Empty() {
		text, err := g.repo.Load(ctx, req.NovelID)
		if err != nil {
			return nil, err
		}
		return &Result{Requested: requested, Range: requested, Document: text}, nil
	}

	if g.locker != nil {
		release, err := g.locker.Acquire(ctx, LockKey(req.NovelID), g.opts.LockTTL)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	architecture, err := g.repo.LoadArchitecture(ctx, req.NovelID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(architecture) == "" {
		return nil, apperrors.ErrArchitectureMissing.WithDetail(req.NovelID)
	}
	existing, err := g.repo.Load(ctx, req.NovelID)
	if err != nil {
		return nil, err
	}

	r := g.newRun(req, architecture, existing)
	logger.Info(ctx, "blueprint range generation started",
		"expanded_range", r.rng.String(),
		"mode", string(r.mode),
		"units", r.needUnits,
	)

	if r.needUnits {
		if err := r.generateUnits(ctx); err != nil {
			return r.result, err
		}
	}

	size := ComputeChunkSize(r.rng.Len(), g.opts.MaxTokens, g.opts.TokensPerChapter)
	for _, chunk := range SplitChunks(r.rng, size) {
		if err := ctx.Err(); err != nil {
			metrics.BlueprintChunksTotal.WithLabelValues("cancelled").Inc()
			logger.Warn(ctx, "blueprint generation cancelled", "next_chunk", chunk.String())
			return r.result, apperrors.ErrCancelled.WithDetail(chunk.String()).WithError(err)
		}
		if r.mode == ModeFill && r.complete(chunk) {
			r.result.Skipped = append(r.result.Skipped, chunk)
			metrics.BlueprintChunksTotal.WithLabelValues("skipped").Inc()
			r.emit(Event{Kind: EventChunkSkip, Range: chunk})
			continue
		}
		if err := r.generateChunk(ctx, chunk); err != nil {
			return r.result, err
		}
	}

	if err := r.finish(ctx); err != nil {
		return r.result, err
	}
	logger.Info(ctx, "blueprint range generation finished",
		"written", len(r.result.Written),
		"warnings", len(r.result.Warnings),
		"unresolved_foreshadowing", len(r.result.Foreshadow.Unresolved),
	)
	return r.result, nil
}

// GenerateAll 从已有最大章节号的下一章续写到 totalChapters
func (g *Generator) GenerateAll(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.NovelID) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("novel id is required")
	}
	if req.TotalChapters <= 0 {
		return nil, apperrors.ErrInvalidRange.WithDetail("total chapters must be positive")
	}
	text, err := g.repo.Load(ctx, req.NovelID)
	if err != nil {
		return nil, err
	}
	highest := 0
	for _, n := range g.parser.ParseDocument(text).ChapterNumbers() {
		if n > highest {
			highest = n
		}
	}
	req.Start = highest + 1
	req.End = req.TotalChapters
	if req.Mode == "" {
		req.Mode = ModeFill
	}
	if req.Start > req.End {
		logger.Info(ctx, "blueprint already complete", "novel_id", req.NovelID, "chapters", highest)
	}
	return g.GenerateRange(ctx, req)
}

// LockKey 区间生成锁的键
func LockKey(novelID string) string {
	return "blueprint:lock:" + novelID
}
