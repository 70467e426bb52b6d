// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"z-novel-blueprint/internal/application/blueprint"
	"z-novel-blueprint/internal/application/blueprint/generator"
	"z-novel-blueprint/internal/application/blueprint/validate"
	"z-novel-blueprint/internal/domain/entity"
	"z-novel-blueprint/internal/domain/repository"
	"z-novel-blueprint/internal/interfaces/http/dto"
	apperrors "z-novel-blueprint/pkg/errors"
	"z-novel-blueprint/pkg/logger"
)

// editLockTTL 删除/修正等短操作持有区间锁的时长
const editLockTTL = time.Minute

// Generator 区间生成能力，由 generator.Generator 实现
type Generator interface {
	GenerateRange(ctx context.Context, req generator.Request) (*generator.Result, error)
	GenerateAll(ctx context.Context, req generator.Request) (*generator.Result, error)
}

// BlueprintHandler 章节目录处理器
type BlueprintHandler struct {
	store     repository.BlueprintRepository
	gen       Generator
	locker    repository.RangeLocker
	grammar   *blueprint.Grammar
	parser    *blueprint.Parser
	validator *validate.Validator
}

// NewBlueprintHandler 创建章节目录处理器；locker 为空时编辑操作不加锁
func NewBlueprintHandler(store repository.BlueprintRepository, gen Generator, locker repository.RangeLocker, fallbackUnitWidth int) *BlueprintHandler {
	grammar := blueprint.NewGrammar(fallbackUnitWidth)
	return &BlueprintHandler{
		store:     store,
		gen:       gen,
		locker:    locker,
		grammar:   grammar,
		parser:    blueprint.NewParser(grammar),
		validator: validate.NewValidator(grammar, nil),
	}
}

func bindNovelID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("nid"))
}

// load 读取并解析目录，出错时已写出响应
func (h *BlueprintHandler) load(c *gin.Context) (string, blueprint.Document, bool) {
	ctx := c.Request.Context()
	text, err := h.store.Load(ctx, bindNovelID(c))
	if err != nil {
		logger.Error(ctx, "failed to load blueprint", err)
		dto.FromError(c, err)
		return "", blueprint.Document{}, false
	}
	return text, h.parser.ParseDocument(text), true
}

// GetBlueprint 获取章节目录
// @Summary 获取章节目录
// @Description format=text 时返回原始目录文本
// @Tags Blueprint
// @Produce json
// @Param nid path string true "小说 ID"
// @Param format query string false "json 或 text"
// @Success 200 {object} dto.Response[dto.BlueprintResponse]
// @Router /v1/novels/{nid}/blueprint [get]
func (h *BlueprintHandler) GetBlueprint(c *gin.Context) {
	text, doc, ok := h.load(c)
	if !ok {
		return
	}
	if c.Query("format") == "text" {
		c.String(http.StatusOK, text)
		return
	}
	dto.Success(c, dto.BlueprintResponse{
		NovelID:  bindNovelID(c),
		Units:    doc.Units,
		Chapters: doc.Chapters,
	})
}

// GetChapter 获取单章及其所属单元，缺失的章节返回占位记录
// @Summary 获取单章
// @Tags Blueprint
// @Produce json
// @Param nid path string true "小说 ID"
// @Param n path int true "章节号"
// @Success 200 {object} dto.Response[dto.ChapterResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/novels/{nid}/chapters/{n} [get]
func (h *BlueprintHandler) GetChapter(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 1 {
		dto.BadRequest(c, "invalid chapter number")
		return
	}
	text, _, ok := h.load(c)
	if !ok {
		return
	}
	resp := dto.ChapterResponse{Chapter: h.parser.GetChapter(text, n)}
	if unit, found := h.parser.GetUnitForChapter(text, n); found {
		resp.Unit = &unit
	}
	resp.Text = blueprint.FormatChapter(resp.Chapter)
	dto.Success(c, resp)
}

// Generate 同步生成区间，出错时仍返回已完成部分
// @Summary 生成章节目录
// @Description start/end 省略且给出 total_chapters 时从最后一章续写
// @Tags Blueprint
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param body body dto.GenerateRequest true "生成请求"
// @Success 200 {object} dto.Response[dto.GenerateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/novels/{nid}/blueprint/generate [post]
func (h *BlueprintHandler) Generate(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	res, err := h.run(ctx, req, req.ToGeneratorRequest(bindNovelID(c)))
	if err != nil {
		logger.Error(ctx, "blueprint generation failed", err)
		if res == nil {
			dto.FromError(c, err)
			return
		}
		appErr := apperrors.AsAppError(err)
		status := dto.StatusOf(appErr.Code)
		c.JSON(status, dto.Response[dto.GenerateResponse]{
			Code:    status,
			Message: appErr.Message,
			Data: dto.GenerateResponse{
				Result: res,
				Error:  &dto.ErrorDetail{ErrorCode: string(appErr.Code), Details: err.Error()},
			},
			TraceID: c.GetString("trace_id"),
		})
		return
	}
	dto.Success(c, dto.GenerateResponse{Result: res})
}

func (h *BlueprintHandler) run(ctx context.Context, body *dto.GenerateRequest, req generator.Request) (*generator.Result, error) {
	if body.Resume() {
		return h.gen.GenerateAll(ctx, req)
	}
	return h.gen.GenerateRange(ctx, req)
}

func bindGenerateRequest(c *gin.Context) (*dto.GenerateRequest, bool) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return nil, false
	}
	if err := req.Validate(); err != nil {
		dto.FromError(c, err)
		return nil, false
	}
	return &req, true
}

// Remove 删除指定区间的章节，完全落在区间内的单元一并删除
// @Summary 删除章节
// @Tags Blueprint
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param body body dto.RemoveRequest true "删除区间"
// @Success 200 {object} dto.Response[dto.RemoveResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/novels/{nid}/blueprint/remove [post]
func (h *BlueprintHandler) Remove(c *gin.Context) {
	var req dto.RemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	ranges := make([]entity.GenerationRange, 0, len(req.Ranges))
	for _, s := range req.Ranges {
		r, err := entity.ParseGenerationRange(s)
		if err != nil {
			dto.BadRequest(c, err.Error())
			return
		}
		ranges = append(ranges, r)
	}

	release, ok := h.lock(c)
	if !ok {
		return
	}
	defer release()

	text, doc, ok := h.load(c)
	if !ok {
		return
	}
	updated := h.grammar.RemoveRanges(text, ranges...)
	before := len(blueprint.DedupChapters(doc.Chapters))
	remaining := len(blueprint.DedupChapters(h.parser.ParseDocument(updated).Chapters))
	if err := h.store.Save(c.Request.Context(), bindNovelID(c), updated); err != nil {
		logger.Error(c.Request.Context(), "failed to save blueprint", err)
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.RemoveResponse{Removed: before - remaining, Remaining: remaining})
}

// Check 运行连续性、单元、修为、地点与伏笔检查
// POST 请求会把修为修正写回目录。
// @Summary 检查章节目录
// @Tags Blueprint
// @Produce json
// @Param nid path string true "小说 ID"
// @Param start query int false "起始章节"
// @Param end query int false "结束章节"
// @Success 200 {object} dto.Response[validate.DocumentReport]
// @Router /v1/novels/{nid}/blueprint/check [get]
func (h *BlueprintHandler) Check(c *gin.Context) {
	start, err1 := queryInt(c, "start")
	end, err2 := queryInt(c, "end")
	if err1 != nil || err2 != nil {
		dto.BadRequest(c, "start and end must be integers")
		return
	}
	fix := c.Request.Method == http.MethodPost
	if fix {
		release, ok := h.lock(c)
		if !ok {
			return
		}
		defer release()
	}

	_, doc, ok := h.load(c)
	if !ok {
		return
	}
	report := h.validator.CheckDocument(doc, entity.NewGenerationRange(start, end))
	if fix && report.Changed {
		doc.Chapters = report.Fixed
		if err := h.store.Save(c.Request.Context(), bindNovelID(c), h.grammar.RenderDocument(doc)); err != nil {
			logger.Error(c.Request.Context(), "failed to save blueprint", err)
			dto.FromError(c, err)
			return
		}
	}
	dto.Success(c, report)
}

// Foreshadowing 伏笔生命周期
// @Summary 伏笔追踪
// @Tags Blueprint
// @Produce json
// @Param nid path string true "小说 ID"
// @Success 200 {object} dto.Response[validate.ForeshadowReport]
// @Router /v1/novels/{nid}/blueprint/foreshadowing [get]
func (h *BlueprintHandler) Foreshadowing(c *gin.Context) {
	_, doc, ok := h.load(c)
	if !ok {
		return
	}
	dto.Success(c, validate.TrackForeshadowing(doc.Chapters))
}

// lock 获取与生成共用的区间锁，失败时已写出响应
func (h *BlueprintHandler) lock(c *gin.Context) (func(), bool) {
	if h.locker == nil {
		return func() {}, true
	}
	release, err := h.locker.Acquire(c.Request.Context(), generator.LockKey(bindNovelID(c)), editLockTTL)
	if err != nil {
		dto.FromError(c, err)
		return nil, false
	}
	return release, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
