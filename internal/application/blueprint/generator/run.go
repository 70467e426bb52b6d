package generator

import (
	"context"
	"sort"
	"time"

	"z-novel-blueprint/internal/application/blueprint"
	"z-novel-blueprint/internal/application/blueprint/validate"
	"z-novel-blueprint/internal/config"
	"z-novel-blueprint/internal/domain/entity"
	wfmodel "z-novel-blueprint/internal/workflow/model"
	"z-novel-blueprint/internal/workflow/node"
	apperrors "z-novel-blueprint/pkg/errors"
	"z-novel-blueprint/pkg/logger"
	"z-novel-blueprint/pkg/metrics"
	"z-novel-blueprint/pkg/tracer"
)

// run 单次区间生成的可变状态
type run struct {
	g            *Generator
	req          Request
	mode         Mode
	architecture string
	total        int

	rng       entity.GenerationRange
	needUnits bool
	preamble  string
	units     []entity.UnitRecord
	part      *blueprint.Partition
	dirty     bool

	result *Result
}

func (g *Generator) newRun(req Request, architecture, existing string) *run {
	doc := g.parser.ParseDocument(existing)
	mode := req.Mode
	if mode == "" {
		mode = ModeRegenerate
	}
	policy := req.UnitPolicy
	if policy == "" {
		policy = g.opts.UnitPolicy
	}
	requested := entity.NewGenerationRange(req.Start, req.End)
	rng, needUnits := planUnits(doc, requested, policy)

	total := req.TotalChapters
	if total < rng.End {
		total = rng.End
	}

	part := blueprint.PartitionChapters(doc.Chapters, rng)
	if mode == ModeRegenerate {
		part.InRange = make(map[int]entity.ChapterRecord)
	}

	return &run{
		g:            g,
		req:          req,
		mode:         mode,
		architecture: architecture,
		total:        total,
		rng:          rng,
		needUnits:    needUnits,
		preamble:     doc.Preamble,
		units:        doc.Units,
		part:         part,
		result: &Result{
			Requested: requested,
			Range:     rng,
			Document:  existing,
		},
	}
}

// planUnits 按单元策略决定是否生成单元以及实际生成区间
func planUnits(doc blueprint.Document, rng entity.GenerationRange, policy string) (entity.GenerationRange, bool) {
	switch policy {
	case config.UnitPolicyNone:
		return rng, false
	case config.UnitPolicyRegenerate:
		return blueprint.AnalyzeImpact(doc, rng).Expanded, true
	default:
		imp := blueprint.AnalyzeImpact(doc, rng)
		if imp.Covered {
			return rng, false
		}
		return imp.Expanded, true
	}
}

func (r *run) emit(ev Event) {
	if r.req.OnProgress != nil {
		r.req.OnProgress(ev)
	}
}

func (r *run) guidance() string {
	if r.req.UserGuidance != "" {
		return r.req.UserGuidance
	}
	return r.g.opts.UserGuidance
}

// contextText 提示词中的已有目录：全部单元 + 最近的若干章
func (r *run) contextText() string {
	var before, after []entity.ChapterRecord
	for _, c := range r.part.Chapters() {
		if c.Number > r.rng.End {
			after = append(after, c)
		} else {
			before = append(before, c)
		}
	}
	if len(after) > afterSample {
		after = after[len(after)-afterSample:]
	}
	chapters := append(before, after...)
	if limit := r.g.opts.ContextChapterLimit; len(chapters) > limit {
		chapters = chapters[len(chapters)-limit:]
	}
	return blueprint.Render(r.g.grammar.Assemble(r.units, chapters))
}

// complete 子区间内的章节是否都已存在
func (r *run) complete(chunk entity.GenerationRange) bool {
	for n := chunk.Start; n <= chunk.End; n++ {
		if _, ok := r.part.InRange[n]; !ok {
			return false
		}
	}
	return true
}

// firstUnitNumber 新单元的起始编号
func (r *run) firstUnitNumber() int {
	first := 0
	for _, u := range r.units {
		if r.rng.Intersects(u) && (first == 0 || u.Number < first) {
			first = u.Number
		}
	}
	if first > 0 {
		return first
	}
	last := 0
	for _, u := range r.units {
		_, end := r.g.grammar.EffectiveRange(r.units, u)
		if end < r.rng.Start && u.Number > last {
			last = u.Number
		}
	}
	return last + 1
}

func (r *run) generateUnits(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "blueprint.units", tracer.Range("range", r.rng.Start, r.rng.End))
	defer func() { tracer.End(span, err) }()

	first := r.firstUnitNumber()
	logger.Info(ctx, "generating blueprint units", "expanded_range", r.rng.String(), "first_unit", first)

	raw, err := r.g.llm.GenerateUnits(context.WithoutCancel(ctx), &wfmodel.BlueprintUnitInput{
		Architecture:     r.architecture,
		ChapterList:      r.contextText(),
		NumberOfChapters: r.total,
		Start:            r.rng.Start,
		End:              r.rng.End,
		FirstUnitNumber:  first,
		UnitWidth:        r.g.opts.FallbackUnitWidth,
		UserGuidance:     r.guidance(),
	}, func(s string) { r.emit(Event{Kind: EventText, Range: r.rng, Text: s}) })
	if err != nil {
		logger.Error(ctx, "blueprint unit generation failed", err)
		return &ChunkError{Range: r.rng, Err: apperrors.ErrLLMCallFailed.WithError(err)}
	}

	doc := r.g.parser.ParseDocument(blueprint.CleanResponse(raw))
	var fresh []entity.UnitRecord
	for _, u := range blueprint.DedupUnits(doc.Units) {
		if !u.HasRange() || r.rng.Intersects(u) {
			fresh = append(fresh, u)
		}
	}
	if len(fresh) == 0 {
		logger.Error(ctx, "blueprint unit generation returned no unit", nil, "preview", node.Preview(raw, 80))
		return &ChunkError{Range: r.rng, Err: apperrors.ErrGenerationEmpty.WithDetail("no unit parsed")}
	}

	r.units = r.g.grammar.MergeUnits(r.units, fresh, r.rng, true)
	r.result.UnitsGenerated = fresh
	r.dirty = true
	r.emit(Event{Kind: EventUnits, Range: r.rng})
	return nil
}

func (r *run) generateChunk(ctx context.Context, chunk entity.GenerationRange) (err error) {
	ctx, span := tracer.Start(ctx, "blueprint.chunk", tracer.Range("chunk", chunk.Start, chunk.End))
	defer func() { tracer.End(span, err) }()

	started := time.Now()
	logger.Info(ctx, "generating blueprint chunk", "chunk", chunk.String())
	r.emit(Event{Kind: EventChunkStart, Range: chunk})

	raw, err := r.g.llm.GenerateChunk(context.WithoutCancel(ctx), &wfmodel.BlueprintChunkInput{
		Architecture:           r.architecture,
		ChapterList:            r.contextText(),
		NumberOfChapters:       r.total,
		Start:                  chunk.Start,
		End:                    chunk.End,
		UserGuidance:           r.guidance(),
		GenerationRequirements: r.req.GenerationRequirements,
	}, func(s string) { r.emit(Event{Kind: EventText, Range: chunk, Text: s}) })
	metrics.BlueprintChunkDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		logger.Error(ctx, "blueprint chunk failed", err, "chunk", chunk.String())
		metrics.BlueprintChunksTotal.WithLabelValues("error").Inc()
		return r.fail(ctx, chunk, apperrors.ErrLLMCallFailed.WithError(err))
	}

	gen := r.g.parser.ParseDocument(blueprint.CleanResponse(raw))
	if len(gen.Chapters) == 0 {
		logger.Error(ctx, "blueprint chunk returned no chapter", nil,
			"chunk", chunk.String(), "preview", node.Preview(raw, 80))
		metrics.BlueprintChunksTotal.WithLabelValues("empty").Inc()
		return r.fail(ctx, chunk, apperrors.ErrGenerationEmpty.WithDetail(chunk.String()))
	}

	warnings := validate.ChapterContinuity(gen.ChapterNumbers(), chunk).Warnings()

	// 同一次运行内先写入者胜出
	seen := make(map[int]struct{}, len(gen.Chapters))
	var fresh []entity.ChapterRecord
	for _, c := range gen.Chapters {
		if !r.rng.Contains(c.Number) {
			continue
		}
		if _, ok := r.part.InRange[c.Number]; ok {
			continue
		}
		if _, ok := seen[c.Number]; ok {
			continue
		}
		seen[c.Number] = struct{}{}
		fresh = append(fresh, c)
	}

	fresh, clampWarnings := r.g.validator.ClampCultivation(r.units, fresh)
	warnings = append(warnings, clampWarnings...)
	warnings = append(warnings, r.g.validator.CheckSpatial(r.units, fresh)...)

	written := make([]int, 0, len(fresh))
	for _, c := range fresh {
		r.part.InRange[c.Number] = c
		written = append(written, c.Number)
	}
	sort.Ints(written)
	r.result.Written = append(r.result.Written, written...)
	r.result.Chunks = append(r.result.Chunks, chunk)
	metrics.BlueprintChaptersWritten.Add(float64(len(written)))
	r.warn(ctx, warnings)

	if err := r.persist(ctx); err != nil {
		metrics.BlueprintChunksTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.BlueprintChunksTotal.WithLabelValues("success").Inc()
	logger.Info(ctx, "blueprint chunk done",
		"chunk", chunk.String(),
		"written", len(written),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	r.emit(Event{Kind: EventChunkDone, Range: chunk})
	return nil
}

// fail 持久化已完成的部分并返回子区间错误
func (r *run) fail(ctx context.Context, chunk entity.GenerationRange, cause *apperrors.AppError) error {
	cerr := &ChunkError{Range: chunk, Err: cause}
	if err := r.persist(ctx); err != nil {
		logger.Error(ctx, "failed to persist partial blueprint", err)
	}
	r.emit(Event{Kind: EventWarning, Range: chunk, Text: cerr.Error()})
	return cerr
}

func (r *run) warn(ctx context.Context, warnings []validate.Warning) {
	for i := range warnings {
		w := warnings[i]
		r.result.Warnings = append(r.result.Warnings, w)
		metrics.ValidationWarnings.WithLabelValues(string(w.Check)).Inc()
		logger.Warn(ctx, "blueprint validation warning", "check", string(w.Check), "detail", w.String())
		r.emit(Event{Kind: EventWarning, Text: w.String(), Warning: &w})
	}
}

func (r *run) render() string {
	return r.g.grammar.RenderDocument(blueprint.Document{
		Preamble: r.preamble,
		Units:    r.units,
		Chapters: r.part.Chapters(),
	})
}

func (r *run) persist(ctx context.Context) error {
	text := r.render()
	if err := r.g.repo.Save(ctx, r.req.NovelID, text); err != nil {
		logger.Error(ctx, "failed to save blueprint", err)
		return err
	}
	r.result.Document = text
	r.dirty = false
	return nil
}

func (r *run) finish(ctx context.Context) error {
	if r.dirty {
		if err := r.persist(ctx); err != nil {
			return err
		}
	}
	r.warn(ctx, validate.CheckUnits(r.units))
	r.result.Foreshadow = validate.TrackForeshadowing(r.part.Chapters())
	r.warn(ctx, r.result.Foreshadow.Warnings)
	return nil
}
