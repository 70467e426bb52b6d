package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-blueprint/internal/application/blueprint"
	"z-novel-blueprint/internal/application/blueprint/validate"
	"z-novel-blueprint/internal/config"
	"z-novel-blueprint/internal/domain/entity"
	wfmodel "z-novel-blueprint/internal/workflow/model"
	apperrors "z-novel-blueprint/pkg/errors"
	"z-novel-blueprint/pkg/logger"
)

const novelID = "qingyun"

type memRepo struct {
	mu    sync.Mutex
	docs  map[string]string
	arch  string
	saves []string
}

func newMemRepo(doc string) *memRepo {
	return &memRepo{docs: map[string]string{novelID: doc}, arch: "修仙世界，主角林远。"}
}

func (m *memRepo) Load(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id], nil
}

func (m *memRepo) Save(_ context.Context, id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = text
	m.saves = append(m.saves, text)
	return nil
}

func (m *memRepo) LoadArchitecture(context.Context, string) (string, error) {
	return m.arch, nil
}

func (m *memRepo) doc() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[novelID]
}

type scriptedLLM struct {
	chunkCalls []*wfmodel.BlueprintChunkInput
	unitCalls  []*wfmodel.BlueprintUnitInput
	chunk      func(call int, in *wfmodel.BlueprintChunkInput) (string, error)
	units      func(in *wfmodel.BlueprintUnitInput) (string, error)
}

func (s *scriptedLLM) GenerateChunk(_ context.Context, in *wfmodel.BlueprintChunkInput, onChunk func(string)) (string, error) {
	call := len(s.chunkCalls)
	s.chunkCalls = append(s.chunkCalls, in)
	respond := s.chunk
	if respond == nil {
		respond = func(_ int, in *wfmodel.BlueprintChunkInput) (string, error) {
			return chapters(in.Start, in.End, "新"), nil
		}
	}
	out, err := respond(call, in)
	if err == nil && onChunk != nil && out != "" {
		onChunk(out)
	}
	return out, err
}

func (s *scriptedLLM) GenerateUnits(_ context.Context, in *wfmodel.BlueprintUnitInput, _ func(string)) (string, error) {
	s.unitCalls = append(s.unitCalls, in)
	if s.units == nil {
		return "", errors.New("unexpected unit generation")
	}
	return s.units(in)
}

func (s *scriptedLLM) chunkRanges() []entity.GenerationRange {
	out := make([]entity.GenerationRange, 0, len(s.chunkCalls))
	for _, in := range s.chunkCalls {
		out = append(out, entity.NewGenerationRange(in.Start, in.End))
	}
	return out
}

func chapter(n int, tag string) string {
	return fmt.Sprintf("第%d章 - %s章%d\n本章定位：过渡\n伏笔操作：无特殊伏笔\n主角修为：炼气二层\n空间坐标：青云山\n本章简述：%s内容%d", n, tag, n, tag, n)
}

func chapters(start, end int, tag string) string {
	parts := make([]string, 0, end-start+1)
	for n := start; n <= end; n++ {
		parts = append(parts, chapter(n, tag))
	}
	return strings.Join(parts, "\n\n")
}

func testOptions(maxTokens int, policy string) Options {
	return Options{MaxTokens: maxTokens, TokensPerChapter: 100, UnitPolicy: policy, LockTTL: time.Minute}
}

func parse(text string) blueprint.Document {
	return blueprint.NewParser(nil).ParseDocument(text)
}

func TestComputeChunkSize(t *testing.T) {
	tests := []struct {
		name                   string
		rangeLen, maxTokens    int
		tokensPerChapter, want int
	}{
		{"floor to tens minus margin", 25, 2000, 100, 10},
		{"clamped to range", 25, 4096, 100, 25},
		{"never below one", 5, 500, 100, 1},
		{"empty range", 0, 4096, 100, 0},
		{"default per-chapter estimate", 100, 4096, 0, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeChunkSize(tt.rangeLen, tt.maxTokens, tt.tokensPerChapter))
		})
	}
}

func TestSplitChunks(t *testing.T) {
	got := SplitChunks(entity.NewGenerationRange(1, 25), 10)
	assert.Equal(t, []entity.GenerationRange{{Start: 1, End: 10}, {Start: 11, End: 20}, {Start: 21, End: 25}}, got)
	assert.Nil(t, SplitChunks(entity.NewGenerationRange(5, 4), 10))
}

func TestGenerateRange_FreshChunkedGeneration(t *testing.T) {
	repo := newMemRepo("")
	llm := &scriptedLLM{}
	g := NewGenerator(repo, llm, nil, testOptions(2000, config.UnitPolicyNone))

	res, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 1, End: 25, TotalChapters: 25})
	require.NoError(t, err)

	assert.Equal(t, []entity.GenerationRange{{Start: 1, End: 10}, {Start: 11, End: 20}, {Start: 21, End: 25}}, llm.chunkRanges())
	assert.Len(t, repo.saves, 3, "document is persisted after every chunk")
	assert.Len(t, res.Written, 25)
	assert.Empty(t, res.Warnings)

	doc := parse(repo.doc())
	nums := doc.ChapterNumbers()
	require.Len(t, nums, 25)
	for i, n := range nums {
		assert.Equal(t, i+1, n)
	}
	assert.Equal(t, repo.doc(), res.Document)
}

func TestGenerateRange_TargetedRegenerationPreservesNeighbors(t *testing.T) {
	existing := chapters(1, 10, "旧")
	repo := newMemRepo(existing)
	llm := &scriptedLLM{}
	g := NewGenerator(repo, llm, nil, testOptions(4096, config.UnitPolicyNone))

	_, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 4, End: 6, TotalChapters: 10})
	require.NoError(t, err)

	before := parse(existing)
	after := parse(repo.doc())
	require.Len(t, after.Chapters, 10)
	for i, c := range after.Chapters {
		if c.Number >= 4 && c.Number <= 6 {
			assert.Contains(t, c.Raw, "新内容")
			continue
		}
		assert.Equal(t, before.Chapters[i].Raw, c.Raw, "chapter %d must be byte-identical", c.Number)
	}
}

func TestGenerateRange_IdempotentForDeterministicModel(t *testing.T) {
	existing := chapters(1, 10, "旧")
	run := func() string {
		repo := newMemRepo(existing)
		g := NewGenerator(repo, &scriptedLLM{}, nil, testOptions(4096, config.UnitPolicyNone))
		_, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 4, End: 6})
		require.NoError(t, err)
		return repo.doc()
	}
	assert.Equal(t, run(), run())
}

func TestGenerateRange_EmptyChunkPersistsCompletedChunks(t *testing.T) {
	existing := chapters(21, 22, "旧")
	for _, reply := range []string{"   \n", "抱歉，我无法完成这个请求。"} {
		t.Run(fmt.Sprintf("%q", reply), func(t *testing.T) {
			repo := newMemRepo(existing)
			llm := &scriptedLLM{chunk: func(call int, in *wfmodel.BlueprintChunkInput) (string, error) {
				if call == 1 {
					return reply, nil
				}
				return chapters(in.Start, in.End, "新"), nil
			}}
			g := NewGenerator(repo, llm, nil, testOptions(2000, config.UnitPolicyNone))

			res, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 1, End: 20})
			require.Error(t, err)

			var chunkErr *ChunkError
			require.True(t, errors.As(err, &chunkErr))
			assert.Equal(t, entity.NewGenerationRange(11, 20), chunkErr.Range)
			assert.ErrorIs(t, err, apperrors.ErrGenerationEmpty)
			assert.Contains(t, err.Error(), "[11..20]")

			doc := parse(repo.doc())
			want := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 21, 22}
			assert.Equal(t, want, doc.ChapterNumbers())
			assert.NotContains(t, repo.doc(), reply)
			require.NotNil(t, res)
			assert.Len(t, res.Written, 10)
		})
	}
}

func TestGenerateRange_LLMErrorIsWrapped(t *testing.T) {
	boom := errors.New("rate limited")
	repo := newMemRepo("")
	llm := &scriptedLLM{chunk: func(int, *wfmodel.BlueprintChunkInput) (string, error) { return "", boom }}
	g := NewGenerator(repo, llm, nil, testOptions(2000, config.UnitPolicyNone))

	_, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 1, End: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLLMCallFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, apperrors.CodeLLMCallFailed, apperrors.CodeOf(err))
}

func TestGenerateRange_FirstWriteWinsWithinRun(t *testing.T) {
	repo := newMemRepo("")
	llm := &scriptedLLM{chunk: func(_ int, _ *wfmodel.BlueprintChunkInput) (string, error) {
		return strings.Join([]string{chapter(1, "甲"), chapter(2, "甲"), chapter(2, "乙"), chapter(3, "甲")}, "\n\n"), nil
	}}
	g := NewGenerator(repo, llm, nil, testOptions(4096, config.UnitPolicyNone))

	res, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 1, End: 3})
	require.NoError(t, err)

	doc := parse(repo.doc())
	assert.Equal(t, []int{1, 2, 3}, doc.ChapterNumbers())
	assert.Equal(t, "甲章2", doc.Chapters[1].Title)
	assert.NotContains(t, repo.doc(), "乙")

	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, validate.CheckContinuity, res.Warnings[0].Check)
	assert.Equal(t, 2, res.Warnings[0].Chapter)
}

func TestGenerateRange_FillModeKeepsExistingChapters(t *testing.T) {
	existing := chapters(1, 3, "旧")
	repo := newMemRepo(existing)
	llm := &scriptedLLM{}
	g := NewGenerator(repo, llm, nil, testOptions(2000, config.UnitPolicyNone))

	res, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 1, End: 5, Mode: ModeFill})
	require.NoError(t, err)

	doc := parse(repo.doc())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, doc.ChapterNumbers())
	assert.Equal(t, "旧章2", doc.Chapters[1].Title)
	assert.Equal(t, "新章4", doc.Chapters[3].Title)
	assert.Equal(t, []int{4, 5}, res.Written)
}

func TestGenerateRange_FillModeSkipsCompleteChunks(t *testing.T) {
	repo := newMemRepo(chapters(1, 10, "旧"))
	llm := &scriptedLLM{}
	g := NewGenerator(repo, llm, nil, testOptions(2000, config.UnitPolicyNone))

	res, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 1, End: 15, Mode: ModeFill})
	require.NoError(t, err)
	assert.Equal(t, []entity.GenerationRange{{Start: 1, End: 10}}, res.Skipped)
	assert.Equal(t, []entity.GenerationRange{{Start: 11, End: 15}}, llm.chunkRanges())
}

const generatedUnits = `第1单元 - 初入宗门（包含章节：1-5章）
修为等级范围：炼气一层 → 炼气三层
空间坐标范围：青石镇 → 青云山

第2单元 - 外门风波（包含章节：6-10章）
修为等级范围：炼气三层 → 炼气五层
空间坐标范围：青云山 → 外门`

func TestGenerateRange_GeneratesUnitsAndClampsCultivation(t *testing.T) {
	repo := newMemRepo("")
	llm := &scriptedLLM{
		units: func(*wfmodel.BlueprintUnitInput) (string, error) { return "```\n" + generatedUnits + "\n```", nil },
		chunk: func(_ int, in *wfmodel.BlueprintChunkInput) (string, error) {
			text := chapters(in.Start, in.End, "新")
			return strings.Replace(text, "第3章 - 新章3\n本章定位：过渡\n伏笔操作：无特殊伏笔\n主角修为：炼气二层",
				"第3章 - 新章3\n本章定位：过渡\n伏笔操作：无特殊伏笔\n主角修为：炼气五层", 1), nil
		},
	}
	g := NewGenerator(repo, llm, nil, testOptions(4096, config.UnitPolicyReuse))

	res, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 1, End: 10})
	require.NoError(t, err)

	require.Len(t, llm.unitCalls, 1)
	assert.Equal(t, 1, llm.unitCalls[0].FirstUnitNumber)
	assert.Len(t, res.UnitsGenerated, 2)

	doc := parse(repo.doc())
	require.Len(t, doc.Units, 2)
	assert.Equal(t, "炼气三层", doc.Chapters[2].ActualCultivation)

	text := repo.doc()
	assert.Less(t, strings.Index(text, "第1单元"), strings.Index(text, "第1章"))
	assert.Less(t, strings.Index(text, "第5章"), strings.Index(text, "第2单元"))
	assert.Less(t, strings.Index(text, "第2单元"), strings.Index(text, "第6章"))

	var clamped bool
	for _, w := range res.Warnings {
		if w.Check == validate.CheckCultivation && w.Chapter == 3 {
			clamped = true
		}
	}
	assert.True(t, clamped)
}

func TestGenerateRange_ReusesCoveringUnits(t *testing.T) {
	existing := generatedUnits + "\n\n" + chapters(1, 10, "旧")
	repo := newMemRepo(existing)
	llm := &scriptedLLM{}
	g := NewGenerator(repo, llm, nil, testOptions(4096, config.UnitPolicyReuse))

	res, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 2, End: 3})
	require.NoError(t, err)
	assert.Empty(t, llm.unitCalls)
	assert.Equal(t, entity.NewGenerationRange(2, 3), res.Range)
	assert.Len(t, parse(repo.doc()).Units, 2)
}

func TestGenerateRange_RegeneratePolicyExpandsToUnits(t *testing.T) {
	existing := generatedUnits + "\n\n" + chapters(1, 10, "旧")
	repo := newMemRepo(existing)
	llm := &scriptedLLM{units: func(in *wfmodel.BlueprintUnitInput) (string, error) {
		return "第2单元 - 外门新篇（包含章节：6-10章）\n修为等级范围：炼气三层 → 炼气五层", nil
	}}
	g := NewGenerator(repo, llm, nil, testOptions(4096, config.UnitPolicyRegenerate))

	res, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 7, End: 8})
	require.NoError(t, err)
	assert.Equal(t, entity.NewGenerationRange(6, 10), res.Range)
	require.Len(t, llm.unitCalls, 1)
	assert.Equal(t, 2, llm.unitCalls[0].FirstUnitNumber)

	doc := parse(repo.doc())
	require.Len(t, doc.Units, 2)
	assert.Equal(t, "外门新篇", doc.Units[1].Title)
	assert.Equal(t, "旧章5", doc.Chapters[4].Title)
	assert.Equal(t, "新章6", doc.Chapters[5].Title)
}

func TestGenerateRange_MisnumberedUnitKeepsEarlierUnits(t *testing.T) {
	existing := generatedUnits + "\n\n" + chapters(1, 10, "旧")
	repo := newMemRepo(existing)
	llm := &scriptedLLM{units: func(*wfmodel.BlueprintUnitInput) (string, error) {
		return "第1单元 - 新（包含章节：11-15章）\n修为等级范围：炼气五层 → 炼气七层", nil
	}}
	g := NewGenerator(repo, llm, nil, testOptions(4096, config.UnitPolicyReuse))

	_, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 11, End: 15})
	require.NoError(t, err)
	require.Len(t, llm.unitCalls, 1)
	assert.Equal(t, 3, llm.unitCalls[0].FirstUnitNumber)

	doc := parse(repo.doc())
	require.Len(t, doc.Units, 3)
	assert.Equal(t, "初入宗门", doc.Units[0].Title)
	assert.Equal(t, 1, doc.Units[0].Number)
	assert.Equal(t, 5, doc.Units[0].EndChapter)
	assert.Equal(t, "外门风波", doc.Units[1].Title)
	assert.Equal(t, 3, doc.Units[2].Number)
	assert.Equal(t, "新", doc.Units[2].Title)
	assert.Equal(t, 11, doc.Units[2].StartChapter)
	assert.Len(t, doc.ChapterNumbers(), 15)
}

func TestGenerateRange_LogRecordsCarryRangeOnce(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "info", "json")
	t.Cleanup(func() { logger.InitWithWriter(os.Stdout, "info", "json") })

	existing := generatedUnits + "\n\n" + chapters(1, 10, "旧")
	llm := &scriptedLLM{units: func(*wfmodel.BlueprintUnitInput) (string, error) {
		return "第2单元 - 外门新篇（包含章节：6-10章）", nil
	}}
	g := NewGenerator(newMemRepo(existing), llm, nil, testOptions(4096, config.UnitPolicyRegenerate))

	_, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 7, End: 8})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var expanded bool
	for _, line := range lines {
		assert.LessOrEqual(t, strings.Count(line, `"range":`), 1, line)
		if strings.Contains(line, "blueprint range generation started") {
			assert.Contains(t, line, `"range":"[7..8]"`)
			assert.Contains(t, line, `"expanded_range":"[6..10]"`)
			expanded = true
		}
	}
	assert.True(t, expanded)
}

func TestGenerateRange_ContextWindowKeepsUnitsAndRecentChapters(t *testing.T) {
	existing := generatedUnits + "\n\n" + chapters(1, 10, "旧")
	repo := newMemRepo(existing)
	llm := &scriptedLLM{}
	opts := testOptions(4096, config.UnitPolicyNone)
	opts.ContextChapterLimit = 3
	g := NewGenerator(repo, llm, nil, opts)

	_, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 11, End: 12})
	require.NoError(t, err)

	require.Len(t, llm.chunkCalls, 1)
	ctxText := llm.chunkCalls[0].ChapterList
	assert.Contains(t, ctxText, "第1单元 - 初入宗门")
	assert.Contains(t, ctxText, "第2单元 - 外门风波")
	assert.Contains(t, ctxText, "第10章")
	assert.Contains(t, ctxText, "第8章")
	assert.NotContains(t, ctxText, "第7章")
	assert.Equal(t, 12, llm.chunkCalls[0].NumberOfChapters)
}

func TestGenerateRange_CancelledAtChunkBoundary(t *testing.T) {
	repo := newMemRepo("")
	llm := &scriptedLLM{}
	g := NewGenerator(repo, llm, nil, testOptions(2000, config.UnitPolicyNone))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var texts int
	_, err := g.GenerateRange(ctx, Request{NovelID: novelID, Start: 1, End: 20, OnProgress: func(ev Event) {
		switch ev.Kind {
		case EventText:
			texts++
		case EventChunkDone:
			cancel()
		}
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCancelled)
	assert.Len(t, llm.chunkCalls, 1)
	assert.Equal(t, 1, texts)
	assert.Len(t, parse(repo.doc()).Chapters, 10)
}

func TestGenerateRange_EmptyRangeIsNoop(t *testing.T) {
	existing := chapters(1, 3, "旧")
	repo := newMemRepo(existing)
	llm := &scriptedLLM{}
	g := NewGenerator(repo, llm, nil, testOptions(4096, config.UnitPolicyReuse))

	res, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 5, End: 4})
	require.NoError(t, err)
	assert.Empty(t, llm.chunkCalls)
	assert.Empty(t, repo.saves)
	assert.Equal(t, existing, res.Document)
}

func TestGenerateRange_RejectsInvalidRequests(t *testing.T) {
	g := NewGenerator(newMemRepo(""), &scriptedLLM{}, nil, testOptions(4096, config.UnitPolicyNone))
	ctx := context.Background()

	_, err := g.GenerateRange(ctx, Request{Start: 1, End: 2})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)

	_, err = g.GenerateRange(ctx, Request{NovelID: novelID, Start: 0, End: 2})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRange)

	repo := newMemRepo("")
	repo.arch = "  "
	_, err = NewGenerator(repo, &scriptedLLM{}, nil, testOptions(4096, config.UnitPolicyNone)).
		GenerateRange(ctx, Request{NovelID: novelID, Start: 1, End: 2})
	assert.ErrorIs(t, err, apperrors.ErrArchitectureMissing)
}

type fakeLocker struct {
	keys []string
	held bool
	err  error
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, key)
	f.held = true
	return func() { f.held = false }, nil
}

func TestGenerateRange_SerializesThroughLocker(t *testing.T) {
	locker := &fakeLocker{}
	g := NewGenerator(newMemRepo(""), &scriptedLLM{}, locker, testOptions(4096, config.UnitPolicyNone))

	_, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 1, End: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{LockKey(novelID)}, locker.keys)
	assert.False(t, locker.held)

	busy := &fakeLocker{err: apperrors.ErrLockBusy}
	_, err = NewGenerator(newMemRepo(""), &scriptedLLM{}, busy, testOptions(4096, config.UnitPolicyNone)).
		GenerateRange(context.Background(), Request{NovelID: novelID, Start: 1, End: 2})
	assert.ErrorIs(t, err, apperrors.ErrLockBusy)
}

func TestGenerateAll_ResumesAfterHighestChapter(t *testing.T) {
	repo := newMemRepo(chapters(1, 5, "旧"))
	llm := &scriptedLLM{}
	g := NewGenerator(repo, llm, nil, testOptions(4096, config.UnitPolicyNone))

	res, err := g.GenerateAll(context.Background(), Request{NovelID: novelID, TotalChapters: 8})
	require.NoError(t, err)
	assert.Equal(t, []entity.GenerationRange{{Start: 6, End: 8}}, llm.chunkRanges())
	assert.Equal(t, []int{6, 7, 8}, res.Written)

	res, err = g.GenerateAll(context.Background(), Request{NovelID: novelID, TotalChapters: 8})
	require.NoError(t, err)
	assert.Empty(t, res.Written)
	assert.Len(t, llm.chunkCalls, 1)
}

func TestGenerateRange_ReportsUnresolvedForeshadowing(t *testing.T) {
	repo := newMemRepo("")
	llm := &scriptedLLM{chunk: func(_ int, in *wfmodel.BlueprintChunkInput) (string, error) {
		text := chapters(in.Start, in.End, "新")
		text = strings.Replace(text, "新章2\n本章定位：过渡\n伏笔操作：无特殊伏笔", "新章2\n本章定位：过渡\n伏笔操作：埋设(神秘玉佩)", 1)
		text = strings.Replace(text, "新章9\n本章定位：过渡\n伏笔操作：无特殊伏笔", "新章9\n本章定位：过渡\n伏笔操作：强化(神秘玉佩)", 1)
		return text, nil
	}}
	g := NewGenerator(repo, llm, nil, testOptions(4096, config.UnitPolicyNone))

	res, err := g.GenerateRange(context.Background(), Request{NovelID: novelID, Start: 1, End: 20})
	require.NoError(t, err)

	require.Len(t, res.Foreshadow.Unresolved, 1)
	item := res.Foreshadow.Unresolved[0]
	assert.Equal(t, "神秘玉佩", item.Name)
	assert.Equal(t, 2, item.BuriedAt)
	assert.Equal(t, []int{9}, item.ReinforcedAt)
}
