package prompt

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BlueprintChunkTemplate(t *testing.T) {
	r := NewRegistry()
	tpl, err := r.ChatTemplate(PromptBlueprintChunkV1)
	require.NoError(t, err)

	msgs, err := tpl.Format(context.Background(), map[string]any{
		"novel_architecture":      "修仙世界",
		"chapter_list":            "第1章 - 开端",
		"number_of_chapters":      30,
		"n":                       11,
		"m":                       20,
		"user_guidance":           "节奏紧凑",
		"generation_requirements": "无特殊要求",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "主角修为：表面修为X | 实际实力Y")
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "请生成第 11 章到第 20 章")
	assert.Contains(t, msgs[1].Content, "全书共 30 章")
	assert.Contains(t, msgs[1].Content, "修仙世界")
}

func TestRegistry_BlueprintUnitTemplate(t *testing.T) {
	r := NewRegistry()
	tpl, err := r.ChatTemplate(PromptBlueprintUnitV1)
	require.NoError(t, err)

	msgs, err := tpl.Format(context.Background(), map[string]any{
		"novel_architecture": "修仙世界",
		"chapter_list":       "",
		"number_of_chapters": 30,
		"n":                  1,
		"m":                  10,
		"first_unit":         1,
		"unit_width":         5,
		"user_guidance":      "",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "单元编号从第 1 单元开始")
}

func TestRegistry_CachesTemplates(t *testing.T) {
	r := NewRegistry()
	a, err := r.ChatTemplate(PromptBlueprintChunkV1)
	require.NoError(t, err)
	b, err := r.ChatTemplate(PromptBlueprintChunkV1)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestRegistry_UnknownID(t *testing.T) {
	r := NewRegistry()
	_, err := r.ChatTemplate(PromptID("nope"))
	assert.ErrorContains(t, err, "missing system template")

	_, err = r.Format(context.Background(), PromptID("nope"), nil)
	assert.Error(t, err)
}

func TestRegistry_IDs(t *testing.T) {
	assert.ElementsMatch(t, []PromptID{PromptBlueprintChunkV1, PromptBlueprintUnitV1}, NewRegistry().IDs())
}

func TestRegistry_CustomSource(t *testing.T) {
	r := &Registry{src: fstest.MapFS{
		"templates/greet.system.txt": {Data: []byte("  你是{role}  ")},
		"templates/greet.user.txt":   {Data: []byte("写第{n}章")},
	}}
	msgs, err := r.Format(context.Background(), "greet", map[string]any{"role": "编辑", "n": 3})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "你是编辑", msgs[0].Content)
	assert.Equal(t, "写第3章", msgs[1].Content)
}
