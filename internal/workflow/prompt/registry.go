// Package prompt 管理嵌入的提示词模板
package prompt

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 提示词模板标识
// 模板文件为 templates/<id>.system.txt 与 templates/<id>.user.txt。
type PromptID string

const (
	PromptBlueprintChunkV1 PromptID = "blueprint_chunk_v1"
	PromptBlueprintUnitV1  PromptID = "blueprint_unit_v1"
)

// Registry 嵌入模板的只读集合，模板在首次使用时编译
type Registry struct {
	src  fs.FS
	once sync.Map // PromptID -> *entry
}

type entry struct {
	once sync.Once
	tpl  einoprompt.ChatTemplate
	err  error
}

// NewRegistry 使用编译进二进制的模板
func NewRegistry() *Registry {
	return &Registry{src: templatesFS}
}

// IDs 列出可用的模板标识
func (r *Registry) IDs() []PromptID {
	matches, _ := fs.Glob(r.src, "templates/*.system.txt")
	ids := make([]PromptID, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, PromptID(strings.TrimSuffix(path.Base(m), ".system.txt")))
	}
	return ids
}

// ChatTemplate 返回 system + user 两条消息组成的 FString 模板
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	v, _ := r.once.LoadOrStore(id, &entry{})
	e := v.(*entry)
	e.once.Do(func() {
		e.tpl, e.err = r.load(id)
	})
	return e.tpl, e.err
}

// Format 渲染模板
func (r *Registry) Format(ctx context.Context, id PromptID, vars map[string]any) ([]*schema.Message, error) {
	tpl, err := r.ChatTemplate(id)
	if err != nil {
		return nil, err
	}
	return tpl.Format(ctx, vars)
}

func (r *Registry) load(id PromptID) (einoprompt.ChatTemplate, error) {
	system, err := r.read(id, "system")
	if err != nil {
		return nil, err
	}
	user, err := r.read(id, "user")
	if err != nil {
		return nil, err
	}
	return einoprompt.FromMessages(schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	), nil
}

func (r *Registry) read(id PromptID, role string) (string, error) {
	b, err := fs.ReadFile(r.src, fmt.Sprintf("templates/%s.%s.txt", id, role))
	if err != nil {
		return "", fmt.Errorf("prompt %s: missing %s template: %w", id, role, err)
	}
	return strings.TrimSpace(string(b)), nil
}
