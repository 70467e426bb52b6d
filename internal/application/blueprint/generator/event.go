package generator

import (
	"z-novel-blueprint/internal/application/blueprint/validate"
	"z-novel-blueprint/internal/domain/entity"
)

// EventKind 进度事件类型
type EventKind string

const (
	EventUnits      EventKind = "units"
	EventChunkStart EventKind = "chunk_start"
	EventText       EventKind = "text"
	EventChunkDone  EventKind = "chunk_done"
	EventChunkSkip  EventKind = "chunk_skip"
	EventWarning    EventKind = "warning"
)

// Event 进度回调事件，仅用于展示，不影响控制流
type Event struct {
	Kind  EventKind
	Range entity.GenerationRange
	// Text 流式增量文本（EventText）或提示信息
	Text    string
	Warning *validate.Warning
}
