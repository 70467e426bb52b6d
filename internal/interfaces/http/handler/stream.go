package handler

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"z-novel-blueprint/internal/application/blueprint/generator"
	"z-novel-blueprint/internal/interfaces/http/dto"
	apperrors "z-novel-blueprint/pkg/errors"
	"z-novel-blueprint/pkg/logger"
)

type outcome struct {
	res *generator.Result
	err error
}

// GenerateStream 以 SSE 推送生成进度
// 事件名为进度类型（units/chunk_start/text/chunk_done/chunk_skip/warning），最后一个事件为 done 或 error。
// 客户端断开后生成在当前子区间结束时停止，已完成的部分照常持久化。
// @Summary 流式生成章节目录
// @Tags Blueprint
// @Accept json
// @Produce text/event-stream
// @Param nid path string true "小说 ID"
// @Param body body dto.GenerateRequest true "生成请求"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/novels/{nid}/blueprint/generate/stream [post]
func (h *BlueprintHandler) GenerateStream(c *gin.Context) {
	body, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	events := make(chan generator.Event, 64)
	doneCh := make(chan outcome, 1)
	stopped := make(chan struct{})
	defer close(stopped)

	req := body.ToGeneratorRequest(bindNovelID(c))
	req.OnProgress = func(ev generator.Event) {
		select {
		case events <- ev:
		case <-stopped:
		}
	}

	go func() {
		res, err := h.run(ctx, body, req)
		doneCh <- outcome{res: res, err: err}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-events:
			c.SSEvent(string(ev.Kind), dto.ToEventView(ev))
			return true

		case out := <-doneCh:
			// 回调在生成返回前都已入队
			for drained := false; !drained; {
				select {
				case ev := <-events:
					c.SSEvent(string(ev.Kind), dto.ToEventView(ev))
				default:
					drained = true
				}
			}
			writeOutcome(ctx, c, out)
			return false

		case <-ctx.Done():
			logger.Warn(ctx, "blueprint stream client disconnected")
			return false
		}
	})
}

func writeOutcome(ctx context.Context, c *gin.Context, out outcome) {
	if out.err == nil {
		c.SSEvent("done", dto.GenerateResponse{Result: out.res})
		return
	}
	logger.Error(ctx, "blueprint stream generation failed", out.err)
	appErr := apperrors.AsAppError(out.err)
	c.SSEvent("error", dto.GenerateResponse{
		Result: out.res,
		Error:  &dto.ErrorDetail{ErrorCode: string(appErr.Code), Details: out.err.Error()},
	})
}
