// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "z-novel-blueprint/pkg/errors"
)

// Response 统一响应结构
type Response[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	ErrorCode string `json:"error_code,omitempty"`
	Details   string `json:"details,omitempty"`
}

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Error   *ErrorDetail `json:"error,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// Success 返回成功响应
func Success[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, Response[T]{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Accepted 返回接受处理响应 (202)
func Accepted[T any](c *gin.Context, data T) {
	c.JSON(http.StatusAccepted, Response[T]{
		Code:    http.StatusAccepted,
		Message: "accepted",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Error 返回错误响应
func Error(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, ErrorResponse{
		Code:    httpCode,
		Message: message,
		TraceID: c.GetString("trace_id"),
	})
}

// BadRequest 返回 400 错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound 返回 404 错误
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// ServiceUnavailable 返回 503 错误
func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, message)
}

// FromError 按错误码映射 HTTP 状态并返回错误响应
func FromError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)
	status := StatusOf(appErr.Code)
	msg := appErr.Message
	if status == http.StatusInternalServerError && appErr.Code == apperrors.CodeUnknown {
		msg = "internal error"
	}
	c.JSON(status, ErrorResponse{
		Code:    status,
		Message: msg,
		Error: &ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		},
		TraceID: c.GetString("trace_id"),
	})
}

// StatusOf 错误码对应的 HTTP 状态
func StatusOf(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.CodeInvalidParam, apperrors.CodeInvalidRange:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeLockBusy:
		return http.StatusConflict
	case apperrors.CodeArchitectureMissing:
		return http.StatusUnprocessableEntity
	case apperrors.CodeLLMCallFailed, apperrors.CodeGenerationEmpty:
		return http.StatusBadGateway
	case apperrors.CodeCacheError, apperrors.CodeQueueError:
		return http.StatusServiceUnavailable
	case apperrors.CodeCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
