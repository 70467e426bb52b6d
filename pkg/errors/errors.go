// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeUnknown       ErrorCode = "1000"
	CodeInvalidParam  ErrorCode = "1001"
	CodeNotFound      ErrorCode = "1004"
	CodeInternalError ErrorCode = "1007"
	CodeCancelled     ErrorCode = "1009"

	// 目录生成错误 (4xxx)
	CodeInvalidRange        ErrorCode = "4101"
	CodeGenerationEmpty     ErrorCode = "4102"
	CodeLLMCallFailed       ErrorCode = "4005"
	CodeArchitectureMissing ErrorCode = "4103"
	CodeLockBusy            ErrorCode = "4104"

	// 外部服务错误 (5xxx)
	CodeCacheError   ErrorCode = "5002"
	CodeStorageError ErrorCode = "5004"
	CodeQueueError   ErrorCode = "5006"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	Err     error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 错误码相同即视为同一错误，便于 errors.Is(err, ErrGenerationEmpty)
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail 添加详细信息（返回副本，预定义错误不会被修改）
func (e *AppError) WithDetail(detail string) *AppError {
	c := *e
	c.Detail = detail
	return &c
}

// WithError 添加底层错误（返回副本）
func (e *AppError) WithError(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 预定义错误
var (
	ErrInvalidParam  = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound      = New(CodeNotFound, "resource not found")
	ErrInternalError = New(CodeInternalError, "internal error")
	ErrCancelled     = New(CodeCancelled, "operation cancelled")

	ErrInvalidRange        = New(CodeInvalidRange, "invalid chapter range")
	ErrGenerationEmpty     = New(CodeGenerationEmpty, "generation returned empty result")
	ErrLLMCallFailed       = New(CodeLLMCallFailed, "LLM call failed")
	ErrArchitectureMissing = New(CodeArchitectureMissing, "novel architecture missing")
	ErrLockBusy            = New(CodeLockBusy, "blueprint is locked by another run")

	ErrStorage = New(CodeStorageError, "storage error")
	ErrCache   = New(CodeCacheError, "cache error")
	ErrQueue   = New(CodeQueueError, "queue error")
)

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// CodeOf 返回错误链中第一个 AppError 的错误码
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsAppError(err).Code
}
