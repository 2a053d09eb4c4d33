package apperr

import (
	"errors"
	"fmt"
)

// 错误分类
const (
	CodeValidation  = "VALIDATION"
	CodeNotFound    = "NOT_FOUND"
	CodeConflict    = "CONFLICT"
	CodeUnavailable = "UNAVAILABLE"
	CodeInternal    = "INTERNAL"
)

// AppError 带分类码的业务错误，api 层据此映射 HTTP 状态码
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func New(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func Validation(format string, args ...interface{}) *AppError {
	return New(CodeValidation, fmt.Sprintf(format, args...), nil)
}

func NotFound(format string, args ...interface{}) *AppError {
	return New(CodeNotFound, fmt.Sprintf(format, args...), nil)
}

func Conflict(message string, err error) *AppError {
	return New(CodeConflict, message, err)
}

func Unavailable(message string, err error) *AppError {
	return New(CodeUnavailable, message, err)
}

func Internal(message string, err error) *AppError {
	return New(CodeInternal, message, err)
}

// CodeOf 取错误分类码，非 AppError 视为 INTERNAL
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Is 判断错误是否属于某一分类
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
