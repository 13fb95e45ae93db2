package llm

import (
	"errors"
	"fmt"
)

// ErrorCode 把上游失败归一成少数几类，决定是否重试与阶段如何降级
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"
	ErrForbidden           ErrorCode = "LLM_FORBIDDEN"
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR" // 5xx 或网络错误
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE"
	ErrEmptyResponse       ErrorCode = "LLM_EMPTY_RESPONSE" // 200 但没有 choices
)

// Error 模型调用失败。Message 原样进入 RequestState.Error，不附加错误码
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// GoString 便于在日志与测试失败信息里看到错误码
func (e *Error) GoString() string {
	return fmt.Sprintf("llm.Error{%s %d %q retryable=%t}", e.Code, e.HTTPStatus, e.Message, e.Retryable)
}

// IsRetryable 只有显式标记为可重试的 *Error 才重试
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// CodeOf 非 *Error 返回空串
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
