package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"

	"moldubot/pkg/circuitbreaker"
)

// 错误分类标签，用于日志字段和指标 label
const (
	ErrTypeTimeout         = "timeout"
	ErrTypeNetwork         = "network_error"
	ErrTypeCircuitOpen     = "circuit_open"
	ErrTypeJSONDecode      = "json_decode_error"
	ErrTypeContextCanceled = "context_canceled"
	ErrTypeNotFound        = "not_found"
	ErrTypeDuplicateKey    = "duplicate_key"
	ErrTypeDBConnection    = "db_connection_error"
	ErrTypeUnknown         = "unknown_error"
)

// reasoner 自带分类标签的错误
type reasoner interface {
	Reason() string
}

// ClassifyError 返回错误的分类标签
func ClassifyError(err error) string {
	_, label := IsRetryableError(err)
	return label
}

// IsRetryableError 判断错误是否可重试
// Returns: (isRetryable, errorType)
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	var r reasoner
	if errors.As(err, &r) && r.Reason() != "" {
		return false, r.Reason()
	}

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		// 熔断打开 - 稍后可重试
		return true, ErrTypeCircuitOpen
	}

	// Context 需在网络错误之前判断（url.Error 会包装 DeadlineExceeded）
	if errors.Is(err, context.DeadlineExceeded) {
		return true, ErrTypeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return false, ErrTypeContextCanceled
	}

	// JSON 解析错误 - 不可重试（数据格式错误）
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false, ErrTypeJSONDecode
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrTypeNotFound
	}

	// *url.Error 也实现了 net.Error
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, ErrTypeTimeout
		}
		return true, ErrTypeNetwork
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "json:"):
		return false, ErrTypeJSONDecode
	case strings.Contains(errStr, "duplicate key"):
		// 唯一约束冲突 - 不可重试（幂等性）
		return false, ErrTypeDuplicateKey
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection reset"):
		return true, ErrTypeDBConnection
	}

	// 默认：未知错误，保守处理 - 不重试
	return false, ErrTypeUnknown
}
