package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
)

type ctxKey struct{}

// HeaderName 请求/响应中携带 trace ID 的 header
const HeaderName = "X-Trace-ID"

// RequestIDHeader 兼容上游网关使用的 header
const RequestIDHeader = "X-Request-ID"

// GenerateTraceID 生成 32 位十六进制 trace ID
func GenerateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(b)
}

// FromContext 从 context 中获取 trace_id
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(ctxKey{}).(string); ok {
		return traceID
	}
	return ""
}

// WithContext 将 trace_id 写入 context
func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// FromHeaders 依次尝试 X-Trace-ID 与 X-Request-ID
func FromHeaders(get func(string) string) string {
	for _, name := range []string{HeaderName, RequestIDHeader} {
		if v := strings.TrimSpace(get(name)); v != "" {
			return v
		}
	}
	return ""
}
