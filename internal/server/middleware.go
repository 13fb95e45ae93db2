package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HTTPRecorder 记录 HTTP 请求指标
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
}

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

const tracerName = "github.com/DCGM/semant-demo/internal/server"

// instrument 包裹 mux：请求 ID、trace 上下文、panic 恢复、访问日志与指标。
// 指标的 path 标签使用路由模式，未匹配的请求归为 "unmatched"。
func instrument(next http.Handler, rec HTTPRecorder, logger *zap.Logger) http.Handler {
	tracer := otel.Tracer(tracerName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		sw.Header().Set(RequestIDHeader, reqID)

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPath(r.URL.Path),
				attribute.String("request.id", reqID),
			),
		)
		r = r.WithContext(ctx)

		defer func() {
			if p := recover(); p != nil {
				logger.Error("handler panic",
					zap.String("request_id", reqID),
					zap.String("panic", fmt.Sprint(p)),
					zap.ByteString("stack", debug.Stack()),
				)
				if !sw.written {
					WriteError(sw, http.StatusInternalServerError, CodeInternal, "internal server error", nil, nil)
				}
			}

			pattern := r.Pattern
			if pattern == "" {
				pattern = "unmatched"
			}
			span.SetName(pattern)
			span.SetAttributes(semconv.HTTPResponseStatusCode(sw.status))
			if sw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			}
			span.End()

			d := time.Since(start)
			if rec != nil {
				rec.RecordHTTPRequest(r.Method, pattern, sw.status, d)
			}
			logger.Debug("http request",
				zap.String("request_id", reqID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Duration("duration", d),
			)
		}()

		next.ServeHTTP(sw, r)
	})
}
