// Package middleware 提供HTTP中间件
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zhipai/zhipai/internal/metrics"
	"github.com/zhipai/zhipai/pkg/logger"
)

type contextKey string

// RequestIDKey 请求ID在上下文中的键
const RequestIDKey contextKey = "request_id"

// statusRecorder 记录响应状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLog 请求日志中间件：分配请求ID、记录延迟并上报指标
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), RequestIDKey, reqID)
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		duration := time.Since(start)

		reg := metrics.GetRegistry()
		if c := reg.GetCounter("zhipai_http_requests_total"); c != nil {
			c.Inc(r.Method, r.URL.Path, strconv.Itoa(rec.status))
		}
		if h := reg.GetHistogram("zhipai_http_request_duration_seconds"); h != nil {
			h.Observe(duration.Seconds(), r.Method, r.URL.Path)
		}

		logger.Info().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", duration).
			Msg("HTTP请求")
	})
}

// RequestID 从上下文读取请求ID
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
