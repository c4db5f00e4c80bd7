package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// maxLoggedCriterionLength はログに残す絞り込み条件1件あたりの最大文字数。
const maxLoggedCriterionLength = 64

// criteriaAttr はクエリの絞り込み条件（type、q）をcriteriaグループにまとめる。
// どちらも指定がなければokはfalse。
func criteriaAttr(r *http.Request) (slog.Attr, bool) {
	query := r.URL.Query()
	var attrs []any
	for _, key := range []string{"type", "q"} {
		if v := query.Get(key); v != "" {
			if runes := []rune(v); len(runes) > maxLoggedCriterionLength {
				v = string(runes[:maxLoggedCriterionLength])
			}
			attrs = append(attrs, slog.String(key, v))
		}
	}
	if len(attrs) == 0 {
		return slog.Attr{}, false
	}
	return slog.Group("criteria", attrs...), true
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、client_ip、request_id（設定済みの場合）と
// 絞り込み条件（指定された場合）を含む。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
				slog.String("client_ip", ClientIP(r)),
			}

			if id := RequestIDFromContext(r.Context()); id != "" {
				args = append(args, slog.String("request_id", id))
			}
			if criteria, ok := criteriaAttr(r); ok {
				args = append(args, criteria)
			}

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
