package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/deployq/deployq/pkg/storage"
)

// Logging returns middleware that emits one structured log entry per
// request: method, path, status, duration, request ID, and the caller's
// organisation when authentication has already run.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lw := &loggingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(lw, r)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", lw.status),
				slog.Duration("duration", time.Since(start)),
			}
			if org := storage.TenantFrom(r.Context()); org != "" {
				attrs = append(attrs, slog.String("organisation", org))
			}

			level := slog.LevelInfo
			if lw.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "request completed", attrs...)
		})
	}
}

// loggingWriter wraps http.ResponseWriter to capture the status code.
type loggingWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *loggingWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *loggingWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (w *loggingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
