package middleware

import (
	"net/http"
	"time"

	logpkg "github.com/ashish13377/Intellido/internal/logger"
	"github.com/ashish13377/Intellido/internal/request"
	"github.com/ashish13377/Intellido/internal/services/ai"
	"go.uber.org/zap"
)

// Logging tags each request with a request id, echoes it in the response
// and logs one entry when the handler returns
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := request.RequestID(r)
			w.Header().Set(request.RequestIDHeader, requestID)
			r = r.WithContext(ai.WithRequestID(r.Context(), requestID))

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			logger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.Int("status_code", wrapped.statusCode),
				zap.String("request_id", requestID),
				zap.String("client_ip", request.ClientIP(r)),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}
