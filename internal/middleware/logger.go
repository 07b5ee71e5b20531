package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

type loggingWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (l *loggingWriter) WriteHeader(statusCode int) {
	l.status = statusCode
	l.ResponseWriter.WriteHeader(statusCode)
}

func (l *loggingWriter) Write(p []byte) (int, error) {
	n, err := l.ResponseWriter.Write(p)
	l.size += n
	return n, err
}

// Logger возвращает middleware, логирующее метод, путь, статус,
// размер ответа и длительность обработки запроса.
func Logger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := &loggingWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(lw, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", lw.status),
				zap.Int("size", lw.size),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
