package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Rawcherry/To-Do-App/shared/logger"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware writes one structured entry per request.
func LoggingMiddleware(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			logEntry := logger.WithRequestID(log, GetRequestID(r.Context()))
			logEntry.Debugf("request started: %s %s", r.Method, r.URL.Path)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			logEntry.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.statusCode,
				"duration_ms": duration.Milliseconds(),
				"remote_ip":   r.RemoteAddr,
				"user_agent":  r.UserAgent(),
			}).Info("request completed")
		})
	}
}
