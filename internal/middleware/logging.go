package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"aperture-backend/pkg/observability"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Logging logs each request and records HTTP metrics
func Logging(logger *zap.Logger, metrics *observability.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			duration := time.Since(start)
			status := strconv.Itoa(sw.status)
			metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration.Seconds())

			logger.Debug("Request handled",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Duration("duration", duration),
				zap.String("requestID", GetRequestID(r.Context())),
			)
		})
	}
}
