package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Recovery converts panics to 500 responses and logs the stack trace
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("panic", err),
						zap.String("requestID", GetRequestID(r.Context())),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()),
					)
					if w.Header().Get("Content-Type") == "" {
						w.Header().Set("Content-Type", "application/json")
						w.WriteHeader(http.StatusInternalServerError)
						_, _ = w.Write([]byte(`{"error":"internal server error"}`))
					}
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
