package middleware

import (
	"log"
	"net/http"
	"time"
)

type traceWriter struct {
	http.ResponseWriter
	status int
}

func (w *traceWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Trace logs one line per request with the correlated request id. A nil
// logger turns the middleware into a passthrough.
func Trace(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			writer := &traceWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(writer, r)
			logger.Printf("trace request_id=%s method=%s path=%s status=%d duration_ms=%d",
				GetRequestID(r.Context()), r.Method, r.URL.Path, writer.status,
				time.Since(started).Milliseconds())
		})
	}
}
