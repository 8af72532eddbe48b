package middleware

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"media-catalog/internal/logging"
)

// responseWriter records the first status code and the body size.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingConfig controls which requests are written to the access log.
type LoggingConfig struct {
	SkipPaths       []string
	LogHealthChecks bool
	// Log receives one entry per request; nil means the "access" logger.
	Log *zap.SugaredLogger
}

// DefaultLoggingConfig logs everything, health checks included.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{},
		LogHealthChecks: true,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// sanitizeLogField drops control characters from client supplied values.
// Newlines become spaces; tabs survive.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// Logger returns access logging middleware. Each request produces one
// structured entry carrying the request and response sizes, so slow or
// oversized uploads stand out.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	log := config.Log
	if log == nil {
		log = logging.Named("access")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			logRequest(log, r, wrapped, time.Since(start))
		})
	}
}

func logRequest(log *zap.SugaredLogger, r *http.Request, rw *responseWriter, duration time.Duration) {
	fields := []interface{}{
		"client_ip", sanitizeLogField(getClientIP(r)),
		"method", sanitizeLogField(r.Method),
		"path", sanitizeLogField(r.URL.Path),
		"status", rw.statusCode,
		"bytes_out", rw.bytesWritten,
		"duration_ms", duration.Milliseconds(),
	}
	if q := r.URL.RawQuery; q != "" {
		fields = append(fields, "query", sanitizeLogField(q))
	}
	if r.ContentLength > 0 {
		fields = append(fields, "bytes_in", r.ContentLength)
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		fields = append(fields, "user_agent", sanitizeLogField(ua))
	}

	switch {
	case rw.statusCode >= http.StatusInternalServerError:
		log.Errorw("request", fields...)
	case rw.statusCode >= http.StatusBadRequest:
		log.Warnw("request", fields...)
	default:
		log.Infow("request", fields...)
	}
}

func shouldSkip(path string, config LoggingConfig) bool {
	// Skip explicitly configured paths
	for _, skipPath := range config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}

	// Skip health checks if disabled
	if !config.LogHealthChecks && healthCheckPaths[path] {
		return true
	}

	return false
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
