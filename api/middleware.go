package api

import (
	"bytes"
	"crypto/subtle"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/biomix/mixnode/log"
)

// requestIDHeader is the header a request's generated id is echoed back
// under, so a caller can correlate a response with the structured log
// lines the node emitted while handling it.
const requestIDHeader = "X-Request-Id"

// requestIDMiddleware stamps every request with a fresh UUID, echoing it
// back in the response header and attaching it to the logging middleware's
// structured output via the request context.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

// DisabledLogging is a global flag to disable logging middleware.
var DisabledLogging = false

// jsonRegex matches common JSON starting patterns.
var jsonRegex = regexp.MustCompile(`^\s*[\[{]`)

// LoggingConfig holds configuration for the logging middleware.
type LoggingConfig struct {
	MaxBodyLog       int
	ExcludedPrefixes []string // URL path prefixes to exclude from logging
}

// DefaultLoggingConfig returns a LoggingConfig with sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		MaxBodyLog:       512,
		ExcludedPrefixes: LogExcludedPrefixes,
	}
}

// shouldSkipLogging checks if the request should be skipped from logging.
func (lc LoggingConfig) shouldSkipLogging(r *http.Request) bool {
	if log.Level() != log.LogLevelDebug {
		return true
	}
	if DisabledLogging {
		return true
	}
	path := r.URL.Path
	for _, prefix := range lc.ExcludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

// loggingMiddleware provides request/response logging for debugging.
func loggingMiddleware(maxBodyLog int) func(http.Handler) http.Handler {
	config := LoggingConfig{
		MaxBodyLog:       maxBodyLog,
		ExcludedPrefixes: DefaultLoggingConfig().ExcludedPrefixes,
	}
	return loggingMiddlewareWithConfig(config)
}

// loggingMiddlewareWithConfig provides request/response logging with custom configuration.
func loggingMiddlewareWithConfig(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.shouldSkipLogging(r) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			var bodyStr string

			if r.Body != nil && r.ContentLength > 0 {
				bodyBytes, err := io.ReadAll(r.Body)
				if err != nil {
					log.Error(err)
					http.Error(w, "unable to read request body", http.StatusInternalServerError)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

				if jsonRegex.Match(bodyBytes) {
					bodyStr = string(bodyBytes)
					if len(bodyStr) > config.MaxBodyLog {
						bodyStr = bodyStr[:config.MaxBodyLog] + "..."
					}
					bodyStr = strings.ReplaceAll(bodyStr, "\"", "")
				}
			}

			wrapped := &responseWriter{ResponseWriter: w, statusCode: 0}

			reqID := requestIDFromContext(r.Context())
			log.Debugw("api request", "request_id", reqID, "method", r.Method, "url", r.URL.String(), "body", bodyStr)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			log.Debugw("api response",
				"request_id", reqID,
				"method", r.Method,
				"url", r.URL.String(),
				"status", wrapped.statusCode,
				"took", duration.String(),
			)
		})
	}
}

// bodyLimitMiddleware rejects request bodies larger than maxBytes, per the
// 12 MB cap. http.MaxBytesReader reports the overflow lazily
// on the first Read past the limit, which json.Decode surfaces as a
// regular decode error — handlers treat it the same as any other
// malformed body.
func bodyLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// bearerAuthMiddleware enforces the global bearer-token check: if
// token is empty, authentication is disabled entirely; otherwise every
// request must carry a matching "Authorization: Bearer <token>" header.
// The comparison is constant-time to avoid leaking the token through
// response-timing side channels.
func bearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			const prefix = "Bearer "
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, prefix) {
				ErrUnauthorized.Write(w)
				return
			}
			supplied := strings.TrimPrefix(header, prefix)
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
				ErrUnauthorized.Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
