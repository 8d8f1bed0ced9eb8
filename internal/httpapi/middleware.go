package httpapi

import (
	"context"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vibecoding/demo2apk/internal/apperrors"
	"github.com/vibecoding/demo2apk/internal/buildmetrics"
	"github.com/vibecoding/demo2apk/internal/ratelimit"
	"github.com/vibecoding/demo2apk/logger"
)

type ctxKey int

const authenticatedKey ctxKey = iota

// loggerMiddleware stamps every request with a trace id, sets it on the
// response as X-Request-Id, and logs the request's method, path, status,
// and handle time against that id.
func loggerMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			w.Header().Set("X-Request-Id", requestID)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info("API: %s\t%s\t%s\t%d\t%s", requestID, r.Method, r.URL.Path, rec.status, time.Since(start))
			buildmetrics.HTTPRequestsTotal.WithLabelValues(routeLabel(r), statusClass(rec.status)).Inc()
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return r.URL.Path
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// headersMiddleware sets common response headers, grounded on
// internal/socket.HeadersMiddleware.
func headersMiddleware(headers http.Header) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			maps.Copy(w.Header(), headers)
			next.ServeHTTP(w, r)
		})
	}
}

// optionalAuthMiddleware never rejects a request for lacking a bearer
// token: an absent or invalid token just means the caller gets the
// anonymous rate-limit quota instead of the authenticated one. It stashes
// whether the request authenticated into the request context for the
// rate limiter and handlers to read.
func optionalAuthMiddleware(expectedToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authenticated := false
			if expectedToken != "" {
				if auth := r.Header.Get("Authorization"); auth != "" {
					authType, token, found := strings.Cut(auth, " ")
					authenticated = found && authType == "Bearer" && token == expectedToken
				}
			}
			ctx := context.WithValue(r.Context(), authenticatedKey, authenticated)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isAuthenticated(r *http.Request) bool {
	v, _ := r.Context().Value(authenticatedKey).(bool)
	return v
}

// rateLimitMiddleware enforces spec.md §4.1's per-client quota on
// POST /api/build/*, keyed by the first X-Forwarded-For hop or the peer
// address.
func rateLimitMiddleware(limiter *ratelimit.Limiter, capacityFor func(authenticated bool) int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			authenticated := isAuthenticated(r)
			capacity := capacityFor(authenticated)

			allowed, retryAfter, err := limiter.Allow(r.Context(), key, capacity)
			if err != nil {
				writeAppError(w, apperrors.Internal("rate limit check failed", err))
				return
			}
			if !allowed {
				authLabel := "false"
				if authenticated {
					authLabel = "true"
				}
				buildmetrics.RateLimitRejections.WithLabelValues(authLabel).Inc()
				writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
					Error:      http.StatusText(http.StatusTooManyRequests),
					Message:    "rate limit exceeded, please try again later",
					RetryAfter: int(retryAfter.Seconds()),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}
