// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/danielhkuo/artvote/identity"
	"github.com/danielhkuo/artvote/limiter"
	"github.com/danielhkuo/artvote/metrics"
	"github.com/danielhkuo/artvote/models"
)

// statusRecorder captures the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// WithLogging wraps a handler with request logging
func WithLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Info("request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
		)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// JSONResponse writes a JSON response
func JSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse writes a JSON error response
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	JSONResponse(w, statusCode, models.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// ParseJSONBody parses the request body into the given struct
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

// CORS middleware allows cross-origin requests from the frontend
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SetRateLimitHeaders advertises a limiter decision to the client.
// Retry-After is only set on rejections.
func SetRateLimitHeaders(w http.ResponseWriter, d limiter.Decision, now time.Time) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(RetryAfterSeconds(d.ResetAt, now)))
	}
}

// RetryAfterSeconds is the whole number of seconds until resetAt, rounded up.
func RetryAfterSeconds(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 0 {
		return 0
	}
	return secs
}

// RateLimit applies the general API quota per resolved identity.
// A limiter outage on a fail-closed limiter answers 503.
func RateLimit(lim *limiter.Limiter, resolver *identity.Resolver, m *metrics.Metrics) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			id := resolver.FromRequest(r)

			d, err := lim.Allow(r.Context(), id.Key())
			if err != nil && r.Context().Err() != nil {
				// Client went away
				return
			}
			if err != nil {
				m.ObserveLimiter(lim.Name(), metrics.ResultUnavailable)
				ErrorResponse(w, http.StatusServiceUnavailable, "Rate limiter unavailable")
				return
			}

			SetRateLimitHeaders(w, d, time.Now())

			if !d.Allowed {
				m.ObserveLimiter(lim.Name(), metrics.ResultDenied)
				slog.Warn("api quota exhausted", "limiter", lim.Name(), "path", r.URL.Path)
				JSONResponse(w, http.StatusTooManyRequests, models.RateLimitResponse{
					Error:          http.StatusText(http.StatusTooManyRequests),
					Code:           models.CodeAPIQuotaExhausted,
					Message:        "Too many requests, slow down",
					RemainingQuota: d.Remaining,
					ResetAt:        d.ResetAt.UTC(),
				})
				return
			}

			result := metrics.ResultAllowed
			if d.Degraded {
				result = metrics.ResultDegraded
			}
			m.ObserveLimiter(lim.Name(), result)

			next(w, r)
		}
	}
}
