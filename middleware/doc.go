// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status, duration_ms).

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Rate limit headers are exposed so browser clients can show a retry window.

# API Rate Limit

RateLimit applies the general API quota (100 per rolling minute by default)
per resolved identity:

	limit := middleware.RateLimit(apiLimiter, resolver, m)
	mux.HandleFunc("GET /contests/active", middleware.WithLogging(limit(h.GetActive)))

Every response carries X-RateLimit-Limit, X-RateLimit-Remaining and
X-RateLimit-Reset (unix seconds). Rejections are 429 with Retry-After and a
RateLimitResponse body. If the limiter store is down, a fail-closed limiter
answers 503 and a fail-open one lets the request through.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.SubmitVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
*/
package middleware
